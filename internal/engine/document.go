package engine

import (
	"fmt"
	"html"
	"image"
	"image/color"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	xhtml "golang.org/x/net/html"
)

// Kind classifies what a Document renders.
type Kind int

const (
	KindBlank Kind = iota
	KindHTML
	KindText
	KindImage
	KindError
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindError:
		return "error"
	default:
		return "blank"
	}
}

// Document is a loaded page. Every kind carries a DOM so scripts can query
// it; image documents also carry the decoded bitmap.
type Document struct {
	URL  string
	Kind Kind
	MIME string
	Err  error

	dom   *goquery.Document
	image image.Image

	// onMutate is called after every script-visible DOM change.
	onMutate func()
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "body": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true, "p": true,
	"section": true, "table": true, "tr": true, "ul": true,
}

func parseDocument(rawURL string, kind Kind, mime string, r io.Reader) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{URL: rawURL, Kind: kind, MIME: mime, dom: dom}, nil
}

func mustParse(rawURL string, kind Kind, mime, markup string) *Document {
	doc, err := parseDocument(rawURL, kind, mime, strings.NewReader(markup))
	if err != nil {
		// The html tokenizer only fails on reader errors.
		panic(err)
	}
	return doc
}

func newBlankDocument(rawURL string) *Document {
	return mustParse(rawURL, KindBlank, "text/html", "<html><head></head><body></body></html>")
}

func newTextDocument(rawURL, mime, text string) *Document {
	return mustParse(rawURL, KindText, mime,
		"<html><head></head><body><pre>"+html.EscapeString(text)+"</pre></body></html>")
}

func newImageDocument(rawURL, mime string, img image.Image) *Document {
	doc := mustParse(rawURL, KindImage, mime,
		`<html><head></head><body><img src="`+html.EscapeString(rawURL)+`"></body></html>`)
	doc.image = img
	return doc
}

func newErrorDocument(rawURL string, loadErr error) *Document {
	doc := mustParse(rawURL, KindError, "text/html",
		"<html><head><title>Failed to load</title></head><body><h1>Failed to load</h1><p>"+
			html.EscapeString(rawURL)+"</p><p>"+html.EscapeString(loadErr.Error())+"</p></body></html>")
	doc.Err = loadErr
	return doc
}

func (d *Document) touch() {
	if d.onMutate != nil {
		d.onMutate()
	}
}

// Title returns the text of the first <title>.
func (d *Document) Title() string {
	return strings.TrimSpace(d.dom.Find("title").First().Text())
}

// SetTitle replaces or creates the <title> element.
func (d *Document) SetTitle(title string) {
	sel := d.dom.Find("title").First()
	if sel.Length() == 0 {
		d.dom.Find("head").First().AppendHtml("<title></title>")
		sel = d.dom.Find("title").First()
	}
	sel.SetText(title)
	d.touch()
}

// Query runs a CSS selector over the whole document.
func (d *Document) Query(selector string) *goquery.Selection {
	return d.dom.Find(selector)
}

// ByID returns the first element whose id attribute equals elemID.
func (d *Document) ByID(elemID string) *goquery.Selection {
	return d.dom.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == elemID
	}).First()
}

// XPath evaluates expr against the document root.
func (d *Document) XPath(expr string) (*goquery.Selection, error) {
	if len(d.dom.Nodes) == 0 {
		return d.dom.Selection, nil
	}
	nodes, err := htmlquery.QueryAll(d.dom.Nodes[0], expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}

	elements := nodes[:0]
	for _, n := range nodes {
		if n.Type == xhtml.ElementNode {
			elements = append(elements, n)
		}
	}
	return d.dom.FindNodes(elements...), nil
}

// XPathText evaluates expr and returns the inner text of each match,
// including attribute and text nodes.
func (d *Document) XPathText(expr string) ([]string, error) {
	if len(d.dom.Nodes) == 0 {
		return nil, nil
	}
	nodes, err := htmlquery.QueryAll(d.dom.Nodes[0], expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}

	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, htmlquery.InnerText(n))
	}
	return out, nil
}

// InlineScripts returns the source of every inline script in document order.
// External scripts are not fetched.
func (d *Document) InlineScripts() []string {
	var out []string
	d.dom.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		if typ, ok := s.Attr("type"); ok && !isJavaScriptType(typ) {
			return
		}
		if src := s.Text(); strings.TrimSpace(src) != "" {
			out = append(out, src)
		}
	})
	return out
}

func isJavaScriptType(typ string) bool {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "", "text/javascript", "application/javascript", "module":
		return true
	default:
		return false
	}
}

// Background returns the body's bgcolor attribute, if set and parseable.
func (d *Document) Background() (color.RGBA, bool) {
	v, ok := d.dom.Find("body").First().Attr("bgcolor")
	if !ok {
		return color.RGBA{}, false
	}
	return parseColor(v)
}

// Paragraphs flattens the body into display lines: one entry per block of
// text, one per line inside <pre>.
func (d *Document) Paragraphs() []string {
	var (
		out []string
		buf strings.Builder
	)
	flush := func() {
		if text := strings.Join(strings.Fields(buf.String()), " "); text != "" {
			out = append(out, text)
		}
		buf.Reset()
	}

	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		switch n.Type {
		case xhtml.TextNode:
			buf.WriteString(n.Data)
			return
		case xhtml.ElementNode:
			switch n.Data {
			case "script", "style", "head", "template":
				return
			case "pre":
				flush()
				text := strings.TrimSuffix(htmlquery.InnerText(n), "\n")
				for _, line := range strings.Split(text, "\n") {
					out = append(out, strings.TrimRight(line, " \t\r"))
				}
				return
			case "img":
				if alt, ok := attr(n, "alt"); ok && alt != "" {
					buf.WriteString(" [" + alt + "] ")
				}
				return
			}
		}

		block := n.Type == xhtml.ElementNode && blockTags[n.Data]
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}

	for _, n := range d.dom.Find("body").Nodes {
		walk(n)
	}
	flush()
	return out
}

func attr(n *xhtml.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

var namedColors = map[string]color.RGBA{
	"black":  {0, 0, 0, 255},
	"white":  {255, 255, 255, 255},
	"red":    {255, 0, 0, 255},
	"green":  {0, 128, 0, 255},
	"blue":   {0, 0, 255, 255},
	"yellow": {255, 255, 0, 255},
	"gray":   {128, 128, 128, 255},
	"grey":   {128, 128, 128, 255},
	"silver": {192, 192, 192, 255},
	"navy":   {0, 0, 128, 255},
}

// parseColor accepts #rgb, #rrggbb and a handful of color names.
func parseColor(s string) (color.RGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, true
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}
