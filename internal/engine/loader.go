package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GriffinCanCode/viewbridge/internal/infrastructure/resilience"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupportedScheme is returned for URLs the engine cannot load.
	ErrUnsupportedScheme = errors.New("engine: unsupported url scheme")
	// ErrUnsupportedContent is returned for bytes that are neither markup,
	// text nor a decodable image.
	ErrUnsupportedContent = errors.New("engine: unsupported content type")

	// errClientStatus marks 4xx answers. They fail the load but say nothing
	// about the origin's health.
	errClientStatus = errors.New("client error status")
)

type loadMode int

const (
	loadSync loadMode = iota
	loadAsync
)

// target is a parsed navigation request.
type target struct {
	raw    string
	scheme string
	url    *url.URL
	mode   loadMode
}

// classify resolves how raw will be loaded. data: URLs are not run through
// url.Parse since their payload is free-form.
func classify(raw string) (target, error) {
	colon := strings.IndexByte(raw, ':')
	if colon <= 0 {
		return target{raw: raw}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, raw)
	}

	t := target{raw: raw, scheme: strings.ToLower(raw[:colon])}
	switch t.scheme {
	case "data":
		t.mode = loadSync
		return t, nil
	case "about":
		t.mode = loadSync
	case "file", "http", "https":
		t.mode = loadAsync
	default:
		return t, fmt.Errorf("%w: %q", ErrUnsupportedScheme, t.scheme)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return t, fmt.Errorf("parse url: %w", err)
	}
	t.url = u
	return t, nil
}

// Loader turns URLs into Documents.
type Loader struct {
	cfg       Config
	client    *resty.Client
	breakers  *resilience.Group
	sanitizer *bluemonday.Policy
	log       *zap.Logger
}

// NewLoader creates a loader with its own HTTP client.
func NewLoader(cfg Config, log *zap.Logger) *Loader {
	cfg = cfg.withDefaults()

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.FetchRetries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = retryLogger{log.Sugar()}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.FetchTimeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,image/*;q=0.8,*/*;q=0.5")

	breakers := resilience.NewGroup(resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errClientStatus) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Info("origin breaker changed state",
				zap.String("origin", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Loader{
		cfg:       cfg,
		client:    client,
		breakers:  breakers,
		sanitizer: bluemonday.UGCPolicy(),
		log:       log,
	}
}

// Breakers exposes the per-origin circuit breakers.
func (l *Loader) Breakers() *resilience.Group {
	return l.breakers
}

// LoadSync resolves about: and data: targets.
func (l *Loader) LoadSync(t target) (*Document, error) {
	switch t.scheme {
	case "about":
		page := strings.ToLower(t.url.Opaque)
		if page == "blank" || page == "" {
			return newBlankDocument(t.raw), nil
		}
		return nil, fmt.Errorf("unknown about page %q", t.url.Opaque)
	case "data":
		mediaType, data, err := parseDataURL(t.raw)
		if err != nil {
			return nil, err
		}
		return l.build(t.raw, data, mediaType, false)
	default:
		return nil, fmt.Errorf("%w: %q is not synchronous", ErrUnsupportedScheme, t.scheme)
	}
}

// Fetch resolves file: and http(s): targets. It blocks and must not run on
// the worker goroutine.
func (l *Loader) Fetch(ctx context.Context, t target) (*Document, error) {
	switch t.scheme {
	case "file":
		data, err := l.readFile(t.url)
		if err != nil {
			return nil, err
		}
		return l.build(t.raw, data, "", false)
	case "http", "https":
		res, err := resilience.Call(l.breakers.Get(t.url.Host), func() (fetched, error) {
			return l.get(ctx, t.url.String())
		})
		if err != nil {
			return nil, err
		}
		return l.build(t.raw, res.body, res.contentType, true)
	default:
		return nil, fmt.Errorf("%w: %q is not fetched", ErrUnsupportedScheme, t.scheme)
	}
}

type fetched struct {
	body        []byte
	contentType string
}

func (l *Loader) get(ctx context.Context, rawURL string) (fetched, error) {
	resp, err := l.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return fetched{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	body := resp.RawBody()
	defer body.Close()

	switch status := resp.StatusCode(); {
	case status >= http.StatusInternalServerError:
		return fetched{}, fmt.Errorf("fetch %s: server returned %d", rawURL, status)
	case status >= http.StatusBadRequest:
		return fetched{}, fmt.Errorf("fetch %s: %w %d", rawURL, errClientStatus, status)
	}

	data, err := io.ReadAll(io.LimitReader(body, l.cfg.MaxDocumentBytes))
	if err != nil {
		return fetched{}, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return fetched{body: data, contentType: resp.Header().Get("Content-Type")}, nil
}

func (l *Loader) readFile(u *url.URL) ([]byte, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(io.LimitReader(f, l.cfg.MaxDocumentBytes))
}

// build sniffs data and produces the matching Document. A declared media
// type wins over sniffing unless it is the generic octet-stream.
func (l *Loader) build(rawURL string, data []byte, contentType string, remote bool) (*Document, error) {
	mediaType := mimetype.Detect(data).String()
	if contentType != "" {
		if declared, _, err := mime.ParseMediaType(contentType); err == nil && declared != "application/octet-stream" {
			mediaType = declared
		}
	}
	if base, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = base
	}

	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		r := decode(data, contentType)
		if remote && l.cfg.SanitizeRemote {
			return l.sanitized(rawURL, mediaType, r)
		}
		return parseDocument(rawURL, KindHTML, mediaType, r)

	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json" || mediaType == "application/xml":
		text, err := io.ReadAll(decode(data, contentType))
		if err != nil {
			return nil, err
		}
		return newTextDocument(rawURL, mediaType, string(text)), nil

	case strings.HasPrefix(mediaType, "image/"):
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", mediaType, err)
		}
		return newImageDocument(rawURL, mediaType, img), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, mediaType)
	}
}

// sanitized parses remote markup, keeping the title and passing the body
// through the UGC policy. Scripts do not survive sanitisation.
func (l *Loader) sanitized(rawURL, mediaType string, r io.Reader) (*Document, error) {
	doc, err := parseDocument(rawURL, KindHTML, mediaType, r)
	if err != nil {
		return nil, err
	}

	title := doc.Title()
	body, err := doc.Query("body").First().Html()
	if err != nil {
		return nil, fmt.Errorf("serialize body: %w", err)
	}
	clean := l.sanitizer.Sanitize(body)

	markup := "<html><head><title></title></head><body>" + clean + "</body></html>"
	out, err := parseDocument(rawURL, KindHTML, mediaType, strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	out.Query("title").SetText(title)
	return out, nil
}

// decode converts data to UTF-8. Declared and BOM/meta charsets are trusted;
// otherwise valid UTF-8 stays as is and everything else goes to chardet.
func decode(data []byte, contentType string) io.Reader {
	if contentType == "" {
		contentType = "text/html"
	}
	_, name, certain := charset.DetermineEncoding(data, contentType)
	if !certain {
		name = "utf-8"
		if !utf8.Valid(data) {
			name = "windows-1252"
			if best, err := chardet.NewTextDetector().DetectBest(data); err == nil && best.Confidence >= 50 {
				name = best.Charset
			}
		}
	}

	r, err := charset.NewReaderLabel(name, bytes.NewReader(data))
	if err != nil {
		return bytes.NewReader(data)
	}
	return r
}

// parseDataURL splits an RFC 2397 URL into its media type and payload.
func parseDataURL(raw string) (string, []byte, error) {
	if len(raw) < 5 || !strings.EqualFold(raw[:5], "data:") {
		return "", nil, fmt.Errorf("not a data url")
	}
	rest := raw[5:]
	if hash := strings.IndexByte(rest, '#'); hash >= 0 {
		rest = rest[:hash]
	}

	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", nil, fmt.Errorf("data url: missing comma")
	}
	meta, payload := rest[:comma], rest[comma+1:]

	encoded := false
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		encoded = true
		meta = meta[:len(meta)-len(";base64")]
	}
	if meta == "" || strings.HasPrefix(meta, ";") {
		meta = "text/plain" + meta
		if !strings.Contains(meta, "charset=") {
			meta += ";charset=US-ASCII"
		}
	}

	text, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("data url: %w", err)
	}
	if !encoded {
		return meta, []byte(text), nil
	}

	text = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, text)
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(text, "="))
	}
	if err != nil {
		return "", nil, fmt.Errorf("data url: %w", err)
	}
	return meta, data, nil
}

// retryLogger adapts zap to retryablehttp's leveled logger.
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
