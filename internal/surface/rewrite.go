package surface

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrAssetDenied is returned for asset paths outside the allow-list.
var ErrAssetDenied = errors.New("surface: asset not allowed")

// URLRewriter maps a requested URL to the one actually loaded.
type URLRewriter interface {
	Rewrite(raw string) (string, error)
}

// RewriterFunc adapts a function to URLRewriter.
type RewriterFunc func(raw string) (string, error)

// Rewrite implements URLRewriter.
func (f RewriterFunc) Rewrite(raw string) (string, error) {
	return f(raw)
}

type identity struct{}

func (identity) Rewrite(raw string) (string, error) { return raw, nil }

// SchemeRewriter maps scheme://some/path to a file:// URL under Root.
// Paths are cleaned before matching so they cannot leave Root.
type SchemeRewriter struct {
	scheme string
	root   string
	allow  []string
}

// NewSchemeRewriter validates the allow-list and resolves root.
func NewSchemeRewriter(scheme, root string, allow []string) (*SchemeRewriter, error) {
	if scheme == "" {
		return nil, fmt.Errorf("surface: asset scheme required")
	}
	for _, pattern := range allow {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("surface: invalid allow pattern %q", pattern)
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("surface: resolve content root: %w", err)
	}
	return &SchemeRewriter{scheme: strings.ToLower(scheme), root: abs, allow: allow}, nil
}

// Rewrite implements URLRewriter. Other schemes pass through unchanged.
func (r *SchemeRewriter) Rewrite(raw string) (string, error) {
	prefix := r.scheme + "://"
	if len(raw) < len(prefix) || !strings.EqualFold(raw[:len(prefix)], prefix) {
		return raw, nil
	}

	rel, suffix := raw[len(prefix):], ""
	if i := strings.IndexAny(rel, "?#"); i >= 0 {
		rel, suffix = rel[:i], rel[i:]
	}
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", ErrAssetDenied)
	}
	if !r.allowed(rel) {
		return "", fmt.Errorf("%w: %s", ErrAssetDenied, rel)
	}

	full := filepath.Join(r.root, filepath.FromSlash(rel))
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(full)}
	return u.String() + suffix, nil
}

func (r *SchemeRewriter) allowed(rel string) bool {
	for _, pattern := range r.allow {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
