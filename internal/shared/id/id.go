// Package id provides identifier generation for views and script requests.
//
// View identifiers are prefixed ULIDs so they sort by creation time and read
// well in logs ("view_01J..."). Script request identifiers are random UUIDs:
// they only need to be unique and opaque to the content side.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ViewID identifies one embedded view for its whole lifetime
type ViewID string

// RequestID correlates a submitted script with its result
type RequestID string

const (
	ViewPrefix = "view"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by a monotonic crypto entropy source
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewViewID generates a new view ID
func NewViewID() ViewID {
	return ViewID(Default().GenerateWithPrefix(ViewPrefix))
}

// NewRequestID generates a new script request ID
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

func (v ViewID) String() string    { return string(v) }
func (r RequestID) String() string { return string(r) }

// IsValidView reports whether s has the "view_<ulid>" shape
func IsValidView(s string) bool {
	prefix, rest, ok := strings.Cut(s, "_")
	if !ok || prefix != ViewPrefix {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}

// IsValidRequest reports whether s is a well-formed request UUID
func IsValidRequest(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// CreatedAt extracts the creation time embedded in a view ID
func (v ViewID) CreatedAt() (time.Time, error) {
	_, rest, ok := strings.Cut(string(v), "_")
	if !ok {
		return time.Time{}, fmt.Errorf("malformed view id %q", v)
	}
	parsed, err := ulid.Parse(rest)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
