package engine

import (
	"time"

	"github.com/GriffinCanCode/viewbridge/internal/config"
)

// MaxDimension bounds either side of a page viewport in pixels.
const MaxDimension = 8192

// Config defines engine behaviour shared by every page.
type Config struct {
	MaxViews         int           // Pages alive at once
	ScriptTimeout    time.Duration // Per evaluation, including listeners
	FetchTimeout     time.Duration // Per remote or file load
	FetchRetries     int           // Retries for remote loads
	MaxDocumentBytes int64         // Larger documents are truncated
	SanitizeRemote   bool          // Run remote HTML through bluemonday
	UserAgent        string
	Console          bool // Expose console.* to content
	DefaultWidth     int
	DefaultHeight    int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxViews:         32,
		ScriptTimeout:    5 * time.Second,
		FetchTimeout:     30 * time.Second,
		FetchRetries:     2,
		MaxDocumentBytes: 10 * 1024 * 1024,
		UserAgent:        "viewbridge/1.0",
		Console:          true,
		DefaultWidth:     256,
		DefaultHeight:    256,
	}
}

// FromConfig maps application configuration onto the engine.
func FromConfig(cfg *config.Config) Config {
	return Config{
		MaxViews:         cfg.Engine.MaxViews,
		ScriptTimeout:    cfg.Engine.ScriptTimeout,
		FetchTimeout:     cfg.Engine.FetchTimeout,
		FetchRetries:     cfg.Engine.FetchRetries,
		MaxDocumentBytes: cfg.Engine.MaxDocumentBytes,
		SanitizeRemote:   cfg.Engine.SanitizeRemote,
		UserAgent:        cfg.Engine.UserAgent,
		Console:          cfg.Engine.Console,
		DefaultWidth:     cfg.Surface.Width,
		DefaultHeight:    cfg.Surface.Height,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxViews <= 0 {
		c.MaxViews = d.MaxViews
	}
	if c.ScriptTimeout <= 0 {
		c.ScriptTimeout = d.ScriptTimeout
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.FetchRetries < 0 {
		c.FetchRetries = 0
	}
	if c.MaxDocumentBytes <= 0 {
		c.MaxDocumentBytes = d.MaxDocumentBytes
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.DefaultWidth <= 0 {
		c.DefaultWidth = d.DefaultWidth
	}
	if c.DefaultHeight <= 0 {
		c.DefaultHeight = d.DefaultHeight
	}
	return c
}
