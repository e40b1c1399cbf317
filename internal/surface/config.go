package surface

import "github.com/GriffinCanCode/viewbridge/internal/config"

// MaxDimension bounds either side of a surface in pixels.
const MaxDimension = 8192

// Config is the initial state of a Surface.
type Config struct {
	Width           int
	Height          int
	DefaultURL      string
	Transparent     bool
	Enabled         bool
	InputEnabled    bool
	ConsumeMouse    bool
	ConsumeKeyboard bool
}

// DefaultConfig returns a 256x256 transparent, enabled surface showing
// about:blank.
func DefaultConfig() Config {
	return Config{
		Width:        256,
		Height:       256,
		DefaultURL:   "about:blank",
		Transparent:  true,
		Enabled:      true,
		InputEnabled: true,
	}
}

// FromConfig maps application configuration onto surface defaults.
func FromConfig(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg.Surface.Width > 0 {
		c.Width = cfg.Surface.Width
	}
	if cfg.Surface.Height > 0 {
		c.Height = cfg.Surface.Height
	}
	if cfg.Surface.DefaultURL != "" {
		c.DefaultURL = cfg.Surface.DefaultURL
	}
	return c
}
