package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Host      HostConfig
	Engine    EngineConfig
	Surface   SurfaceConfig
	Inspector InspectorConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// HostConfig holds worker loop and host frame loop settings.
type HostConfig struct {
	IdleInterval time.Duration `envconfig:"VIEWHOST_IDLE_INTERVAL" default:"8ms"`
	CaptureFPS   float64       `envconfig:"VIEWHOST_CAPTURE_FPS" default:"60"`
	FrameRate    int           `envconfig:"VIEWHOST_FRAME_RATE" default:"60"`
	Manifest     string        `envconfig:"VIEWHOST_MANIFEST" default:""`
}

// EngineConfig holds content engine settings.
type EngineConfig struct {
	MaxViews         int           `envconfig:"ENGINE_MAX_VIEWS" default:"32"`
	ScriptTimeout    time.Duration `envconfig:"ENGINE_SCRIPT_TIMEOUT" default:"5s"`
	FetchTimeout     time.Duration `envconfig:"ENGINE_FETCH_TIMEOUT" default:"30s"`
	FetchRetries     int           `envconfig:"ENGINE_FETCH_RETRIES" default:"2"`
	MaxDocumentBytes int64         `envconfig:"ENGINE_MAX_DOCUMENT_BYTES" default:"10485760"`
	SanitizeRemote   bool          `envconfig:"ENGINE_SANITIZE_REMOTE" default:"false"`
	UserAgent        string        `envconfig:"ENGINE_USER_AGENT" default:"viewbridge/1.0"`
	Console          bool          `envconfig:"ENGINE_CONSOLE" default:"true"`
}

// SurfaceConfig holds host-side view defaults.
type SurfaceConfig struct {
	Width       int      `envconfig:"SURFACE_WIDTH" default:"256"`
	Height      int      `envconfig:"SURFACE_HEIGHT" default:"256"`
	DefaultURL  string   `envconfig:"SURFACE_DEFAULT_URL" default:"about:blank"`
	AssetScheme string   `envconfig:"SURFACE_ASSET_SCHEME" default:"asset"`
	ContentRoot string   `envconfig:"SURFACE_CONTENT_ROOT" default:"."`
	AssetAllow  []string `envconfig:"SURFACE_ASSET_ALLOW" default:"**/*"`
}

// InspectorConfig holds debug HTTP API configuration.
type InspectorConfig struct {
	Enabled bool   `envconfig:"INSPECTOR_ENABLED" default:"true"`
	Host    string `envconfig:"INSPECTOR_HOST" default:"127.0.0.1"`
	Port    string `envconfig:"INSPECTOR_PORT" default:"8090"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values the worker loop cannot run with.
func (c *Config) Validate() error {
	if c.Host.IdleInterval <= 0 {
		return fmt.Errorf("idle interval must be positive, got %s", c.Host.IdleInterval)
	}
	if c.Host.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %d", c.Host.FrameRate)
	}
	if c.Engine.MaxViews <= 0 {
		return fmt.Errorf("max views must be positive, got %d", c.Engine.MaxViews)
	}
	if c.Engine.FetchRetries < 0 {
		return fmt.Errorf("fetch retries must not be negative, got %d", c.Engine.FetchRetries)
	}
	if c.Surface.Width < 0 || c.Surface.Height < 0 {
		return fmt.Errorf("surface size must not be negative, got %dx%d", c.Surface.Width, c.Surface.Height)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Host: HostConfig{
			IdleInterval: 8 * time.Millisecond,
			CaptureFPS:   60,
			FrameRate:    60,
		},
		Engine: EngineConfig{
			MaxViews:         32,
			ScriptTimeout:    5 * time.Second,
			FetchTimeout:     30 * time.Second,
			FetchRetries:     2,
			MaxDocumentBytes: 10 * 1024 * 1024,
			UserAgent:        "viewbridge/1.0",
			Console:          true,
		},
		Surface: SurfaceConfig{
			Width:       256,
			Height:      256,
			DefaultURL:  "about:blank",
			AssetScheme: "asset",
			ContentRoot: ".",
			AssetAllow:  []string{"**/*"},
		},
		Inspector: InspectorConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    "8090",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
