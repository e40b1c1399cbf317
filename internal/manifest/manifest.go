package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/viewbridge/internal/app"
	"github.com/GriffinCanCode/viewbridge/internal/surface"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// MaxDimension bounds manifest view sizes.
const MaxDimension = 4096

// ErrUnsupportedFormat is returned for files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("manifest: unsupported format")

// Format selects the manifest decoder.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Manifest lists the views created at startup.
type Manifest struct {
	Views []View `yaml:"views" toml:"views" json:"views"`
}

// View is one manifest entry. Unset fields fall back to the surface
// defaults.
type View struct {
	Name            string `yaml:"name" toml:"name" json:"name"`
	URL             string `yaml:"url" toml:"url" json:"url"`
	Layer           string `yaml:"layer,omitempty" toml:"layer,omitempty" json:"layer,omitempty"`
	Width           int    `yaml:"width,omitempty" toml:"width,omitempty" json:"width,omitempty"`
	Height          int    `yaml:"height,omitempty" toml:"height,omitempty" json:"height,omitempty"`
	Transparent     *bool  `yaml:"transparent,omitempty" toml:"transparent,omitempty" json:"transparent,omitempty"`
	Enabled         *bool  `yaml:"enabled,omitempty" toml:"enabled,omitempty" json:"enabled,omitempty"`
	Input           *bool  `yaml:"input,omitempty" toml:"input,omitempty" json:"input,omitempty"`
	ConsumeMouse    bool   `yaml:"consume_mouse,omitempty" toml:"consume_mouse,omitempty" json:"consume_mouse,omitempty"`
	ConsumeKeyboard bool   `yaml:"consume_keyboard,omitempty" toml:"consume_keyboard,omitempty" json:"consume_keyboard,omitempty"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read failed: %w", err)
	}

	m, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a manifest. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Manifest, error) {
	var m Manifest

	switch format {
	case FormatYAML:
		if err := yaml.UnmarshalWithOptions(data, &m, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("manifest: YAML parse error: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("manifest: TOML parse error: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Encode writes m in the given format.
func Encode(m *Manifest, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(m)
	case FormatTOML:
		return toml.Marshal(m)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Validate reports every invalid entry at once.
func (m *Manifest) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(m.Views))

	for i, v := range m.Views {
		if err := v.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("views[%d]: %w", i, err))
		}
		if v.Name != "" {
			if seen[v.Name] {
				errs = append(errs, fmt.Errorf("views[%d]: duplicate name %q", i, v.Name))
			}
			seen[v.Name] = true
		}
	}
	return errors.Join(errs...)
}

// Validate checks one entry. A zero size means the default.
func (v View) Validate() error {
	if v.Name == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(v.URL) == "" {
		return fmt.Errorf("view %q: url is required", v.Name)
	}
	if v.Width < 0 || v.Width > MaxDimension || v.Height < 0 || v.Height > MaxDimension {
		return fmt.Errorf("view %q: size %dx%d outside 1..%d", v.Name, v.Width, v.Height, MaxDimension)
	}
	if _, err := app.ParseLayer(v.Layer); err != nil {
		return fmt.Errorf("view %q: %w", v.Name, err)
	}
	return nil
}

// Surface applies the entry on top of base.
func (v View) Surface(base surface.Config) surface.Config {
	c := base
	c.DefaultURL = v.URL
	if v.Width > 0 {
		c.Width = v.Width
	}
	if v.Height > 0 {
		c.Height = v.Height
	}
	if v.Transparent != nil {
		c.Transparent = *v.Transparent
	}
	if v.Enabled != nil {
		c.Enabled = *v.Enabled
	}
	if v.Input != nil {
		c.InputEnabled = *v.Input
	}
	c.ConsumeMouse = v.ConsumeMouse
	c.ConsumeKeyboard = v.ConsumeKeyboard
	return c
}
