package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/GriffinCanCode/viewbridge/internal/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlManifest = `
views:
  - name: hud
    url: asset://hud/index.html
    width: 512
    height: 128
    consume_mouse: true
  - name: status
    url: about:blank
    layer: scene
    transparent: false
    input: false
`

const tomlManifest = `
[[views]]
name = "hud"
url = "asset://hud/index.html"
width = 512
height = 128
consume_mouse = true

[[views]]
name = "status"
url = "about:blank"
layer = "scene"
transparent = false
input = false
`

func TestParseFormats(t *testing.T) {
	for _, tc := range []struct {
		format Format
		data   string
	}{
		{FormatYAML, yamlManifest},
		{FormatTOML, tomlManifest},
	} {
		t.Run(string(tc.format), func(t *testing.T) {
			m, err := Parse([]byte(tc.data), tc.format)
			require.NoError(t, err)
			require.Len(t, m.Views, 2)

			hud := m.Views[0]
			assert.Equal(t, "hud", hud.Name)
			assert.Equal(t, "asset://hud/index.html", hud.URL)
			assert.Equal(t, 512, hud.Width)
			assert.Equal(t, 128, hud.Height)
			assert.True(t, hud.ConsumeMouse)
			assert.Nil(t, hud.Transparent)

			assert.Empty(t, hud.Layer)

			status := m.Views[1]
			assert.Equal(t, "scene", status.Layer)
			require.NotNil(t, status.Transparent)
			assert.False(t, *status.Transparent)
			require.NotNil(t, status.Input)
			assert.False(t, *status.Input)
		})
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("views:\n  - name: a\n    url: about:blank\n    colour: red\n"), FormatYAML)
	assert.Error(t, err)

	_, err = Parse([]byte("[[views]]\nname = \"a\"\nurl = \"about:blank\"\ncolour = \"red\"\n"), FormatTOML)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		views []View
		ok    bool
	}{
		{name: "empty manifest", ok: true},
		{name: "default size", views: []View{{Name: "a", URL: "about:blank"}}, ok: true},
		{name: "max size", views: []View{{Name: "a", URL: "about:blank", Width: MaxDimension, Height: MaxDimension}}, ok: true},
		{name: "missing name", views: []View{{URL: "about:blank"}}},
		{name: "missing url", views: []View{{Name: "a", URL: "  "}}},
		{name: "too wide", views: []View{{Name: "a", URL: "about:blank", Width: MaxDimension + 1}}},
		{name: "negative height", views: []View{{Name: "a", URL: "about:blank", Height: -1}}},
		{name: "scene layer", views: []View{{Name: "a", URL: "about:blank", Layer: "scene"}}, ok: true},
		{name: "unknown layer", views: []View{{Name: "a", URL: "about:blank", Layer: "floor"}}},
		{name: "duplicate", views: []View{{Name: "a", URL: "about:blank"}, {Name: "a", URL: "about:blank"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Manifest{Views: tt.views}).Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateReportsEveryEntry(t *testing.T) {
	err := (&Manifest{Views: []View{{URL: "about:blank"}, {Name: "b"}}}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "views[0]")
	assert.Contains(t, err.Error(), "views[1]")
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{
		"views.yaml": FormatYAML,
		"views.YML":  FormatYAML,
		"views.toml": FormatTOML,
	} {
		got, err := FormatOf(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatOf("views.json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "views.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlManifest), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Views, 2)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("views:\n  - url: about:blank\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "name is required")
}

func TestEncodeReadsBack(t *testing.T) {
	off := false
	m := &Manifest{Views: []View{{Name: "a", URL: "about:blank", Layer: "scene", Width: 64, Enabled: &off}}}

	for _, format := range []Format{FormatYAML, FormatTOML} {
		data, err := Encode(m, format)
		require.NoError(t, err)

		back, err := Parse(data, format)
		require.NoError(t, err, string(data))
		assert.Equal(t, m, back)
	}
}

func TestSurfaceOverlay(t *testing.T) {
	on, off := true, false
	base := surface.DefaultConfig()

	c := View{Name: "a", URL: "about:blank"}.Surface(base)
	assert.Equal(t, base.Width, c.Width)
	assert.Equal(t, base.Transparent, c.Transparent)
	assert.Equal(t, "about:blank", c.DefaultURL)

	c = View{
		Name: "b", URL: "data:text/plain,x", Width: 10, Height: 20,
		Transparent: &off, Enabled: &off, Input: &off, ConsumeKeyboard: true,
	}.Surface(base)
	assert.Equal(t, surface.Config{
		Width: 10, Height: 20, DefaultURL: "data:text/plain,x",
		Transparent: false, Enabled: false, InputEnabled: false, ConsumeKeyboard: true,
	}, c)

	c = View{Name: "c", URL: "about:blank", Transparent: &on}.Surface(base)
	assert.True(t, c.Transparent)
}
