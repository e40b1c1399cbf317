package inspector

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GriffinCanCode/viewbridge/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestExportImport(t *testing.T) {
	f := newFixture(t, true, nil)
	f.spawn(t, map[string]any{"name": "hud", "url": "data:text/plain,hi", "width": 24, "height": 12})

	w := f.do(t, http.MethodGet, "/manifest?format=toml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/toml", w.Header().Get("Content-Type"))

	m, err := manifest.Parse(w.Body.Bytes(), manifest.FormatTOML)
	require.NoError(t, err, w.Body.String())
	require.Len(t, m.Views, 1)
	assert.Equal(t, "hud", m.Views[0].Name)
	assert.Equal(t, "data:text/plain,hi", m.Views[0].URL)
	assert.Equal(t, 24, m.Views[0].Width)

	body := []byte("views:\n  - name: hud\n    url: about:blank\n  - name: status\n    url: about:blank\n")
	req := httptest.NewRequest(http.MethodPost, "/manifest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Spawned []map[string]any  `json:"spawned"`
		Skipped map[string]string `json:"skipped"`
	}
	decode(t, rec, &result)
	require.Len(t, result.Spawned, 1)
	assert.Equal(t, "status", result.Spawned[0]["name"])
	assert.Contains(t, result.Skipped, "hud")

	assert.Len(t, f.manager.List(), 2)
}

func TestManifestBadRequests(t *testing.T) {
	f := newFixture(t, true, nil)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/manifest?format=ini", nil).Code)

	req := httptest.NewRequest(http.MethodPost, "/manifest", bytes.NewReader([]byte("views:\n  - url: about:blank\n")))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
