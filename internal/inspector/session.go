package inspector

import (
	"io"
	"net/http"

	"github.com/GriffinCanCode/viewbridge/internal/app"
	"github.com/GriffinCanCode/viewbridge/internal/manifest"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxManifestBytes bounds an uploaded manifest.
const maxManifestBytes = 1 << 20

var manifestTypes = map[manifest.Format]string{
	manifest.FormatYAML: "application/yaml",
	manifest.FormatTOML: "application/toml",
}

func manifestFormat(c *gin.Context) (manifest.Format, bool) {
	format := manifest.Format(c.DefaultQuery("format", string(manifest.FormatYAML)))
	_, ok := manifestTypes[format]
	return format, ok
}

// snapshot turns the live views into a manifest that recreates them.
func snapshot(infos []app.Info) *manifest.Manifest {
	m := &manifest.Manifest{Views: make([]manifest.View, 0, len(infos))}
	for _, info := range infos {
		transparent, enabled := info.Transparent, info.Enabled
		m.Views = append(m.Views, manifest.View{
			Name:        info.Name,
			URL:         info.URL,
			Layer:       string(info.Layer),
			Width:       info.Width,
			Height:      info.Height,
			Transparent: &transparent,
			Enabled:     &enabled,
		})
	}
	return m
}

// ExportManifest writes the current views as a manifest. ?format=yaml|toml.
func (h *Handlers) ExportManifest(c *gin.Context) {
	format, ok := manifestFormat(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be yaml or toml"})
		return
	}

	data, err := manifest.Encode(snapshot(h.manager.List()), format)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, manifestTypes[format], data)
}

// ImportManifest spawns every view of an uploaded manifest. Views whose
// names exist already are skipped and reported.
func (h *Handlers) ImportManifest(c *gin.Context) {
	format, ok := manifestFormat(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be yaml or toml"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxManifestBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := manifest.Parse(data, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	spawned := []app.Info{}
	skipped := map[string]string{}
	err = h.manager.Do(c.Request.Context(), func() error {
		for _, v := range m.Views {
			info, err := h.manager.Spawn(v.Name, app.Layer(v.Layer), v.Surface(h.manager.Base()))
			if err != nil {
				skipped[v.Name] = err.Error()
				continue
			}
			spawned = append(spawned, info)
		}
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}

	h.log.Info("manifest imported", zap.Int("spawned", len(spawned)), zap.Int("skipped", len(skipped)))
	c.JSON(http.StatusOK, gin.H{"spawned": spawned, "skipped": skipped})
}
