package inspector

import (
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/viewbridge/internal/app"
	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"github.com/GriffinCanCode/viewbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/viewbridge/internal/manifest"
	"github.com/GriffinCanCode/viewbridge/internal/shared/id"
	"github.com/GriffinCanCode/viewbridge/internal/surface"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxScriptWait caps the wait query parameter of Script.
const maxScriptWait = 30 * time.Second

// Handlers contains the inspector HTTP handlers.
type Handlers struct {
	manager *app.Manager
	metrics *monitoring.Metrics
	log     *zap.Logger
	started time.Time
}

// NewHandlers creates a new handler set.
func NewHandlers(manager *app.Manager, metrics *monitoring.Metrics, log *zap.Logger) *Handlers {
	return &Handlers{manager: manager, metrics: metrics, log: log, started: time.Now()}
}

type navigateRequest struct {
	URL string `json:"url" binding:"required"`
}

type scriptRequest struct {
	Source string `json:"source" binding:"required"`
}

type sizeRequest struct {
	Width  int `json:"width" binding:"required"`
	Height int `json:"height" binding:"required"`
}

type flagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

// status maps domain errors onto HTTP codes.
func status(err error) int {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrExists):
		return http.StatusConflict
	case errors.Is(err, surface.ErrDisabled), errors.Is(err, bridge.ErrReleased):
		return http.StatusConflict
	case errors.Is(err, surface.ErrAssetDenied):
		return http.StatusForbidden
	case errors.Is(err, surface.ErrInvalidSize), errors.Is(err, app.ErrName), errors.Is(err, app.ErrLayer),
		errors.Is(err, errBadInput):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNotRunning), errors.Is(err, bridge.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(status(err), gin.H{"error": err.Error()})
}

// onSurface runs fn against the named surface on the host goroutine.
func (h *Handlers) onSurface(c *gin.Context, fn func(s *surface.Surface) error) error {
	name := c.Param("name")
	return h.manager.Do(c.Request.Context(), func() error {
		s, err := h.manager.Get(name)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

// Health reports liveness and manager statistics.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"manager": h.manager.Stats(),
	})
}

// Stats returns manager and worker counters.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"manager": h.manager.Stats(),
		"metrics": h.metrics.GetSnapshot(),
	})
}

// ListViews lists every view.
func (h *Handlers) ListViews(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"views": h.manager.List(),
		"stats": h.manager.Stats(),
	})
}

// GetView returns one view.
func (h *Handlers) GetView(c *gin.Context) {
	info, ok := h.manager.Info(c.Param("name"))
	if !ok {
		fail(c, app.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, info)
}

// SpawnView creates a view from a manifest entry.
func (h *Handlers) SpawnView(c *gin.Context) {
	var req manifest.View
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var info app.Info
	err := h.manager.Do(c.Request.Context(), func() error {
		var err error
		info, err = h.manager.Spawn(req.Name, app.Layer(req.Layer), req.Surface(h.manager.Base()))
		return err
	})
	if err != nil {
		fail(c, err)
		return
	}

	h.log.Info("view spawned via inspector", zap.String("surface", req.Name))
	c.JSON(http.StatusCreated, info)
}

// CloseView destroys a view.
func (h *Handlers) CloseView(c *gin.Context) {
	name := c.Param("name")
	err := h.manager.Do(c.Request.Context(), func() error {
		return h.manager.Close(name)
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Navigate opens a URL.
func (h *Handlers) Navigate(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.onSurface(c, func(s *surface.Surface) error { return s.OpenURL(req.URL) }); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"url": req.URL})
}

// Script queues source. With ?wait=<duration> it waits for the result.
func (h *Handlers) Script(c *gin.Context) {
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var wait time.Duration
	if raw := c.Query("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wait duration"})
			return
		}
		wait = min(d, maxScriptWait)
	}

	// Subscribe first so a fast result cannot be missed.
	var msgs <-chan app.Message
	if wait > 0 {
		ch, unsub := h.manager.Bus().Subscribe(64)
		defer unsub()
		msgs = ch
	}

	var reqID id.RequestID
	err := h.onSurface(c, func(s *surface.Surface) error {
		reqID = s.EvaluateJavaScript(req.Source)
		if reqID == "" {
			return surface.ErrDisabled
		}
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}

	if wait == 0 {
		c.JSON(http.StatusAccepted, gin.H{"request_id": reqID})
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				c.JSON(http.StatusServiceUnavailable, gin.H{"request_id": reqID, "error": "stream closed"})
				return
			}
			if msg.Type == app.MessageResult && msg.RequestID == reqID {
				c.JSON(http.StatusOK, msg)
				return
			}
		case <-timer.C:
			// Scripts without a value produce no result.
			c.JSON(http.StatusAccepted, gin.H{"request_id": reqID, "pending": true})
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// Resize changes a view's size.
func (h *Handlers) Resize(c *gin.Context) {
	var req sizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.onSurface(c, func(s *surface.Surface) error { return s.Resize(req.Width, req.Height) }); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"width": req.Width, "height": req.Height})
}

// SetTransparent switches the background mode.
func (h *Handlers) SetTransparent(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.onSurface(c, func(s *surface.Surface) error { return s.SetTransparent(*req.Value) }); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transparent": *req.Value})
}

// SetEnabled toggles a view.
func (h *Handlers) SetEnabled(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.onSurface(c, func(s *surface.Surface) error { return s.SetEnabled(*req.Value) }); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Value})
}
