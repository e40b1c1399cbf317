package inspector

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/viewbridge/internal/app"
	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"github.com/GriffinCanCode/viewbridge/internal/bridge/bridgetest"
	"github.com/GriffinCanCode/viewbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/viewbridge/internal/surface"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 5 * time.Second

type fixture struct {
	manager *app.Manager
	server  *Server
}

func newFixture(t *testing.T, run bool, mutate func(*Options)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tk := bridgetest.NewToolkit()
	host := bridge.NewHost(bridge.Options{Toolkit: tk.Factory(), IdleInterval: time.Millisecond})
	require.NoError(t, host.Start())
	t.Cleanup(func() { _ = host.Stop() })

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	base := surface.DefaultConfig()
	base.Width, base.Height = 16, 8
	manager := app.NewManager(host, base, 200).WithMetrics(metrics)

	if run {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = manager.Run(ctx)
			close(done)
		}()
		t.Cleanup(func() {
			cancel()
			<-done
		})
		require.Eventually(t, func() bool { return manager.Ticks() > 0 }, waitFor, time.Millisecond)
	}

	opts := Options{Manager: manager, Metrics: metrics, Gatherer: reg, CORS: DefaultCORSConfig(), Development: true}
	if mutate != nil {
		mutate(&opts)
	}
	return &fixture{manager: manager, server: NewServer(opts)}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func (f *fixture) spawn(t *testing.T, body map[string]any) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/views", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	f := newFixture(t, true, nil)

	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decode(t, w, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "manager")
}

func TestViewLifecycle(t *testing.T) {
	f := newFixture(t, true, nil)

	w := f.do(t, http.MethodPost, "/views", map[string]any{"name": "hud", "url": "about:blank", "width": 32, "height": 16})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var info app.Info
	decode(t, w, &info)
	assert.Equal(t, "hud", info.Name)
	assert.Equal(t, 32, info.Width)
	assert.NotEmpty(t, info.ID)

	w = f.do(t, http.MethodPost, "/views", map[string]any{"name": "hud", "url": "about:blank"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/views", map[string]any{"name": "nourl"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/views", map[string]any{"name": "huge", "url": "about:blank", "width": 5000})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/views", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Views []app.Info `json:"views"`
		Stats app.Stats  `json:"stats"`
	}
	decode(t, w, &list)
	require.Len(t, list.Views, 1)
	assert.Equal(t, 1, list.Stats.TotalViews)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/views/hud", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/views/nope", nil).Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/views/hud", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/views/hud", nil).Code)
}

func TestManagerNotRunning(t *testing.T) {
	f := newFixture(t, false, nil)

	w := f.do(t, http.MethodPost, "/views", map[string]any{"name": "hud", "url": "about:blank"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestScriptWaitsForResult(t *testing.T) {
	f := newFixture(t, true, nil)
	f.spawn(t, map[string]any{"name": "hud", "url": "about:blank"})

	w := f.do(t, http.MethodPost, "/views/hud/script?wait=3s", map[string]any{"source": "21"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var msg app.Message
	decode(t, w, &msg)
	assert.Equal(t, app.MessageResult, msg.Type)
	assert.Equal(t, "21", msg.Value)
	assert.NotEmpty(t, msg.RequestID)

	w = f.do(t, http.MethodPost, "/views/hud/script", map[string]any{"source": "1"})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = f.do(t, http.MethodPost, "/views/hud/script?wait=100ms", map[string]any{"source": "emit x y"})
	assert.Equal(t, http.StatusAccepted, w.Code, "no value means no result")

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/views/hud/script", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/views/hud/script?wait=soon", map[string]any{"source": "1"}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/views/nope/script", map[string]any{"source": "1"}).Code)
}

func TestDisabledView(t *testing.T) {
	f := newFixture(t, true, nil)
	f.spawn(t, map[string]any{"name": "hud", "url": "about:blank"})

	w := f.do(t, http.MethodPut, "/views/hud/enabled", map[string]any{"value": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/views/hud/script", map[string]any{"source": "1"}).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/views/hud/navigate", map[string]any{"url": "about:blank"}).Code)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/views/hud/enabled", map[string]any{}).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/views/hud/enabled", map[string]any{"value": true}).Code)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/views/hud/navigate", map[string]any{"url": "about:blank"}).Code)
}

func TestResizeAndFrames(t *testing.T) {
	f := newFixture(t, true, nil)
	f.spawn(t, map[string]any{"name": "hud", "url": "about:blank"})

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/views/hud/size", map[string]any{"width": -1, "height": 2}).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/views/hud/size", map[string]any{"width": 20, "height": 10}).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/views/hud/transparent", map[string]any{"value": false}).Code)

	require.Eventually(t, func() bool {
		frame, ok := f.manager.Frame("hud")
		return ok && frame != nil && frame.Width == 20
	}, waitFor, time.Millisecond)

	w := f.do(t, http.MethodGet, "/views/hud/frame?format=raw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "20", w.Header().Get(HeaderFrameWidth))
	assert.Equal(t, "10", w.Header().Get(HeaderFrameHeight))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	pix, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Len(t, pix, 20*10*bridge.BytesPerPixel)

	w = f.do(t, http.MethodGet, "/views/hud/frame", nil)
	require.Equal(t, http.StatusOK, w.Code)
	img, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())

	w = f.do(t, http.MethodGet, "/views/hud/frame?format=bmp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/bmp", w.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/views/hud/frame?format=gif", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/views/nope/frame", nil).Code)
}

func TestMouseAndKey(t *testing.T) {
	f := newFixture(t, true, nil)
	f.spawn(t, map[string]any{"name": "hud", "url": "about:blank", "consume_mouse": true})

	consumed := func(w *httptest.ResponseRecorder) bool {
		t.Helper()
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var body struct {
			Consumed bool `json:"consumed"`
		}
		decode(t, w, &body)
		return body.Consumed
	}

	assert.True(t, consumed(f.do(t, http.MethodPost, "/views/hud/mouse", map[string]any{"x": 1, "y": 2, "action": "press"})))
	assert.False(t, consumed(f.do(t, http.MethodPost, "/views/hud/mouse", map[string]any{"x": 1, "y": 2, "action": "release"})))
	assert.False(t, consumed(f.do(t, http.MethodPost, "/views/hud/mouse", map[string]any{"x": 3, "y": 3, "action": "move"})))
	assert.True(t, consumed(f.do(t, http.MethodPost, "/views/hud/mouse", map[string]any{"action": "scroll", "delta": 1, "modifiers": []string{"shift"}})))

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/views/hud/mouse", map[string]any{"action": "wiggle"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/views/hud/mouse", map[string]any{"action": "press", "button": "fourth"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/views/hud/mouse", map[string]any{"action": "press", "modifiers": []string{"hyper"}}).Code)

	assert.False(t, consumed(f.do(t, http.MethodPost, "/views/hud/key", map[string]any{"key": "a"})))
	assert.False(t, consumed(f.do(t, http.MethodPost, "/views/hud/key", map[string]any{"key": "Shift"})))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/views/hud/key", map[string]any{"key": "a", "action": "tap"}).Code)
}

func TestRoutedInput(t *testing.T) {
	f := newFixture(t, true, nil)
	f.spawn(t, map[string]any{"name": "world", "url": "about:blank", "layer": "scene", "consume_mouse": true, "consume_keyboard": true})
	f.spawn(t, map[string]any{"name": "menu", "url": "about:blank", "consume_keyboard": true})

	routed := func(w *httptest.ResponseRecorder) (bool, string) {
		t.Helper()
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var body struct {
			Consumed bool   `json:"consumed"`
			View     string `json:"view"`
		}
		decode(t, w, &body)
		return body.Consumed, body.View
	}

	consumed, view := routed(f.do(t, http.MethodPost, "/input/mouse", map[string]any{"x": 1, "y": 1, "action": "click"}))
	assert.True(t, consumed)
	assert.Equal(t, "world", view, "the HUD view does not consume mouse input")

	consumed, view = routed(f.do(t, http.MethodPost, "/input/key", map[string]any{"key": "a"}))
	assert.True(t, consumed)
	assert.Equal(t, "menu", view, "HUD views are offered keys first")

	consumed, view = routed(f.do(t, http.MethodPost, "/input/key", map[string]any{"key": "a", "action": "release"}))
	assert.False(t, consumed)
	assert.Empty(t, view)

	var info app.Info
	w := f.do(t, http.MethodGet, "/views/world", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &info)
	assert.Equal(t, app.LayerScene, info.Layer)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/views", map[string]any{"name": "x", "url": "about:blank", "layer": "floor"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/input/mouse", map[string]any{"action": "wiggle"}).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, true, nil)
	f.do(t, http.MethodGet, "/health", nil)

	w := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "viewhost_http_requests_total")
	assert.Contains(t, w.Body.String(), "viewhost_host_ticks_total")
}

func TestServerRateLimit(t *testing.T) {
	f := newFixture(t, false, func(o *Options) {
		o.RateLimit = &RateLimitConfig{RequestsPerSecond: 1, Burst: 1}
	})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodGet, "/health", nil).Code)
}

func TestStream(t *testing.T) {
	f := newFixture(t, true, nil)
	f.spawn(t, map[string]any{"name": "hud", "url": "about:blank"})

	srv := httptest.NewServer(f.server.Handler())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/stream?view=hud", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))

	read := func() map[string]any {
		t.Helper()
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	// Bus messages may interleave with replies.
	readUntil := func(typ string) map[string]any {
		t.Helper()
		for {
			if msg := read(); msg["type"] == typ {
				return msg
			}
		}
	}

	assert.Equal(t, "system", read()["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	readUntil("pong")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "script", "view": "hud", "source": "99"}))

	var queued, result map[string]any
	for queued == nil || result == nil {
		msg := read()
		switch msg["type"] {
		case "queued":
			queued = msg
		case string(app.MessageResult):
			result = msg
		}
	}
	assert.Equal(t, queued["request_id"], result["request_id"])
	assert.Equal(t, "99", result["value"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "bogus"}))
	assert.Equal(t, "unknown message type", readUntil("error")["message"])
}
