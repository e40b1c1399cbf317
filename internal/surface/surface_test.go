package surface_test

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"github.com/GriffinCanCode/viewbridge/internal/bridge/bridgetest"
	"github.com/GriffinCanCode/viewbridge/internal/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHost(t *testing.T) (*bridge.Host, *bridgetest.Toolkit) {
	t.Helper()

	tk := bridgetest.NewToolkit()
	host := bridge.NewHost(bridge.Options{Toolkit: tk.Factory(), IdleInterval: time.Millisecond})
	require.NoError(t, host.Start())
	t.Cleanup(func() { _ = host.Stop() })
	return host, tk
}

func testConfig() surface.Config {
	cfg := surface.DefaultConfig()
	cfg.Width, cfg.Height = 32, 16
	return cfg
}

func newSurface(t *testing.T, host *bridge.Host, cfg surface.Config) *surface.Surface {
	t.Helper()

	s := surface.New(host, cfg)
	require.NoError(t, s.Initialize())
	t.Cleanup(s.Destroy)
	return s
}

// settle lets the worker apply what the surface queued and ticks again.
func settle(t *testing.T, host *bridge.Host, s *surface.Surface) {
	t.Helper()

	s.Tick()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, host.Sync(ctx))
	s.Tick()
}

func tickUntil(t *testing.T, host *bridge.Host, s *surface.Surface, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		settle(t, host, s)
		if cond() {
			return
		}
	}
	t.Fatal("condition not met before deadline")
}

func TestInitializeAppliesDefaults(t *testing.T) {
	host, tk := startHost(t)
	s := newSurface(t, host, testConfig())

	tickUntil(t, host, s, s.PageLoaded)

	e := tk.Engine(s.ID())
	require.NotNil(t, e)
	assert.Equal(t, []string{"transparent:true"}, e.Ops("transparent"))
	assert.Equal(t, []string{"resize:32x16"}, e.Ops("resize"))
	assert.Equal(t, []string{"navigate:about:blank"}, e.Ops("navigate"))
	assert.True(t, s.Enabled())
}

func TestDisabledSurfaceCreatesNoView(t *testing.T) {
	host, _ := startHost(t)

	cfg := testConfig()
	cfg.Enabled = false
	s := newSurface(t, host, cfg)

	assert.Empty(t, s.ID())
	assert.False(t, s.Enabled())
	assert.ErrorIs(t, s.OpenURL("about:blank"), surface.ErrDisabled)
	assert.Empty(t, s.EvaluateJavaScript("1"))
	assert.Empty(t, host.Views())

	require.NoError(t, s.SetEnabled(true))
	assert.NotEmpty(t, s.ID())
	tickUntil(t, host, s, s.PageLoaded)
}

func TestLoadFinishedFiresOncePerNavigation(t *testing.T) {
	host, _ := startHost(t)
	s := newSurface(t, host, testConfig())

	loads := 0
	s.OnLoadFinished(func() { loads++ })

	tickUntil(t, host, s, s.PageLoaded)
	settle(t, host, s)
	settle(t, host, s)
	assert.Equal(t, 1, loads)

	require.NoError(t, s.OpenURL("data:text/plain,next"))
	assert.False(t, s.PageLoaded())
	tickUntil(t, host, s, s.PageLoaded)
	settle(t, host, s)
	assert.Equal(t, 2, loads)
}

func TestFramesUploadToTexture(t *testing.T) {
	host, _ := startHost(t)
	s := newSurface(t, host, testConfig())
	tex := s.Sink().(*surface.Texture)

	tickUntil(t, host, s, func() bool { return tex.Frame() != nil })

	f := tex.Frame()
	assert.Equal(t, 32, f.Width)
	assert.Equal(t, 16, f.Height)
	assert.Len(t, f.Pix, 32*16*bridge.BytesPerPixel)
	assert.Positive(t, tex.Uploads())
}

func TestNoUploadWhileDisabled(t *testing.T) {
	host, _ := startHost(t)
	s := newSurface(t, host, testConfig())
	tex := s.Sink().(*surface.Texture)
	tickUntil(t, host, s, func() bool { return tex.Frame() != nil })

	require.NoError(t, s.SetEnabled(false))
	require.NoError(t, s.Resize(20, 10))
	assert.Nil(t, tex.Frame(), "resize resets the texture")

	for i := 0; i < 5; i++ {
		settle(t, host, s)
	}
	assert.Nil(t, tex.Frame())

	require.NoError(t, s.SetEnabled(true))
	tickUntil(t, host, s, func() bool { return tex.Frame() != nil })
	assert.Equal(t, 20, tex.Frame().Width)
	assert.Equal(t, 10, tex.Frame().Height)
}

func TestScriptResultsDispatched(t *testing.T) {
	host, _ := startHost(t)
	s := newSurface(t, host, testConfig())

	var results []bridge.ScriptResult
	s.OnScriptResult(func(r bridge.ScriptResult) { results = append(results, r) })

	reqID := s.EvaluateJavaScript("42")
	require.NotEmpty(t, reqID)

	tickUntil(t, host, s, func() bool { return len(results) > 0 })
	require.Len(t, results, 1)
	assert.Equal(t, reqID, results[0].RequestID)
	assert.Equal(t, "42", results[0].Value)
}

func TestOutputDroppedWhileDisabled(t *testing.T) {
	host, _ := startHost(t)
	s := newSurface(t, host, testConfig())

	var results []bridge.ScriptResult
	s.OnScriptResult(func(r bridge.ScriptResult) { results = append(results, r) })

	require.NotEmpty(t, s.EvaluateJavaScript("queued before disable"))
	require.NoError(t, s.SetEnabled(false))
	settle(t, host, s)
	settle(t, host, s)

	require.NoError(t, s.SetEnabled(true))
	settle(t, host, s)
	assert.Empty(t, results, "output drained while disabled is not replayed")
}

func TestScriptEventsDispatched(t *testing.T) {
	host, _ := startHost(t)
	s := newSurface(t, host, testConfig())

	var events []bridge.ScriptEvent
	s.OnScriptEvent(func(e bridge.ScriptEvent) { events = append(events, e) })

	s.EvaluateJavaScript("emit ready now")
	tickUntil(t, host, s, func() bool { return len(events) > 0 })
	assert.Equal(t, []bridge.ScriptEvent{{Name: "ready", Payload: "now"}}, events)
}

func TestMouseMoveForwardedOnlyOnChange(t *testing.T) {
	host, tk := startHost(t)
	s := newSurface(t, host, testConfig())
	settle(t, host, s)

	settle(t, host, s)
	e := tk.Engine(s.ID())
	require.NotNil(t, e)
	assert.Empty(t, e.Ops("mouse:"), "no position recorded yet")

	s.SetMousePosition(5, 5)
	settle(t, host, s)
	settle(t, host, s)
	assert.Equal(t, []string{"mouse:move@5,5"}, e.Ops("mouse:"))

	s.SetMousePosition(6, 5)
	settle(t, host, s)
	assert.Equal(t, []string{"mouse:move@5,5", "mouse:move@6,5"}, e.Ops("mouse:"))

	s.SetInputEnabled(false)
	s.SetMousePosition(7, 7)
	settle(t, host, s)
	assert.Len(t, e.Ops("mouse:"), 2)
}

func TestMouseButtonsConsume(t *testing.T) {
	host, tk := startHost(t)
	s := newSurface(t, host, testConfig())
	settle(t, host, s)

	s.SetMousePosition(3, 4)
	assert.False(t, s.InputMouseButton(bridge.ButtonLeft, surface.Pressed, 0), "not consumed by default")

	s.SetConsumeMouseInput(true)
	assert.True(t, s.InputMouseButton(bridge.ButtonLeft, surface.Pressed, 0))
	assert.False(t, s.InputMouseButton(bridge.ButtonLeft, surface.Released, 0), "releases are never consumed")
	assert.True(t, s.InputScroll(-1, 0))
	assert.False(t, s.InputScroll(0, 0))

	s.SetInputEnabled(false)
	assert.False(t, s.InputMouseButton(bridge.ButtonLeft, surface.Pressed, 0))

	settle(t, host, s)
	e := tk.Engine(s.ID())
	assert.Equal(t, []string{
		"mouse:press@3,4",
		"mouse:press@3,4",
		"mouse:release@3,4",
		"mouse:scroll@3,4",
	}, filterMoves(e.Ops("mouse:")))
}

func filterMoves(ops []string) []string {
	var out []string
	for _, op := range ops {
		if !strings.HasPrefix(op, "mouse:move") {
			out = append(out, op)
		}
	}
	return out
}

func TestKeysConsume(t *testing.T) {
	host, tk := startHost(t)
	s := newSurface(t, host, testConfig())
	settle(t, host, s)

	assert.False(t, s.InputKey("Shift", 0, "", surface.Pressed, bridge.ModShift), "modifiers alone are ignored")
	assert.False(t, s.InputKey("a", 'a', "a", surface.Pressed, 0))

	s.SetConsumeKeyboardInput(true)
	assert.True(t, s.InputKey("a", 'a', "a", surface.Repeat, 0))
	assert.False(t, s.InputKey("a", 'a', "a", surface.Released, 0))

	settle(t, host, s)
	assert.Equal(t, []string{"key:press:a", "key:repeat:a", "key:release:a"}, tk.Engine(s.ID()).Ops("key:"))
}

func TestOpenURLRewrites(t *testing.T) {
	host, tk := startHost(t)

	root := t.TempDir()
	rw, err := surface.NewSchemeRewriter("asset", root, []string{"**/*.html"})
	require.NoError(t, err)

	s := surface.New(host, testConfig()).WithRewriter(rw)
	require.NoError(t, s.Initialize())
	t.Cleanup(s.Destroy)
	settle(t, host, s)

	require.NoError(t, s.OpenURL("asset://ui/index.html"))
	assert.ErrorIs(t, s.OpenURL("asset://secret.txt"), surface.ErrAssetDenied)
	settle(t, host, s)

	want := (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(root, "ui", "index.html"))}).String()
	assert.Equal(t, []string{"navigate:about:blank", "navigate:" + want}, tk.Engine(s.ID()).Ops("navigate"))
}

func TestRewriterFunc(t *testing.T) {
	host, tk := startHost(t)

	s := surface.New(host, testConfig()).WithRewriter(surface.RewriterFunc(func(raw string) (string, error) {
		return raw + "#rewritten", nil
	}))
	require.NoError(t, s.Initialize())
	t.Cleanup(s.Destroy)
	settle(t, host, s)

	assert.Equal(t, []string{"navigate:about:blank#rewritten"}, tk.Engine(s.ID()).Ops("navigate"))
}

func TestResizeValidation(t *testing.T) {
	host, _ := startHost(t)
	s := newSurface(t, host, testConfig())

	assert.ErrorIs(t, s.Resize(0, 1), surface.ErrInvalidSize)
	assert.ErrorIs(t, s.Resize(1, surface.MaxDimension+1), surface.ErrInvalidSize)

	w, h := s.Size()
	assert.Equal(t, 32, w)
	assert.Equal(t, 16, h)
}

func TestDestroyReleasesView(t *testing.T) {
	host, _ := startHost(t)
	s := newSurface(t, host, testConfig())
	first := s.ID()

	s.Destroy()
	assert.Empty(t, s.ID())
	require.Eventually(t, func() bool { return len(host.Views()) == 0 }, 5*time.Second, time.Millisecond)

	require.NoError(t, s.SetEnabled(true))
	assert.NotEqual(t, first, s.ID())
}

func TestRefusedCommandsLeaveStateAlone(t *testing.T) {
	host, _ := startHost(t)
	s := newSurface(t, host, testConfig())
	s.SetConsumeMouseInput(true)
	s.SetConsumeKeyboardInput(true)
	settle(t, host, s)

	require.True(t, host.Unregister(s.ID()))

	assert.ErrorIs(t, s.SetEnabled(false), bridge.ErrReleased)
	assert.True(t, s.Enabled(), "a refused disable changes nothing")
	assert.ErrorIs(t, s.SetTransparent(false), bridge.ErrReleased)
	assert.True(t, s.Transparent())
	assert.ErrorIs(t, s.Resize(8, 8), bridge.ErrReleased)
	w, h := s.Size()
	assert.Equal(t, 32, w)
	assert.Equal(t, 16, h)

	assert.ErrorIs(t, s.OpenURL("about:blank"), bridge.ErrReleased)
	assert.Empty(t, s.EvaluateJavaScript("1"))
	assert.False(t, s.InputMouseButton(bridge.ButtonLeft, surface.Pressed, 0), "refused input is never consumed")
	assert.False(t, s.InputScroll(1, 0))
	assert.False(t, s.InputKey("a", 'a', "a", surface.Pressed, 0))
}

func TestSurfaceAfterHostStop(t *testing.T) {
	host, _ := startHost(t)
	s := newSurface(t, host, testConfig())
	settle(t, host, s)

	require.NoError(t, host.Stop())

	assert.False(t, s.Enabled())
	assert.ErrorIs(t, s.OpenURL("about:blank"), bridge.ErrStopped)
	assert.Empty(t, s.EvaluateJavaScript("1"))

	s.Tick()
	assert.True(t, s.Snapshot().Stopped)
	assert.False(t, s.Snapshot().Enabled)
}
