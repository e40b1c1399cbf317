// Package surface is the host-side component of a view: it owns a
// bridge.Handle, applies defaults, gates input and, once per host frame,
// moves the latest frame into a FrameSink and delivers script output to
// subscribers.
//
// Frames are not uploaded while a resize is still pending or while the
// surface is disabled. Load completion fires once per OpenURL.
//
// asset:// URLs can be mapped into a content directory with SchemeRewriter:
//
//	rw, _ := surface.NewSchemeRewriter("asset", "./ui", []string{"**/*.html", "img/**"})
//	s := surface.New(host, surface.DefaultConfig()).WithRewriter(rw)
//	_ = s.Initialize()
//	_ = s.OpenURL("asset://menu/index.html")
package surface
