// Package app runs the host side of a viewbridge process.
//
// A Manager owns the host goroutine. Run ticks every surface at the frame
// rate; other goroutines marshal work onto it with Do:
//
//	m := app.NewManager(host, surface.DefaultConfig(), 60)
//	go func() {
//		_ = m.Do(ctx, func() error {
//			s, err := m.Get("hud")
//			if err != nil {
//				return err
//			}
//			return s.OpenURL("asset://hud/index.html")
//		})
//	}()
//	_ = m.Run(ctx)
//
// Script results, content events and load completions of every surface are
// published on the Bus.
package app
