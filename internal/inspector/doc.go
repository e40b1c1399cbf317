// Package inspector serves a debugging HTTP API for a running view host.
//
// Routes:
//
//	GET    /health                  liveness and manager stats
//	GET    /stats                   manager stats and worker counters
//	GET    /views                   list views
//	POST   /views                   spawn a view (manifest entry as JSON)
//	GET    /views/:name             one view
//	DELETE /views/:name             close a view
//	POST   /views/:name/navigate    {"url": ...}
//	POST   /views/:name/script      {"source": ...}, ?wait=2s waits for the result
//	PUT    /views/:name/size        {"width": ..., "height": ...}
//	PUT    /views/:name/transparent {"value": bool}
//	PUT    /views/:name/enabled     {"value": bool}
//	POST   /views/:name/mouse       {"x", "y", "action", "button", "delta", "modifiers"}
//	POST   /views/:name/key         {"key", "text", "action", "modifiers"}
//	GET    /views/:name/frame       ?format=png|bmp|raw
//	POST   /input/mouse             mouse input routed HUD views first, then scene views
//	POST   /input/key               key input routed the same way; reports the consuming view
//	GET    /manifest                current views as a manifest, ?format=yaml|toml
//	POST   /manifest                spawn the views of an uploaded manifest
//	GET    /metrics                 Prometheus exposition
//	GET    /stream                  websocket of results, events and loads
//
// Handlers never touch a surface directly; everything goes through
// app.Manager.Do.
package inspector
