// Command viewhost runs a view host: a worker goroutine owning every
// content engine, a host frame loop ticking the surfaces, and an optional
// inspector HTTP API.
//
// Configuration comes from the environment (see internal/config). Views are
// created from the manifest named by -manifest or VIEWHOST_MANIFEST; without
// one a single view called "main" shows SURFACE_DEFAULT_URL.
//
// SIGINT or SIGTERM stops the frame loop, releases every surface and then
// stops the worker.
package main
