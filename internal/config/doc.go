// Package config provides 12-factor configuration management for the view host.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Host: worker idle interval, capture rate, host frame rate, manifest path
//   - Engine: view limits, script and fetch timeouts, remote sanitising
//   - Surface: default view geometry and URL, asset scheme rewrite
//   - Inspector: debug HTTP API listen address
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting for the inspector
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("inspector on %s:%s\n", cfg.Inspector.Host, cfg.Inspector.Port)
//
// Environment Variables:
//   - VIEWHOST_IDLE_INTERVAL, VIEWHOST_CAPTURE_FPS, VIEWHOST_FRAME_RATE, VIEWHOST_MANIFEST
//   - ENGINE_MAX_VIEWS, ENGINE_SCRIPT_TIMEOUT, ENGINE_FETCH_TIMEOUT, ENGINE_MAX_DOCUMENT_BYTES
//   - ENGINE_SANITIZE_REMOTE, ENGINE_USER_AGENT, ENGINE_CONSOLE
//   - SURFACE_WIDTH, SURFACE_HEIGHT, SURFACE_DEFAULT_URL
//   - SURFACE_ASSET_SCHEME, SURFACE_CONTENT_ROOT, SURFACE_ASSET_ALLOW
//   - INSPECTOR_ENABLED, INSPECTOR_HOST, INSPECTOR_PORT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
