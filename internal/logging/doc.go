// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// The view worker, the host frame loop and the inspector all log through a
// *zap.Logger obtained from this package. Per-view loggers carry the view ID
// as a structured field so one view's history can be filtered out of a busy
// log:
//
//	logger := logging.NewDefault()
//	viewLog := logger.ForView("view_01J...")
//	viewLog.Debug("navigation applied", zap.String("url", url))
package logging
