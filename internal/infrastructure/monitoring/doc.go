/*
Package monitoring provides Prometheus metrics for the view host.

# Overview

The worker service loop, the host frame loop and the inspector HTTP API all
record into one Metrics value. Metrics are registered on an injectable
prometheus.Registerer so tests can use a private registry.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	// Add middleware to the inspector router
	router.Use(monitoring.Middleware(metrics))

	// Time a host tick
	timer := monitoring.NewTimer()
	// ... consume results ...
	metrics.RecordHostTick(timer.Elapsed())

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
