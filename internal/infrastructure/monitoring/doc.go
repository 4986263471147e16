/*
Package monitoring provides Prometheus metrics for the workspace client.

# Overview

Metrics cover the streaming chat transport (frames by code, dropped lines,
reconnects, connection state), REST calls to the workspace backend, and the
HTTP traffic served by the mock backend.

Collectors are registered on an injected prometheus.Registerer so several
instances can coexist in one process (tests, CLI plus mock server).

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	timer := monitoring.NewTimer(metrics, "GET", "/runs")
	// ... perform call ...
	timer.Stop("200")
*/
package monitoring
