/*
Package monitoring provides Prometheus metrics for the remote host.

# Overview

Metrics cover action throughput and latency, lifecycle event delivery,
resource-limit trips, queue saturation, subscriber counts, script timers
and the admin HTTP endpoints. All collectors are registered on a private
registry so tests can build as many Metrics values as they like.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	timer := monitoring.NewTimer(metrics, "media/vlc")
	// ... run the action ...
	timer.Stop("success")

A nil *Metrics is valid and records nothing.
*/
package monitoring
