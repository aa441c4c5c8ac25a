package distill

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	nodesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distill_nodes_processed_total",
		Help: "Number of groups and pictures processed by exports",
	})
	picturesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distill_pictures_rendered_total",
		Help: "Number of pictures written as lowres and midres",
	})
	brokenPictures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distill_broken_pictures_total",
		Help: "Number of pictures replaced by the broken placeholder",
	})
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distill_render_cache_hits_total",
		Help: "Number of scaled pictures reused from the render cache",
	})
	exportFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distill_export_failures_total",
		Help: "Number of per-node failures reported during exports",
	})
	exportsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "distill_exports_total",
		Help: "Number of finished exports by status",
	}, []string{"status"})
	exportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "distill_export_duration_seconds",
		Help:    "Wall time of export runs",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)
