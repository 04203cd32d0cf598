package feeds

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curafeed_refresh_total",
		Help: "The total number of refresh cycles by result",
	}, []string{"result"})

	profileFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curafeed_profile_fetch_failures_total",
		Help: "The total number of profiles whose posts could not be fetched",
	})

	feedPosts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curafeed_feed_posts",
		Help: "Number of posts in the last assembled feed",
	})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "curafeed_refresh_duration_seconds",
		Help:    "Duration of refresh cycles",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // Start at 50ms, double each bucket
	})

	cacheSaveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curafeed_cache_save_errors_total",
		Help: "The total number of failed feed cache writes",
	})
)
