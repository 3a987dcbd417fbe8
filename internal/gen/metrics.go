package gen

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	artifactsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bowstring_gen_artifacts_total",
		Help: "Total number of shim source files generated",
	})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bowstring_gen_cache_hits_total",
		Help: "Total number of generation runs satisfied from the build cache",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bowstring_gen_cache_misses_total",
		Help: "Total number of generation runs not present in the build cache",
	})
)
