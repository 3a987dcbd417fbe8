package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bowstring_dispatch_lookup_hits_total",
		Help: "Total number of successful routine lookups",
	})

	lookupMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bowstring_dispatch_lookup_misses_total",
		Help: "Total number of failed routine lookups by reason",
	}, []string{"reason"})
)
