package pathfinder

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultLabel = "result"

	resultFound = "found"
)

var (
	pathfinderSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathfinder_searches_total",
		Help: "The number of path searches by result.",
	}, []string{
		resultLabel,
	})

	pathfinderSearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "pathfinder_search_duration_seconds",
		Help: "The time to run a path search.",
	}, []string{
		resultLabel,
	})

	pathfinderExpandedNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pathfinder_expanded_nodes",
		Help:    "The number of cells expanded by a path search.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
)

func instrumentSearch(start time.Time, expanded int, err error) {
	result := resultFound
	if err != nil {
		result = errors.Type(err)
	}

	pathfinderSearches.
		With(prometheus.Labels{resultLabel: result}).
		Inc()
	pathfinderSearchDuration.
		With(prometheus.Labels{resultLabel: result}).
		Observe(time.Since(start).Seconds())
	pathfinderExpandedNodes.Observe(float64(expanded))
}
