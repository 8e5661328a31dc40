package models

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultLabel = "result"
)

var (
	sessionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "session_count",
		Help: "The number of navigation sessions.",
	})

	sessionCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_count_total",
		Help: "The total number of navigation sessions.",
	})

	sessionRouteUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_route_updates_total",
		Help: "The number of route computations triggered by start and end designations.",
	}, []string{resultLabel})
)

func instrumentIncreaseSessionGauge() {
	sessionCount.Inc()
}

func instrumentDecreaseSessionGauge() {
	sessionCount.Dec()
}

func instrumentCountSession() {
	sessionCountTotal.Inc()
}

func instrumentRouteUpdate(err error) {
	result := "found"
	if err != nil {
		result = errors.Type(err)
	}

	sessionRouteUpdates.
		With(prometheus.Labels{resultLabel: result}).
		Inc()
}
