// Package metrics exposes Prometheus collectors for bounded command
// invocations.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deixis/ohosbuild/internal/runner"
)

var (
	NameSpace = "ohosbuild"
	Subsystem = "runner"

	// Invocations counts finished invocations by outcome
	Invocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "invocations_total"),
		Help: "How many commands the runner finished, by outcome",
	}, []string{"outcome"})

	// Duration is a summary of the wall time of invocations by outcome
	Duration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "duration_seconds"),
		Help: "Time taken by runner invocations, by outcome",
	}, []string{"outcome"})

	registerOnce sync.Once
)

// Register adds the collectors to the default registry. Calling it more
// than once is harmless.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(Invocations)
		prometheus.MustRegister(Duration)
	})
}

// Observe records a finished invocation. It matches the runner's
// observer hook.
func Observe(res *runner.Result) {
	outcome := string(res.Outcome())
	Invocations.WithLabelValues(outcome).Inc()
	Duration.WithLabelValues(outcome).Observe(res.Duration.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
