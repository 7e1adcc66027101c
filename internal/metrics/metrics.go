// Package metrics exposes supply list mutation and persistence counters in
// Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts controller outcomes on its own registry so tests and
// multiple servers in one process never collide on registration.
type Recorder struct {
	registry  *prometheus.Registry
	mutations *prometheus.CounterVec
	saves     *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supplylist",
			Name:      "mutations_total",
			Help:      "Mutations by operation and result (applied, rejected, noop).",
		}, []string{"op", "result"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supplylist",
			Name:      "saves_total",
			Help:      "Attempts to persist the aggregate by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		r.mutations,
		r.saves,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveMutation(op, result string) {
	r.mutations.WithLabelValues(op, result).Inc()
}

func (r *Recorder) ObserveSave(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.saves.WithLabelValues(result).Inc()
}

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
