package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speedwagon-io/co2hook/internal/model"
)

const (
	resultOK     = "ok"
	resultFailed = "failed"
)

type Recorder struct {
	registry     *prometheus.Registry
	acquisitions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	lastReading  prometheus.Gauge
	hooks        *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "co2hook_acquisitions_total",
			Help: "Acquisition attempts by source and result (ok or error category).",
		}, []string{"source", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "co2hook_acquisition_duration_seconds",
			Help:    "Time spent obtaining a reading, excluding hooks.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"source"}),
		lastReading: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "co2hook_last_reading",
			Help: "Most recent successful reading.",
		}),
		hooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "co2hook_hook_invocations_total",
			Help: "Hook invocations by result.",
		}, []string{"result"}),
	}

	r.registry.MustRegister(r.acquisitions, r.duration, r.lastReading, r.hooks)
	return r
}

func (r *Recorder) ObserveAcquisition(source model.Kind, value model.Reading, elapsed time.Duration, err error) {
	result := resultOK
	if err != nil {
		result = string(model.CategoryOf(err))
		if result == "" {
			result = "unknown"
		}
	}
	r.acquisitions.WithLabelValues(string(source), result).Inc()
	r.duration.WithLabelValues(string(source)).Observe(elapsed.Seconds())
	if err == nil {
		r.lastReading.Set(float64(value))
	}
}

func (r *Recorder) ObserveHooks(invocations []model.HookInvocation) {
	for _, inv := range invocations {
		if inv.Succeeded() {
			r.hooks.WithLabelValues(resultOK).Inc()
		} else {
			r.hooks.WithLabelValues(resultFailed).Inc()
		}
	}
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
