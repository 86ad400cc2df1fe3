// Package metrics keeps the runtime's prometheus collectors on a private
// registry. There is no HTTP endpoint; when a textfile path is configured
// the registry is flushed there in the node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adk"

const (
	OutcomeSuccess      = "success"
	OutcomeError        = "error"
	OutcomeLoadingError = "loading_error"
)

type Recorder struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	applyDuration prometheus.Histogram
	loadDuration  prometheus.Gauge
	loadFailed    prometheus.Gauge
	resolutions   *prometheus.CounterVec
	textfile      string
}

func New(textfile string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Apply requests by outcome and response content type.",
		}, []string{"outcome", "content_type"}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_duration_seconds",
			Help:      "Time spent in the apply function.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		loadDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of the load phase.",
		}),
		loadFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_failed",
			Help:      "1 when the load phase failed and every request returns the loading error.",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_resolutions_total",
			Help:      "Manifest file resolutions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		textfile: textfile,
	}
	r.registry.MustRegister(r.requests, r.applyDuration, r.loadDuration, r.loadFailed, r.resolutions)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveRequest records one served request. A zero duration means apply
// never ran.
func (r *Recorder) ObserveRequest(outcome, contentType string, d time.Duration) {
	if r == nil {
		return
	}
	if contentType == "" {
		contentType = "none"
	}
	r.requests.WithLabelValues(outcome, contentType).Inc()
	if d > 0 {
		r.applyDuration.Observe(d.Seconds())
	}
}

func (r *Recorder) ObserveLoad(d time.Duration, err error) {
	if r == nil {
		return
	}
	r.loadDuration.Set(d.Seconds())
	if err != nil {
		r.loadFailed.Set(1)
	} else {
		r.loadFailed.Set(0)
	}
}

func (r *Recorder) ObserveResolution(kind string, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	r.resolutions.WithLabelValues(kind, outcome).Inc()
}

// Flush writes the registry to the configured textfile, if any.
func (r *Recorder) Flush() error {
	if r == nil || r.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", r.textfile)
	}
	return nil
}
