// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the struct-of-endpoints surface observing every pipeline
// stage.
type Metrics interface {
	IncrGenerated()
	IncrFailed(tag string)
	IncrPoolReplacements()
	RecordRenderDuration(d time.Duration, mode InternalMode)
	UpdatePoolUtilization(n int)
	UpdateThroughput(perSecond float64)
	RecordPoolAcquisitionTime(d time.Duration)
	RecordWebengineTime(d time.Duration)
	RecordCSSInjectionTime(d time.Duration)
	RecordDataConversionTime(d time.Duration)
}

// RecordSuccess is the incr_generated + record_render_duration
// convenience operation.
func RecordSuccess(m Metrics, d time.Duration, mode InternalMode) {
	m.IncrGenerated()
	m.RecordRenderDuration(d, mode)
}

// RecordFailure attaches the error's stable tag as a dimension on
// incr_failed.
func RecordFailure(m Metrics, err error) {
	tag := "unknown"
	var e *Error
	if errors.As(err, &e) {
		tag = e.Tag()
	}
	m.IncrFailed(tag)
}

// NoopMetrics discards every observation. It is always safe to use and
// never errors when "uninitialized".
type NoopMetrics struct{}

func (NoopMetrics) IncrGenerated()                                    {}
func (NoopMetrics) IncrFailed(string)                                 {}
func (NoopMetrics) IncrPoolReplacements()                             {}
func (NoopMetrics) RecordRenderDuration(time.Duration, InternalMode)  {}
func (NoopMetrics) UpdatePoolUtilization(int)                         {}
func (NoopMetrics) UpdateThroughput(float64)                          {}
func (NoopMetrics) RecordPoolAcquisitionTime(time.Duration)           {}
func (NoopMetrics) RecordWebengineTime(time.Duration)                 {}
func (NoopMetrics) RecordCSSInjectionTime(time.Duration)              {}
func (NoopMetrics) RecordDataConversionTime(time.Duration)            {}

// RecordingMetrics accumulates in-memory observable state for tests
// that assert on counts and durations rather than live metrics output.
type RecordingMetrics struct {
	mu sync.Mutex

	Generated        int64
	Failed           map[string]int64
	PoolReplacements int64
	RenderDurations  []time.Duration
	PoolUtilization  int
	Throughput       float64
}

func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{Failed: make(map[string]int64)}
}

func (r *RecordingMetrics) IncrGenerated() { atomic.AddInt64(&r.Generated, 1) }

func (r *RecordingMetrics) IncrFailed(tag string) {
	r.mu.Lock()
	r.Failed[tag]++
	r.mu.Unlock()
}

func (r *RecordingMetrics) IncrPoolReplacements() { atomic.AddInt64(&r.PoolReplacements, 1) }

func (r *RecordingMetrics) RecordRenderDuration(d time.Duration, _ InternalMode) {
	r.mu.Lock()
	r.RenderDurations = append(r.RenderDurations, d)
	r.mu.Unlock()
}

func (r *RecordingMetrics) UpdatePoolUtilization(n int) {
	r.mu.Lock()
	r.PoolUtilization = n
	r.mu.Unlock()
}

func (r *RecordingMetrics) UpdateThroughput(pps float64) {
	r.mu.Lock()
	r.Throughput = pps
	r.mu.Unlock()
}

func (r *RecordingMetrics) RecordPoolAcquisitionTime(time.Duration) {}
func (r *RecordingMetrics) RecordWebengineTime(time.Duration)       {}
func (r *RecordingMetrics) RecordCSSInjectionTime(time.Duration)    {}
func (r *RecordingMetrics) RecordDataConversionTime(time.Duration)  {}

// PoolReplacementsCount reports the number of recycles observed so far,
// used to verify P12.
func (r *RecordingMetrics) PoolReplacementsCount() int64 {
	return atomic.LoadInt64(&r.PoolReplacements)
}

// PrometheusMetrics is the live backend delegating to a pluggable
// prometheus.Registerer, in the CounterVec idiom common across
// Prometheus-instrumented Go services. Construction is idempotent:
// registering the same collector set twice against the same registerer is
// tolerated rather than panicking.
type PrometheusMetrics struct {
	generated        prometheus.Counter
	failed           *prometheus.CounterVec
	poolReplacements prometheus.Counter
	renderDuration   *prometheus.HistogramVec
	poolUtilization  prometheus.Gauge
	throughput       prometheus.Gauge
	poolAcquireTime  prometheus.Histogram
	webengineTime    prometheus.Histogram
	cssInjectionTime prometheus.Histogram
	dataConvertTime  prometheus.Histogram
}

// NewPrometheusMetrics registers the htmlpdf_* collectors against reg,
// tolerating AlreadyRegisteredError so repeated bootstrap in long-lived
// processes and tests never panics.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "htmlpdf_documents_generated_total",
			Help: "Total PDFs generated successfully.",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "htmlpdf_documents_failed_total",
			Help: "Total document renders that failed, by error tag.",
		}, []string{"tag"}),
		poolReplacements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "htmlpdf_pool_replacements_total",
			Help: "Total worker recycles.",
		}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "htmlpdf_render_duration_seconds",
			Help: "Render duration by chosen pagination mode.",
		}, []string{"mode"}),
		poolUtilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "htmlpdf_pool_utilization",
			Help: "Workers currently in use.",
		}),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "htmlpdf_throughput_pdfs_per_second",
			Help: "Rolling throughput estimate.",
		}),
		poolAcquireTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "htmlpdf_pool_acquisition_seconds",
			Help: "Time spent waiting to acquire a worker.",
		}),
		webengineTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "htmlpdf_webengine_seconds",
			Help: "Time spent inside the rendering engine.",
		}),
		cssInjectionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "htmlpdf_css_injection_seconds",
			Help: "Time spent splicing CSS.",
		}),
		dataConvertTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "htmlpdf_data_conversion_seconds",
			Help: "Time spent converting html to the engine's byte buffer.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.generated, m.failed, m.poolReplacements, m.renderDuration,
		m.poolUtilization, m.throughput, m.poolAcquireTime, m.webengineTime,
		m.cssInjectionTime, m.dataConvertTime,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
	return m
}

func (m *PrometheusMetrics) IncrGenerated() { m.generated.Inc() }
func (m *PrometheusMetrics) IncrFailed(tag string) { m.failed.WithLabelValues(tag).Inc() }
func (m *PrometheusMetrics) IncrPoolReplacements() { m.poolReplacements.Inc() }
func (m *PrometheusMetrics) RecordRenderDuration(d time.Duration, mode InternalMode) {
	m.renderDuration.WithLabelValues(mode.String()).Observe(d.Seconds())
}
func (m *PrometheusMetrics) UpdatePoolUtilization(n int) { m.poolUtilization.Set(float64(n)) }
func (m *PrometheusMetrics) UpdateThroughput(pps float64) { m.throughput.Set(pps) }
func (m *PrometheusMetrics) RecordPoolAcquisitionTime(d time.Duration) {
	m.poolAcquireTime.Observe(d.Seconds())
}
func (m *PrometheusMetrics) RecordWebengineTime(d time.Duration) { m.webengineTime.Observe(d.Seconds()) }
func (m *PrometheusMetrics) RecordCSSInjectionTime(d time.Duration) {
	m.cssInjectionTime.Observe(d.Seconds())
}
func (m *PrometheusMetrics) RecordDataConversionTime(d time.Duration) {
	m.dataConvertTime.Observe(d.Seconds())
}
