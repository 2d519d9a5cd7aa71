package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fieldsurvey"

// Metrics holds the collectors of the service. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EditorSessions    *prometheus.CounterVec // by outcome: opened, saved, cancelled
	OpenEditors       prometheus.Gauge
	Uploads           *prometheus.CounterVec // by result: ok, rejected, failed
	UploadBytes       prometheus.Counter
	Renders           *prometheus.CounterVec // by result: done, failed, cached
	RenderDuration    prometheus.Histogram
	RenderQueueDepth  prometheus.Gauge
	SurveysSaved      *prometheus.CounterVec // by op: create, update
	HTTPRequests      *prometheus.CounterVec
	HTTPRequestLength *prometheus.HistogramVec
}

// New creates the collectors on their own registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		EditorSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "editor_sessions_total",
			Help:      "Annotation editor sessions by outcome.",
		}, []string{"outcome"}),
		OpenEditors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editor_sessions_open",
			Help:      "Annotation editor sessions currently open.",
		}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Image uploads by result.",
		}, []string{"result"}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes of stored image uploads.",
		}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Annotated renders by result.",
		}, []string{"result"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time to decode, annotate and store one render.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		RenderQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "render_queue_depth",
			Help:      "Render jobs waiting in the queue.",
		}),
		SurveysSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surveys_saved_total",
			Help:      "Saved surveys by operation.",
		}, []string{"op"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPRequestLength: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EditorSessions, m.OpenEditors,
		m.Uploads, m.UploadBytes,
		m.Renders, m.RenderDuration, m.RenderQueueDepth,
		m.SurveysSaved,
		m.HTTPRequests, m.HTTPRequestLength,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.EditorSessions.WithLabelValues("opened").Inc()
	m.OpenEditors.Inc()
}

// SessionClosed records the end of an editor session; saved tells a save
// from a cancel.
func (m *Metrics) SessionClosed(saved bool) {
	if m == nil {
		return
	}
	outcome := "cancelled"
	if saved {
		outcome = "saved"
	}
	m.EditorSessions.WithLabelValues(outcome).Inc()
	m.OpenEditors.Dec()
}

func (m *Metrics) UploadStored(size int64) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues("ok").Inc()
	m.UploadBytes.Add(float64(size))
}

// UploadFailed counts a failed upload; rejected marks client errors.
func (m *Metrics) UploadFailed(rejected bool) {
	if m == nil {
		return
	}
	result := "failed"
	if rejected {
		result = "rejected"
	}
	m.Uploads.WithLabelValues(result).Inc()
}

func (m *Metrics) RenderFinished(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "done"
	if err != nil {
		result = "failed"
	}
	m.Renders.WithLabelValues(result).Inc()
	m.RenderDuration.Observe(d.Seconds())
}

func (m *Metrics) RenderCached() {
	if m == nil {
		return
	}
	m.Renders.WithLabelValues("cached").Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.RenderQueueDepth.Set(float64(n))
}

func (m *Metrics) SurveySaved(created bool) {
	if m == nil {
		return
	}
	op := "update"
	if created {
		op = "create"
	}
	m.SurveysSaved.WithLabelValues(op).Inc()
}

// Middleware records request counts and latency labelled with the chi route
// pattern, so ids in paths do not explode the label space.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPRequestLength.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
