// Package metrics provides the Prometheus metrics of the notification layer.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pharmacy_notify"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	PushMessages    *prometheus.CounterVec
	PushRejected    *prometheus.CounterVec
	PollFetches     *prometheus.CounterVec
	Shown           *prometheus.CounterVec
	Suppressed      *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec
	ActivePollLoops prometheus.Gauge
	registry        *prometheus.Registry
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		PushMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_messages_total",
			Help:      "Push messages accepted by the relay, by receiving channel",
		}, []string{"channel"}),
		PushRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_rejected_total",
			Help:      "Push messages rejected by the relay, by reason",
		}, []string{"reason"}),
		PollFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_fetches_total",
			Help:      "Unread endpoint fetches made by the polling fallback",
		}, []string{"result"}),
		Shown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_shown_total",
			Help:      "Local notifications displayed, by channel",
		}, []string{"channel"}),
		Suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_suppressed_total",
			Help:      "Notifications suppressed as duplicates, by channel",
		}, []string{"channel"}),
		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		ActivePollLoops: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_loops_active",
			Help:      "Polling loops currently running",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.PushMessages, m.PushRejected, m.PollFetches, m.Shown, m.Suppressed, m.BackendLatency, m.ActivePollLoops,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

// MustNew is New over a fresh registry.
func MustNew() *Metrics {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CountPush(channel string) {
	if m != nil {
		m.PushMessages.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) CountRejected(reason string) {
	if m != nil {
		m.PushRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) CountFetch(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.PollFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) CountShown(channel string) {
	if m != nil {
		m.Shown.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) CountSuppressed(channel string) {
	if m != nil {
		m.Suppressed.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) SetPollLoops(n int) {
	if m != nil {
		m.ActivePollLoops.Set(float64(n))
	}
}

// BackendObserver returns before/after hooks that time backend requests.
func (m *Metrics) BackendObserver() (func(*http.Request), func(*http.Request, *http.Response, error)) {
	var starts sync.Map
	before := func(req *http.Request) {
		starts.Store(req, time.Now())
	}
	after := func(req *http.Request, resp *http.Response, err error) {
		v, ok := starts.LoadAndDelete(req)
		if !ok || m == nil {
			return
		}
		status := "error"
		if err == nil && resp != nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		m.BackendLatency.WithLabelValues(req.Method, status).Observe(time.Since(v.(time.Time)).Seconds())
	}
	return before, after
}
