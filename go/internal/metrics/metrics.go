// Package metrics exposes game and gateway counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/mcdev12/musiguessr/go/internal/game/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "musiguessr"

// PrometheusMetrics implements session.Metrics and the gateway's connection
// metrics on a dedicated registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	sessionsStarted   *prometheus.CounterVec
	startFailures     *prometheus.CounterVec
	roundsResolved    *prometheus.CounterVec
	backendFailures   *prometheus.CounterVec
	sessionsFinished  *prometheus.CounterVec
	activeConnections prometheus.Gauge
	clientMessages    *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
	publishDuration   *prometheus.HistogramVec
}

func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Game sessions that reached their first round.",
		}, []string{"resumed"}),
		startFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_start_failures_total",
			Help:      "Game session startups that failed, by step.",
		}, []string{"step"}),
		roundsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_resolved_total",
			Help:      "Rounds resolved, by outcome.",
		}, []string{"outcome"}),
		backendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_failures_total",
			Help:      "Failed backend calls during play, by step.",
		}, []string{"step"}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Game sessions that reached the result screen.",
		}, []string{"finish_error"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_active_connections",
			Help:      "Open play websocket connections.",
		}),
		clientMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_client_messages_total",
			Help:      "Messages received from players, by type.",
		}, []string{"type"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Game events handed to the event stream.",
		}, []string{"event_type", "status"}),
		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_duration_seconds",
			Help:      "Time spent publishing game events.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}

	m.registry.MustRegister(
		m.sessionsStarted,
		m.startFailures,
		m.roundsResolved,
		m.backendFailures,
		m.sessionsFinished,
		m.activeConnections,
		m.clientMessages,
		m.eventsPublished,
		m.publishDuration,
	)
	return m
}

func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PrometheusMetrics) SessionStarted(resumed bool) {
	m.sessionsStarted.WithLabelValues(strconv.FormatBool(resumed)).Inc()
}

func (m *PrometheusMetrics) SessionStartFailed(step string) {
	m.startFailures.WithLabelValues(step).Inc()
}

func (m *PrometheusMetrics) RoundResolved(outcome string) {
	m.roundsResolved.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) BackendFailure(step string) {
	m.backendFailures.WithLabelValues(step).Inc()
}

func (m *PrometheusMetrics) SessionFinished(finishErr bool) {
	m.sessionsFinished.WithLabelValues(strconv.FormatBool(finishErr)).Inc()
}

func (m *PrometheusMetrics) ConnectionOpened() {
	m.activeConnections.Inc()
}

func (m *PrometheusMetrics) ConnectionClosed() {
	m.activeConnections.Dec()
}

func (m *PrometheusMetrics) ClientMessage(msgType string) {
	m.clientMessages.WithLabelValues(msgType).Inc()
}

func (m *PrometheusMetrics) RecordEventPublished(eventType string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.eventsPublished.WithLabelValues(eventType, status).Inc()
	m.publishDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// MetricPublisher wraps an events.Publisher with publish metrics.
type MetricPublisher struct {
	publisher events.Publisher
	metrics   *PrometheusMetrics
}

func NewMetricPublisher(publisher events.Publisher, metrics *PrometheusMetrics) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, event events.Event) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, event)

	p.metrics.RecordEventPublished(string(event.Type), err == nil, time.Since(start))
	return err
}
