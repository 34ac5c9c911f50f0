package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/musiguessr/go/internal/game/events"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct {
	err error
}

func (f failingPublisher) Publish(ctx context.Context, event events.Event) error {
	return f.err
}

func TestPrometheusMetrics_Counters(t *testing.T) {
	m := NewPrometheusMetrics()

	m.SessionStarted(false)
	m.SessionStarted(true)
	m.SessionStarted(false)
	m.SessionStartFailed("create")
	m.RoundResolved("correct")
	m.RoundResolved("skipped")
	m.RoundResolved("skipped")
	m.BackendFailure("lookup")
	m.SessionFinished(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsStarted.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsStarted.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.startFailures.WithLabelValues("create")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.roundsResolved.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendFailures.WithLabelValues("lookup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsFinished.WithLabelValues("true")))
}

func TestPrometheusMetrics_Connections(t *testing.T) {
	m := NewPrometheusMetrics()

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.ClientMessage("guess")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clientMessages.WithLabelValues("guess")))
}

func TestMetricPublisher(t *testing.T) {
	m := NewPrometheusMetrics()
	event := events.NewEvent(events.EventTypeRoundResolved, 1, nil)

	ok := NewMetricPublisher(events.NoOpPublisher{}, m)
	require.NoError(t, ok.Publish(context.Background(), event))

	boom := errors.New("nats down")
	bad := NewMetricPublisher(failingPublisher{err: boom}, m)
	assert.ErrorIs(t, bad.Publish(context.Background(), event), boom)

	eventType := string(events.EventTypeRoundResolved)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues(eventType, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues(eventType, "failure")))
}

func TestHandler(t *testing.T) {
	m := NewPrometheusMetrics()
	m.RoundResolved("wrong")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `musiguessr_rounds_resolved_total{outcome="wrong"} 1`)
}
