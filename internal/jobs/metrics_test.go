package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("mail:send").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("mail:send").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mail:send", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mail:send", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("mail:send")))
}

func TestNotificationAndMediaCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordNotification("register.html", nil)
	m.RecordNotification("register.html", errors.New("redis down"))
	m.AddMediaRemoved(3)
	m.AddMediaRemoved(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("register.html", "enqueued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("register.html", "dropped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.mediaRemoved))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NoError(t, m.Track("x").End(nil))
	m.RecordNotification("x", nil)
	m.AddMediaRemoved(1)
}
