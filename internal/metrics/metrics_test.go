package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := MustNew(prometheus.NewRegistry())

	m.ReminderCreated()
	m.ReminderRejected("not_recognized")
	m.Delivery(true)
	m.Delivery(false)
	m.Delivery(false)
	m.Purged(3)
	m.Purged(0)
	m.Tick(10*time.Millisecond, 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.created))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("not_recognized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.purged))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.lastDue))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ReminderCreated()
		m.ReminderRejected("validation")
		m.Delivery(true)
		m.DeleteFailed()
		m.FetchFailed()
		m.Purged(1)
		m.Tick(time.Second, 1)
	})
}
