package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveBooking("ok")
	m.ObserveTransition("confirmed")
	m.ObserveNotification("created")
	m.ObserveReminder("24h")
	m.SessionOpened()
	m.SessionClosed()
	m.PushFailed()
}

func TestMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBooking("ok")
	m.ObserveBooking("conflict")
	m.ObserveNotification("reminder")
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["scheduling_booking_create_total"])
	assert.True(t, names["scheduling_dispatch_notifications_emitted_total"])
	assert.True(t, names["scheduling_dispatch_live_sessions"])
}
