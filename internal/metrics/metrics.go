package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters and gauges for the scheduling core. All
// methods are nil-safe so wiring stays optional in workers and tests.
type Metrics struct {
	bookingsTotal      *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	remindersTotal     *prometheus.CounterVec
	liveSessions       prometheus.Gauge
	livePushFailures   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "booking",
			Name:      "create_total",
			Help:      "Total appointment create attempts",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Total successful status transitions",
		}, []string{"to"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "dispatch",
			Name:      "notifications_emitted_total",
			Help:      "Total durably stored notifications",
		}, []string{"type"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "reminder",
			Name:      "fired_total",
			Help:      "Total reminder notifications fired",
		}, []string{"threshold"}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scheduling",
			Subsystem: "dispatch",
			Name:      "live_sessions",
			Help:      "Currently registered live delivery sessions",
		}),
		livePushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "dispatch",
			Name:      "live_push_failures_total",
			Help:      "Live pushes that failed and dropped the session",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.notificationsTotal,
		m.remindersTotal, m.liveSessions, m.livePushFailures)
	return m
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to).Inc()
}

func (m *Metrics) ObserveNotification(typ string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(typ).Inc()
}

func (m *Metrics) ObserveReminder(threshold string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(threshold).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.liveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.liveSessions.Dec()
}

func (m *Metrics) PushFailed() {
	if m == nil {
		return
	}
	m.livePushFailures.Inc()
}
