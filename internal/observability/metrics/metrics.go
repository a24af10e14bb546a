package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the appointment commitment lifecycle.
type BookingMetrics struct {
	escalationsSent *prometheus.CounterVec
	claimsTotal     *prometheus.CounterVec
	notifiedTotal   prometheus.Counter
	expiredTotal    prometheus.Counter
	noShowsTotal    prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		escalationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brightderm",
			Subsystem: "confirmation",
			Name:      "escalations_sent_total",
			Help:      "Total confirmation escalation messages sent, by stage",
		}, []string{"stage"}),
		claimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brightderm",
			Subsystem: "waitlist",
			Name:      "claims_total",
			Help:      "Total waitlist claim attempts, by outcome",
		}, []string{"outcome"}),
		notifiedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brightderm",
			Subsystem: "waitlist",
			Name:      "candidates_notified_total",
			Help:      "Total waitlist candidates notified of freed slots",
		}),
		expiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brightderm",
			Subsystem: "waitlist",
			Name:      "entries_expired_total",
			Help:      "Total waitlist entries expired by sweep or cascade",
		}),
		noShowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brightderm",
			Subsystem: "confirmation",
			Name:      "no_shows_total",
			Help:      "Total appointments marked no-show",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.escalationsSent, m.claimsTotal, m.notifiedTotal, m.expiredTotal, m.noShowsTotal)
	return m
}

func (m *BookingMetrics) ObserveEscalation(stage string) {
	if m == nil {
		return
	}
	m.escalationsSent.WithLabelValues(stage).Inc()
}

func (m *BookingMetrics) ObserveClaim(outcome string) {
	if m == nil {
		return
	}
	m.claimsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) AddNotified(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.notifiedTotal.Add(float64(n))
}

func (m *BookingMetrics) AddExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expiredTotal.Add(float64(n))
}

func (m *BookingMetrics) ObserveNoShow() {
	if m == nil {
		return
	}
	m.noShowsTotal.Inc()
}
