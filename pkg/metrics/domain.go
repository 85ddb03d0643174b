package metrics

import "github.com/prometheus/client_golang/prometheus"

// Reservation and activation outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeUnavailable = "unavailable"
	OutcomeDuplicate   = "duplicate"
	OutcomeRejected    = "rejected"
	OutcomeError       = "error"
)

// DomainMetrics counts business outcomes on the request path.
type DomainMetrics struct {
	reservations *prometheus.CounterVec
	activations  *prometheus.CounterVec
	quotes       *prometheus.CounterVec
}

func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flash_offer_reservations_total",
		Help:      "Flash offer reservation attempts by outcome.",
	}, []string{"outcome"})
	activations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "privilege_activations_total",
		Help:      "Privilege activation attempts by outcome.",
	}, []string{"outcome"})
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pricing_quotes_total",
		Help:      "Pricing quotes served by tier type.",
	}, []string{"tier_type"})
	reg.MustRegister(reservations, activations, quotes)
	return &DomainMetrics{reservations: reservations, activations: activations, quotes: quotes}
}

func (m *DomainMetrics) ObserveReservation(outcome string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *DomainMetrics) ObserveActivation(outcome string) {
	if m == nil || m.activations == nil {
		return
	}
	m.activations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *DomainMetrics) ObserveQuote(tierType string) {
	if m == nil || m.quotes == nil {
		return
	}
	m.quotes.WithLabelValues(normalizeLabel(tierType)).Inc()
}
