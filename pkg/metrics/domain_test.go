package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestDomainMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDomainMetrics(reg)
	m.ObserveReservation(OutcomeSuccess)
	m.ObserveReservation(OutcomeSuccess)
	m.ObserveReservation(OutcomeUnavailable)
	m.ObserveActivation(OutcomeDuplicate)
	m.ObserveQuote("fixed")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	cases := []struct {
		name, label, value string
		want               float64
	}{
		{"privilegia_flash_offer_reservations_total", "outcome", OutcomeSuccess, 2},
		{"privilegia_flash_offer_reservations_total", "outcome", OutcomeUnavailable, 1},
		{"privilegia_privilege_activations_total", "outcome", OutcomeDuplicate, 1},
		{"privilegia_pricing_quotes_total", "tier_type", "fixed", 1},
	}
	for _, tc := range cases {
		got, err := fetchCounterValue(mfs, tc.name, tc.label, tc.value)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s{%s=%s}: expected %v, got %v", tc.name, tc.label, tc.value, tc.want, got)
		}
	}
}

func TestNilDomainMetricsAreNoop(t *testing.T) {
	var m *DomainMetrics
	m.ObserveReservation(OutcomeSuccess)
	NewDomainMetrics(nil).ObserveActivation(OutcomeError)
}
