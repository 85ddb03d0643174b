package models

import (
	"testing"
	"time"

	"github.com/privilegia/privilegia-backend/pkg/enums"
)

func TestFlashOfferAvailableAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	offer := FlashOffer{
		Status:        enums.OfferStatusActive,
		CurrentStock:  1,
		ValidityStart: now.Add(-time.Hour),
		ValidityEnd:   now.Add(time.Hour),
	}
	if !offer.AvailableAt(now) {
		t.Fatalf("expected offer to be available")
	}

	exhausted := offer
	exhausted.CurrentStock = 0
	if exhausted.AvailableAt(now) {
		t.Fatalf("exhausted offer must be unavailable")
	}

	if offer.AvailableAt(offer.ValidityEnd) {
		t.Fatalf("offer must be unavailable at validity end")
	}
	if offer.AvailableAt(now.Add(-2 * time.Hour)) {
		t.Fatalf("offer must be unavailable before validity start")
	}

	cancelled := offer
	cancelled.Status = enums.OfferStatusCancelled
	if cancelled.AvailableAt(now) {
		t.Fatalf("cancelled offer must be unavailable")
	}
}

func TestActivationEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	activation := PrivilegeActivation{
		Status:    enums.ActivationStatusActive,
		ExpiresAt: now.Add(time.Minute),
	}
	if !activation.UsableAt(now) || activation.EffectiveStatus(now) != enums.ActivationStatusActive {
		t.Fatalf("expected activation to be usable")
	}

	later := now.Add(2 * time.Minute)
	if activation.UsableAt(later) {
		t.Fatalf("expired activation must not be usable")
	}
	if activation.EffectiveStatus(later) != enums.ActivationStatusExpired {
		t.Fatalf("expected lazy expiry, got %s", activation.EffectiveStatus(later))
	}

	activation.Status = enums.ActivationStatusValidated
	if activation.EffectiveStatus(later) != enums.ActivationStatusValidated {
		t.Fatalf("validated must stay validated")
	}
}

func TestSubscriptionGrantsAccessAt(t *testing.T) {
	now := time.Now()
	sub := Subscription{Status: enums.SubscriptionStatusActive, CurrentPeriodEnd: now.Add(time.Hour)}
	if !sub.GrantsAccessAt(now) {
		t.Fatalf("expected access")
	}
	sub.CurrentPeriodEnd = now.Add(-time.Second)
	if sub.GrantsAccessAt(now) {
		t.Fatalf("past period end must not grant access")
	}
	sub.CurrentPeriodEnd = now.Add(time.Hour)
	sub.Status = enums.SubscriptionStatusPastDue
	if sub.GrantsAccessAt(now) {
		t.Fatalf("past_due must not grant access")
	}
}
