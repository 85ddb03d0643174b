package subscriptions

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
)

// BuildSubscriptionFromStripe maps a provider subscription onto a new row.
func BuildSubscriptionFromStripe(stripeSub *stripe.Subscription, userID uuid.UUID) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}
	sub := &models.Subscription{UserID: userID}
	if err := UpdateSubscriptionFromStripe(sub, stripeSub); err != nil {
		return nil, err
	}
	return sub, nil
}

// UpdateSubscriptionFromStripe overwrites target with the provider state.
// Access count and currency come from the checkout metadata when present.
func UpdateSubscriptionFromStripe(target *models.Subscription, stripeSub *stripe.Subscription) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}
	status, err := enums.ParseSubscriptionStatus(string(stripeSub.Status))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalid stripe subscription status")
	}

	metadata, err := encodeMetadata(stripeSub.Metadata)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal metadata")
	}

	target.StripeSubscriptionID = stripeSub.ID
	target.Status = status
	if stripeSub.Customer != nil && stripeSub.Customer.ID != "" {
		id := stripeSub.Customer.ID
		target.StripeCustomerID = &id
	}
	if priceID := determinePriceID(stripeSub); priceID != "" {
		target.PriceID = &priceID
	}

	start, end := periodFromSubscription(stripeSub)
	target.CurrentPeriodStart = toTimePtr(start)
	target.CurrentPeriodEnd = toTime(end)
	target.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
	target.CanceledAt = toTimePtr(stripeSub.CanceledAt)
	target.Metadata = metadata

	if n := nbAccessFromMetadata(stripeSub.Metadata); n > 0 {
		target.NbAccess = n
	} else if target.NbAccess == 0 {
		target.NbAccess = 1
	}
	if cur, err := enums.ParseCurrency(stripeSub.Metadata["currency"]); err == nil {
		target.Currency = cur
	} else if cur, err := enums.ParseCurrency(string(stripeSub.Currency)); err == nil {
		target.Currency = cur
	} else if target.Currency == "" {
		target.Currency = enums.CurrencyCHF
	}
	if tier := enums.TierType(stripeSub.Metadata["tier_type"]); tier.IsValid() {
		target.TierType = tier
	} else if target.TierType == "" {
		target.TierType = enums.TierTypeProgressive
	}
	return nil
}

// UserIDFromMetadata extracts the user attached at checkout.
func UserIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	if metadata == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata is required")
	}
	raw := strings.TrimSpace(metadata["user_id"])
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id missing from metadata")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id metadata")
	}
	return id, nil
}

func nbAccessFromMetadata(metadata map[string]string) int {
	for _, key := range []string{"nb_access_included", "nb_access"} {
		if n, err := strconv.Atoi(strings.TrimSpace(metadata[key])); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func determinePriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

// periodFromSubscription reads the billing period from the first item.
func periodFromSubscription(sub *stripe.Subscription) (int64, int64) {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil {
		return sub.StartDate, 0
	}
	item := sub.Items.Data[0]
	return item.CurrentPeriodStart, item.CurrentPeriodEnd
}

func encodeMetadata(metadata map[string]string) (json.RawMessage, error) {
	if len(metadata) == 0 {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func toTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

func toTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
