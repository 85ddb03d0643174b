package subscriptions

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// Price is a provider-side recurring price.
type Price struct {
	ID        string
	LookupKey string
}

// CreatePriceInput describes an annual price to create at the provider.
type CreatePriceInput struct {
	LookupKey   string
	ProductName string
	Currency    enums.Currency
	Amount      decimal.Decimal
	NbAccess    int
	TierType    enums.TierType
}

// UnitAmount is Amount in minor currency units.
func (in CreatePriceInput) UnitAmount() int64 {
	return in.Amount.Round(2).Shift(2).IntPart()
}

// CheckoutSessionInput describes a subscription-mode checkout session.
type CheckoutSessionInput struct {
	PriceID           string
	CustomerID        string
	CustomerEmail     string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
}

// CheckoutSession is the hosted checkout the member is redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentProvider is the billing collaborator used for checkout and
// reconciliation. Implementations must apply request timeouts.
type PaymentProvider interface {
	FindPriceByLookupKey(ctx context.Context, lookupKey string) (*Price, error)
	CreatePrice(ctx context.Context, input CreatePriceInput) (*Price, error)
	CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}
