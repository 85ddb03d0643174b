package subscriptions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/price"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgstripe "github.com/privilegia/privilegia-backend/pkg/stripe"
)

type stripeProvider struct{}

// NewStripeProvider returns the Stripe-backed PaymentProvider. The package
// level key is configured by pkg/stripe.NewClient.
func NewStripeProvider(api *pkgstripe.Client) PaymentProvider {
	if api == nil {
		return nil
	}
	return &stripeProvider{}
}

func (p *stripeProvider) FindPriceByLookupKey(ctx context.Context, lookupKey string) (*Price, error) {
	params := &stripe.PriceListParams{
		LookupKeys: stripe.StringSlice([]string{lookupKey}),
		Active:     stripe.Bool(true),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := price.List(params)
	for iter.Next() {
		found := iter.Price()
		if found != nil && found.LookupKey == lookupKey {
			return &Price{ID: found.ID, LookupKey: found.LookupKey}, nil
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (p *stripeProvider) CreatePrice(ctx context.Context, input CreatePriceInput) (*Price, error) {
	params := &stripe.PriceParams{
		Currency:   stripe.String(strings.ToLower(input.Currency.String())),
		UnitAmount: stripe.Int64(input.UnitAmount()),
		LookupKey:  stripe.String(input.LookupKey),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalYear)),
		},
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(fmt.Sprintf("%s (%d)", input.ProductName, input.NbAccess)),
		},
	}
	params.Context = ctx
	params.AddMetadata("nb_access", strconv.Itoa(input.NbAccess))
	params.AddMetadata("tier_type", input.TierType.String())
	// Concurrent first checkouts for the same tier collapse onto one price.
	params.SetIdempotencyKey("price:" + input.LookupKey)

	created, err := price.New(params)
	if err != nil {
		return nil, err
	}
	return &Price{ID: created.ID, LookupKey: created.LookupKey}, nil
}

func (p *stripeProvider) CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(input.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(input.SuccessURL),
		CancelURL:         stripe.String(input.CancelURL),
		ClientReferenceID: stripe.String(input.ClientReferenceID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: input.Metadata,
		},
	}
	if input.CustomerID != "" {
		params.Customer = stripe.String(input.CustomerID)
	} else if input.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(input.CustomerEmail)
	}
	params.Context = ctx
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}

	created, err := session.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: created.ID, URL: created.URL}, nil
}

func (p *stripeProvider) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return subscription.Get(id, params)
}
