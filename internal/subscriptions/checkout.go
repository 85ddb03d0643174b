package subscriptions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/privilegia/privilegia-backend/internal/pricing"
	"github.com/privilegia/privilegia-backend/pkg/config"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
	"github.com/privilegia/privilegia-backend/pkg/logger"
)

const lookupKeyPrefix = "privilegia_access"

type quoter interface {
	Quote(nbAccess int) (pricing.Quote, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CheckoutParams groups the orchestrator dependencies.
type CheckoutParams struct {
	Pricing     quoter
	Provider    PaymentProvider
	Users       userFinder
	PriceMap    config.PriceMap
	ProductName string
	SuccessURL  string
	CancelURL   string
	Logger      *logger.Logger
}

// CheckoutResult is returned to the member to redirect to hosted checkout.
type CheckoutResult struct {
	CheckoutURL string
	SessionID   string
	PriceID     string
	Quote       pricing.Quote
}

// CheckoutService opens subscription checkouts. It never writes local state;
// the billing webhook materializes the subscription once payment succeeds.
type CheckoutService struct {
	pricing     quoter
	provider    PaymentProvider
	users       userFinder
	priceMap    config.PriceMap
	productName string
	successURL  string
	cancelURL   string
	logg        *logger.Logger
}

func NewCheckoutService(params CheckoutParams) (*CheckoutService, error) {
	if params.Pricing == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user finder required")
	}
	if strings.TrimSpace(params.SuccessURL) == "" || strings.TrimSpace(params.CancelURL) == "" {
		return nil, fmt.Errorf("checkout success and cancel urls required")
	}
	productName := strings.TrimSpace(params.ProductName)
	if productName == "" {
		productName = "Privilegia annual access"
	}
	return &CheckoutService{
		pricing:     params.Pricing,
		provider:    params.Provider,
		users:       params.Users,
		priceMap:    params.PriceMap,
		productName: productName,
		successURL:  params.SuccessURL,
		cancelURL:   params.CancelURL,
		logg:        params.Logger,
	}, nil
}

// LookupKey is the deterministic provider key for a tier and currency.
func LookupKey(nbAccess int, currency enums.Currency) string {
	return fmt.Sprintf("%s_%d_%s", lookupKeyPrefix, nbAccess, strings.ToLower(currency.String()))
}

// CreateCheckout validates the request, resolves the provider price for the
// quoted tier and opens an annual subscription checkout session.
func (s *CheckoutService) CreateCheckout(ctx context.Context, userID uuid.UUID, nbAccess int, currencyCode string) (*CheckoutResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	currency, err := enums.ParseCurrency(currencyCode)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency must be CHF or EUR").
			WithDetails(map[string]any{"currency": currencyCode})
	}

	quote, err := s.pricing.Quote(nbAccess)
	if err != nil {
		return nil, err
	}
	if quote.IsCustom() {
		return nil, pkgerrors.New(pkgerrors.CodeUnsupportedTier, pricing.ContactSalesMessage).
			WithDetails(map[string]any{"nb_access": nbAccess, "contact_sales": true})
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	priceID, err := s.resolvePrice(ctx, quote, currency)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"user_id":            userID.String(),
		"nb_access":          strconv.Itoa(quote.NbAccess),
		"nb_access_included": strconv.Itoa(quote.NbAccessIncluded),
		"currency":           currency.String(),
		"tier_type":          quote.TierType.String(),
	}
	input := CheckoutSessionInput{
		PriceID:           priceID,
		CustomerEmail:     user.Email,
		ClientReferenceID: userID.String(),
		SuccessURL:        s.successURL,
		CancelURL:         s.cancelURL,
		Metadata:          metadata,
	}
	if user.StripeCustomerID != nil {
		input.CustomerID = *user.StripeCustomerID
	}

	checkout, err := s.provider.CreateCheckoutSession(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeBillingProvider, err, "create checkout session")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"session_id": checkout.ID,
			"price_id":   priceID,
			"nb_access":  quote.NbAccess,
			"currency":   currency.String(),
		}), "subscriptions.checkout_created")
	}

	return &CheckoutResult{
		CheckoutURL: checkout.URL,
		SessionID:   checkout.ID,
		PriceID:     priceID,
		Quote:       quote,
	}, nil
}

// resolvePrice prefers a pre-provisioned price, then an existing provider
// price carrying the tier lookup key, and only then creates one. Prices are
// keyed by the included access count so every request landing in the same
// fixed bundle shares one price.
func (s *CheckoutService) resolvePrice(ctx context.Context, quote pricing.Quote, currency enums.Currency) (string, error) {
	if id, ok := s.priceMap.Lookup(quote.NbAccessIncluded, currency.String()); ok {
		return id, nil
	}

	key := LookupKey(quote.NbAccessIncluded, currency)
	existing, err := s.provider.FindPriceByLookupKey(ctx, key)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeBillingProvider, err, "lookup price")
	}
	if existing != nil && existing.ID != "" {
		return existing.ID, nil
	}

	created, err := s.provider.CreatePrice(ctx, CreatePriceInput{
		LookupKey:   key,
		ProductName: s.productName,
		Currency:    currency,
		Amount:      *quote.TotalPrice,
		NbAccess:    quote.NbAccessIncluded,
		TierType:    quote.TierType,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeBillingProvider, err, "create price")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"lookup_key": key, "price_id": created.ID}), "subscriptions.price_created")
	}
	return created.ID, nil
}
