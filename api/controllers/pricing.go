package controllers

import (
	"context"
	"net/http"

	"github.com/privilegia/privilegia-backend/api/responses"
	"github.com/privilegia/privilegia-backend/api/validators"
	"github.com/privilegia/privilegia-backend/internal/currency"
	"github.com/privilegia/privilegia-backend/internal/pricing"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/metrics"
)

// PricingEngine quotes access counts and lists the fixed bundles.
type PricingEngine interface {
	Quote(nbAccess int) (pricing.Quote, error)
	Tiers(nbAccess int) (pricing.TierListing, error)
}

// CurrencyResolver picks the billing currency for a caller.
type CurrencyResolver interface {
	Resolve(ctx context.Context, explicitCode, ip string) currency.Resolution
}

type calculatePayload struct {
	NbAccess int    `json:"nb_access" validate:"required"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

type quoteResponse struct {
	NbAccess         int     `json:"nb_access"`
	NbAccessIncluded int     `json:"nb_access_included"`
	TotalPrice       *string `json:"total_price"`
	PricePerAccess   *string `json:"price_per_access"`
	DiscountPercent  *string `json:"discount_percent"`
	TierType         string  `json:"tier_type"`
	TierName         string  `json:"tier_name"`
	ContactSales     bool    `json:"contact_sales"`
	Message          string  `json:"message,omitempty"`
}

type currencyResponse struct {
	Currency    string `json:"currency"`
	CountryCode string `json:"country_code"`
	Symbol      string `json:"symbol"`
	Flag        string `json:"flag"`
	Detected    bool   `json:"detected"`
	Source      string `json:"source"`
}

type tierResponse struct {
	NbAccess        int    `json:"nb_access"`
	TotalPrice      string `json:"total_price"`
	PricePerAccess  string `json:"price_per_access"`
	DiscountPercent string `json:"discount_percent"`
	TierName        string `json:"tier_name"`
}

func newQuoteResponse(q pricing.Quote) quoteResponse {
	resp := quoteResponse{
		NbAccess:         q.NbAccess,
		NbAccessIncluded: q.NbAccessIncluded,
		TierType:         q.TierType.String(),
		TierName:         q.TierName,
		ContactSales:     q.ContactSales,
		Message:          q.Message,
	}
	if q.TotalPrice != nil {
		total := q.TotalPrice.StringFixed(2)
		resp.TotalPrice = &total
	}
	if q.PricePerAccess != nil {
		per := q.PricePerAccess.StringFixed(2)
		resp.PricePerAccess = &per
	}
	if q.DiscountPercent != nil {
		discount := q.DiscountPercent.StringFixed(1)
		resp.DiscountPercent = &discount
	}
	return resp
}

func newCurrencyResponse(res currency.Resolution) currencyResponse {
	return currencyResponse{
		Currency:    res.Currency.String(),
		CountryCode: res.CountryCode,
		Symbol:      res.Symbol,
		Flag:        res.Flag,
		Detected:    res.Detected,
		Source:      string(res.Source),
	}
}

// PricingCalculate quotes nb_access and attaches the caller's currency.
func PricingCalculate(engine PricingEngine, resolver CurrencyResolver, quotes *metrics.DomainMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if engine == nil || resolver == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing unavailable"))
			return
		}

		var payload calculatePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		quote, err := engine.Quote(payload.NbAccess)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		quotes.ObserveQuote(quote.TierType.String())
		resolution := resolver.Resolve(ctx, payload.Currency, currency.ClientIP(r))

		responses.WriteSuccess(w, struct {
			quoteResponse
			Currency currencyResponse `json:"currency"`
		}{newQuoteResponse(quote), newCurrencyResponse(resolution)})
	}
}

// PricingTiers lists the fixed bundles plus the quote for ?nb_access.
func PricingTiers(engine PricingEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if engine == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing unavailable"))
			return
		}

		nbAccess, err := validators.ParseQueryInt(r, "nb_access", 0, 1, 1_000_000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		listing, err := engine.Tiers(nbAccess)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		tiers := make([]tierResponse, 0, len(listing.Tiers))
		for _, tier := range listing.Tiers {
			tiers = append(tiers, tierResponse{
				NbAccess:        tier.NbAccess,
				TotalPrice:      tier.TotalPrice.StringFixed(2),
				PricePerAccess:  tier.PricePerAccess.StringFixed(2),
				DiscountPercent: tier.DiscountPercent.StringFixed(1),
				TierName:        tier.TierName,
			})
		}
		var recommended *quoteResponse
		if listing.Recommended != nil {
			q := newQuoteResponse(*listing.Recommended)
			recommended = &q
		}
		responses.WriteSuccess(w, map[string]any{
			"tiers":       tiers,
			"recommended": recommended,
		})
	}
}

// DetectCurrency resolves the currency from ?currency or the caller's IP.
func DetectCurrency(resolver CurrencyResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if resolver == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "currency resolver unavailable"))
			return
		}
		resolution := resolver.Resolve(ctx, r.URL.Query().Get("currency"), currency.ClientIP(r))
		responses.WriteSuccess(w, newCurrencyResponse(resolution))
	}
}
