package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/privilegia/privilegia-backend/api/middleware"
	"github.com/privilegia/privilegia-backend/api/responses"
	"github.com/privilegia/privilegia-backend/api/validators"
	"github.com/privilegia/privilegia-backend/internal/subscriptions"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
	"github.com/privilegia/privilegia-backend/pkg/logger"
)

// CheckoutCreator opens hosted subscription checkouts.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, userID uuid.UUID, nbAccess int, currencyCode string) (*subscriptions.CheckoutResult, error)
}

type createCheckoutPayload struct {
	NbAccess int    `json:"nb_access" validate:"required"`
	Currency string `json:"currency" validate:"required"`
}

// CreateCheckout returns the hosted checkout URL for the requested bundle.
func CreateCheckout(svc CheckoutCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID := middleware.UserUUID(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload createCheckoutPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.CreateCheckout(ctx, userID, payload.NbAccess, payload.Currency)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"checkout_url": result.CheckoutURL,
			"session_id":   result.SessionID,
			"quote":        newQuoteResponse(result.Quote),
		})
	}
}
