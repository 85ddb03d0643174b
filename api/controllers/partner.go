package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/privilegia/privilegia-backend/api/middleware"
	"github.com/privilegia/privilegia-backend/api/responses"
	"github.com/privilegia/privilegia-backend/api/validators"
	"github.com/privilegia/privilegia-backend/internal/flashoffers"
	"github.com/privilegia/privilegia-backend/internal/partners"
	"github.com/privilegia/privilegia-backend/internal/privileges"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/maps"
)

// PartnerOffers is the partner side of the flash-offer engine.
type PartnerOffers interface {
	CreateOffer(ctx context.Context, partnerID uuid.UUID, input flashoffers.CreateOfferInput) (*models.FlashOffer, error)
	ListPartnerOffers(ctx context.Context, params flashoffers.PartnerOffersParams) (*flashoffers.PartnerOffersResult, error)
	CancelOffer(ctx context.Context, offerID, partnerID uuid.UUID) (*models.FlashOffer, error)
	ValidateBooking(ctx context.Context, bookingID, partnerID uuid.UUID) (*models.Booking, error)
	Now() time.Time
}

type ActivationValidator interface {
	Validate(ctx context.Context, partnerID uuid.UUID, code string) (*models.PrivilegeActivation, error)
	Now() time.Time
}

type PartnerProfile interface {
	UpdateLocation(ctx context.Context, partnerID uuid.UUID, input partners.LocationInput) (*partners.LocationResult, error)
	SuggestAddresses(ctx context.Context, input string) ([]maps.AutocompleteSuggestion, error)
}

type createOfferPayload struct {
	Title         string          `json:"title" validate:"required,max=200"`
	Description   *string         `json:"description" validate:"omitempty,max=2000"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	TotalStock    int             `json:"total_stock" validate:"required,min=1"`
	ValidityStart time.Time       `json:"validity_start" validate:"required"`
	ValidityEnd   time.Time       `json:"validity_end" validate:"required"`
	Category      *string         `json:"category" validate:"omitempty,max=32"`
}

type validateActivationPayload struct {
	ValidationCode string `json:"validation_code" validate:"required"`
}

type partnerLocationPayload struct {
	PlaceID string `json:"place_id" validate:"omitempty,max=256"`
	Address string `json:"address" validate:"omitempty,max=512"`
}

func partnerID(ctx context.Context) (uuid.UUID, error) {
	id := middleware.PartnerUUID(ctx)
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "partner account required")
	}
	return id, nil
}

// CreateFlashOffer publishes an offer; the category is inferred when absent.
func CreateFlashOffer(svc PartnerOffers, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		partner, err := partnerID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload createOfferPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := flashoffers.CreateOfferInput{
			Title:         payload.Title,
			Description:   payload.Description,
			DiscountValue: payload.DiscountValue,
			TotalStock:    payload.TotalStock,
			ValidityStart: payload.ValidityStart,
			ValidityEnd:   payload.ValidityEnd,
		}
		if payload.Category != nil && strings.TrimSpace(*payload.Category) != "" {
			category, err := enums.ParseOfferCategory(strings.ToLower(strings.TrimSpace(*payload.Category)))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			input.Category = &category
		}

		offer, err := svc.CreateOffer(ctx, partner, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteCreated(w, flashoffers.OfferFromModel(*offer, svc.Now()))
	}
}

func ListFlashOffers(svc PartnerOffers, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		partner, err := partnerID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		query := r.URL.Query()
		result, err := svc.ListPartnerOffers(ctx, flashoffers.PartnerOffersParams{
			PartnerID: partner,
			Limit:     limit,
			Cursor:    strings.TrimSpace(query.Get("cursor")),
			Status:    query.Get("status"),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CancelFlashOffer(svc PartnerOffers, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		partner, err := partnerID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offerID, err := validators.ParseUUIDParam(r, "offer_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offer, err := svc.CancelOffer(ctx, offerID, partner)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, flashoffers.OfferFromModel(*offer, svc.Now()))
	}
}

// ValidateBooking redeems a confirmed booking at the partner's counter.
func ValidateBooking(svc PartnerOffers, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		partner, err := partnerID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		bookingID, err := validators.ParseUUIDParam(r, "booking_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		booking, err := svc.ValidateBooking(ctx, bookingID, partner)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, flashoffers.BookingFromModel(*booking))
	}
}

func ValidateActivation(svc ActivationValidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}
		partner, err := partnerID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload validateActivationPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		activation, err := svc.Validate(ctx, partner, payload.ValidationCode)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, privileges.FromModel(*activation, svc.Now()))
	}
}

func UpdatePartnerLocation(svc PartnerProfile, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "partner service unavailable"))
			return
		}
		partner, err := partnerID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload partnerLocationPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.UpdateLocation(ctx, partner, partners.LocationInput{PlaceID: payload.PlaceID, Address: payload.Address})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"address":   result.Partner.Address,
			"city":      result.Partner.City,
			"latitude":  result.Partner.Latitude,
			"longitude": result.Partner.Longitude,
			"geocoded":  result.Geocoded,
		})
	}
}

// SuggestAddresses proxies address autocomplete for the partner profile form.
func SuggestAddresses(svc PartnerProfile, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "partner service unavailable"))
			return
		}
		input := validators.SanitizeString(r.URL.Query().Get("input"), 200)
		suggestions, err := svc.SuggestAddresses(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, suggestions)
	}
}
