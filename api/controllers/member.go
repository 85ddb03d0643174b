package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/privilegia/privilegia-backend/api/middleware"
	"github.com/privilegia/privilegia-backend/api/responses"
	"github.com/privilegia/privilegia-backend/api/validators"
	"github.com/privilegia/privilegia-backend/internal/flashoffers"
	"github.com/privilegia/privilegia-backend/internal/privileges"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
	"github.com/privilegia/privilegia-backend/pkg/logger"
)

// MemberOffers is the member side of the flash-offer engine.
type MemberOffers interface {
	Reserve(ctx context.Context, offerID, memberID uuid.UUID) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID, memberID uuid.UUID) (*models.Booking, error)
	ListNearby(ctx context.Context, memberID uuid.UUID) ([]flashoffers.NearbyOfferDTO, error)
	ListMemberBookings(ctx context.Context, memberID uuid.UUID, limit int) ([]flashoffers.BookingDTO, error)
}

// MemberActivations is the member side of the activation state machine.
type MemberActivations interface {
	Activate(ctx context.Context, memberID uuid.UUID, input privileges.ActivateInput) (*models.PrivilegeActivation, error)
	SubmitFeedback(ctx context.Context, memberID uuid.UUID, input privileges.FeedbackInput) (*models.PrivilegeActivation, error)
	Cancel(ctx context.Context, memberID, activationID uuid.UUID) (*models.PrivilegeActivation, error)
	ListActive(ctx context.Context, memberID uuid.UUID) ([]privileges.ActivationDTO, error)
	ListHistory(ctx context.Context, memberID uuid.UUID) ([]privileges.ActivationDTO, error)
	Now() time.Time
}

type LocationStore interface {
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64, at time.Time) error
}

type FavoritesService interface {
	Add(ctx context.Context, memberID, partnerID uuid.UUID) error
	Remove(ctx context.Context, memberID, partnerID uuid.UUID) error
	ListPartnerIDs(ctx context.Context, memberID uuid.UUID) ([]uuid.UUID, error)
}

type activatePayload struct {
	OfferID    string   `json:"offer_id" validate:"required,uuid"`
	Latitude   *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude" validate:"omitempty,longitude"`
	DeviceInfo *string  `json:"device_info" validate:"omitempty,max=512"`
}

type feedbackPayload struct {
	ActivationID string  `json:"activation_id" validate:"required,uuid"`
	Rating       int     `json:"rating"`
	Comment      *string `json:"comment" validate:"omitempty,max=2000"`
}

type locationPayload struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

func memberID(ctx context.Context) (uuid.UUID, error) {
	id := middleware.UserUUID(ctx)
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return id, nil
}

// ReserveOffer books one unit of a flash offer for the caller.
func ReserveOffer(svc MemberOffers, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		member, err := memberID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offerID, err := validators.ParseUUIDParam(r, "offer_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		booking, err := svc.Reserve(ctx, offerID, member)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteCreated(w, flashoffers.BookingFromModel(*booking))
	}
}

func NearbyOffers(svc MemberOffers, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		member, err := memberID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offers, err := svc.ListNearby(ctx, member)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, offers)
	}
}

func CancelBooking(svc MemberOffers, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		member, err := memberID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		bookingID, err := validators.ParseUUIDParam(r, "booking_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		booking, err := svc.CancelBooking(ctx, bookingID, member)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, flashoffers.BookingFromModel(*booking))
	}
}

func MemberBookings(svc MemberOffers, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		member, err := memberID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		bookings, err := svc.ListMemberBookings(ctx, member, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookings)
	}
}

// UpdateMemberLocation stores the member's last known position, used by the
// nearby filter.
func UpdateMemberLocation(store LocationStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member store unavailable"))
			return
		}
		member, err := memberID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload locationPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		at := time.Now().UTC()
		if err := store.UpdateLocation(ctx, member, *payload.Latitude, *payload.Longitude, at); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"latitude":   *payload.Latitude,
			"longitude":  *payload.Longitude,
			"updated_at": at,
		})
	}
}

func AddFavorite(svc FavoritesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "favorites unavailable"))
			return
		}
		member, err := memberID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		partnerID, err := validators.ParseUUIDParam(r, "partner_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.Add(ctx, member, partnerID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"added": true})
	}
}

func RemoveFavorite(svc FavoritesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "favorites unavailable"))
			return
		}
		member, err := memberID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		partnerID, err := validators.ParseUUIDParam(r, "partner_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.Remove(ctx, member, partnerID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"removed": true})
	}
}

func ListFavorites(svc FavoritesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "favorites unavailable"))
			return
		}
		member, err := memberID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ids, err := svc.ListPartnerIDs(ctx, member)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"partner_ids": ids})
	}
}

// ActivatePrivilege opens the short redemption window for an offer.
func ActivatePrivilege(svc MemberActivations, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}
		member, err := memberID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload activatePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		activation, err := svc.Activate(ctx, member, privileges.ActivateInput{
			OfferID:    uuid.MustParse(payload.OfferID),
			Latitude:   payload.Latitude,
			Longitude:  payload.Longitude,
			DeviceInfo: payload.DeviceInfo,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteCreated(w, privileges.FromModel(*activation, svc.Now()))
	}
}

// SubmitFeedback records the one-time rating; the range check lives in the
// service so it maps to INVALID_RATING.
func SubmitFeedback(svc MemberActivations, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}
		member, err := memberID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload feedbackPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		activation, err := svc.SubmitFeedback(ctx, member, privileges.FeedbackInput{
			ActivationID: uuid.MustParse(payload.ActivationID),
			Rating:       payload.Rating,
			Comment:      payload.Comment,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, privileges.FromModel(*activation, svc.Now()))
	}
}

// MemberActivationsList lists usable activations, or the full history with
// ?scope=history.
func MemberActivationsList(svc MemberActivations, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}
		member, err := memberID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var rows []privileges.ActivationDTO
		switch r.URL.Query().Get("scope") {
		case "", "active":
			rows, err = svc.ListActive(ctx, member)
		case "history":
			rows, err = svc.ListHistory(ctx, member)
		default:
			err = pkgerrors.New(pkgerrors.CodeValidation, "scope must be active or history")
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func CancelActivation(svc MemberActivations, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}
		member, err := memberID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		activationID, err := validators.ParseUUIDParam(r, "activation_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		activation, err := svc.Cancel(ctx, member, activationID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, privileges.FromModel(*activation, svc.Now()))
	}
}
