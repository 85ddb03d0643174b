package flashoffers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// CreateOfferInput is the partner-supplied part of a new offer.
type CreateOfferInput struct {
	Title         string
	Description   *string
	DiscountValue decimal.Decimal
	TotalStock    int
	ValidityStart time.Time
	ValidityEnd   time.Time
	// Category skips AI categorization when set.
	Category *enums.OfferCategory
}

// OfferDTO is the API view of a flash offer. Available folds stock and
// validity window into a single flag.
type OfferDTO struct {
	ID            uuid.UUID           `json:"id"`
	PartnerID     uuid.UUID           `json:"partner_id"`
	Title         string              `json:"title"`
	Description   *string             `json:"description,omitempty"`
	Category      enums.OfferCategory `json:"category"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	TotalStock    int                 `json:"total_stock"`
	CurrentStock  int                 `json:"current_stock"`
	ValidityStart time.Time           `json:"validity_start"`
	ValidityEnd   time.Time           `json:"validity_end"`
	Status        enums.OfferStatus   `json:"status"`
	Available     bool                `json:"available"`
	CreatedAt     time.Time           `json:"created_at"`
}

func OfferFromModel(offer models.FlashOffer, now time.Time) OfferDTO {
	return OfferDTO{
		ID:            offer.ID,
		PartnerID:     offer.PartnerID,
		Title:         offer.Title,
		Description:   offer.Description,
		Category:      offer.Category,
		DiscountValue: offer.DiscountValue,
		TotalStock:    offer.TotalStock,
		CurrentStock:  offer.CurrentStock,
		ValidityStart: offer.ValidityStart,
		ValidityEnd:   offer.ValidityEnd,
		Status:        offer.Status,
		Available:     offer.AvailableAt(now),
		CreatedAt:     offer.CreatedAt,
	}
}

// NearbyOfferDTO decorates an offer with why the member sees it.
type NearbyOfferDTO struct {
	OfferDTO
	IsFavorite     bool     `json:"is_favorite"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

type BookingDTO struct {
	ID          uuid.UUID           `json:"id"`
	MemberID    uuid.UUID           `json:"member_id"`
	OfferID     uuid.UUID           `json:"offer_id"`
	PartnerID   uuid.UUID           `json:"partner_id"`
	Status      enums.BookingStatus `json:"status"`
	UsedAt      *time.Time          `json:"used_at,omitempty"`
	CancelledAt *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

func BookingFromModel(b models.Booking) BookingDTO {
	return BookingDTO{
		ID:          b.ID,
		MemberID:    b.MemberID,
		OfferID:     b.OfferID,
		PartnerID:   b.PartnerID,
		Status:      b.Status,
		UsedAt:      b.UsedAt,
		CancelledAt: b.CancelledAt,
		CreatedAt:   b.CreatedAt,
	}
}

// PartnerOffersParams configures the partner offer listing.
type PartnerOffersParams struct {
	PartnerID uuid.UUID
	Limit     int
	Cursor    string
	Status    string
}

// PartnerOffersResult is one page of partner offers.
type PartnerOffersResult struct {
	Items  []OfferDTO `json:"items"`
	Cursor string     `json:"cursor"`
}
