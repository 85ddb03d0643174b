package flashoffers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/internal/repo"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
	"github.com/privilegia/privilegia-backend/pkg/pagination"
)

// Repository persists flash offers and their bookings. Lookups return
// (nil, nil) when the row does not exist.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to an open transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

func (r *Repository) CreateOffer(ctx context.Context, offer *models.FlashOffer) error {
	return r.DB(ctx).Create(offer).Error
}

func (r *Repository) FindOffer(ctx context.Context, id uuid.UUID) (*models.FlashOffer, error) {
	return repo.FirstOrNil[models.FlashOffer](r.DB(ctx), "id = ?", id)
}

// LockOffer loads the offer FOR UPDATE. Must run inside a transaction.
func (r *Repository) LockOffer(ctx context.Context, id uuid.UUID) (*models.FlashOffer, error) {
	return repo.FirstOrNil[models.FlashOffer](r.ForUpdate(ctx), "id = ?", id)
}

// DecrementStock takes one unit of stock. It reports false when the stock was
// already exhausted, so current_stock never goes negative even without the
// row lock.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.DB(ctx).
		Model(&models.FlashOffer{}).
		Where("id = ? AND current_stock > 0", id).
		UpdateColumn("current_stock", gorm.Expr("current_stock - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RestoreStock gives one unit back, capped at total_stock.
func (r *Repository) RestoreStock(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.DB(ctx).
		Model(&models.FlashOffer{}).
		Where("id = ? AND current_stock < total_stock", id).
		UpdateColumn("current_stock", gorm.Expr("current_stock + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) UpdateOfferStatus(ctx context.Context, id uuid.UUID, status enums.OfferStatus) error {
	return r.DB(ctx).
		Model(&models.FlashOffer{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ListAvailableByPartners returns offers that can take a reservation at now.
func (r *Repository) ListAvailableByPartners(ctx context.Context, partnerIDs []uuid.UUID, now time.Time) ([]models.FlashOffer, error) {
	if len(partnerIDs) == 0 {
		return []models.FlashOffer{}, nil
	}
	var offers []models.FlashOffer
	err := r.DB(ctx).
		Where("partner_id IN ?", partnerIDs).
		Where("status = ? AND current_stock > 0", enums.OfferStatusActive).
		Where("validity_start <= ? AND validity_end > ?", now, now).
		Order("validity_end ASC, id ASC").
		Find(&offers).Error
	return offers, err
}

type listPartnerOffersParams struct {
	PartnerID uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
	Status    *enums.OfferStatus
}

// ListByPartner pages through a partner's offers newest first.
func (r *Repository) ListByPartner(ctx context.Context, params listPartnerOffersParams) ([]models.FlashOffer, *pagination.Cursor, error) {
	query := r.DB(ctx).Model(&models.FlashOffer{}).Where("partner_id = ?", params.PartnerID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var offers []models.FlashOffer
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(params.Limit)).Find(&offers).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(offers, params.Limit, func(o models.FlashOffer) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

// FindLiveBooking returns the member's non-cancelled booking for offerID.
func (r *Repository) FindLiveBooking(ctx context.Context, memberID, offerID uuid.UUID) (*models.Booking, error) {
	return repo.FirstOrNil[models.Booking](r.DB(ctx).
		Where("member_id = ? AND offer_id = ? AND status <> ?", memberID, offerID, enums.BookingStatusCancelled))
}

func (r *Repository) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return r.DB(ctx).Create(booking).Error
}

func (r *Repository) FindBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return repo.FirstOrNil[models.Booking](r.DB(ctx), "id = ?", id)
}

// LockBooking loads the booking FOR UPDATE. Must run inside a transaction.
func (r *Repository) LockBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return repo.FirstOrNil[models.Booking](r.ForUpdate(ctx), "id = ?", id)
}

// TransitionBooking moves a booking out of from. It reports false when the
// booking was no longer in that state.
func (r *Repository) TransitionBooking(ctx context.Context, id uuid.UUID, from, to enums.BookingStatus, at time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	switch to {
	case enums.BookingStatusUsed:
		updates["used_at"] = at
	case enums.BookingStatusCancelled:
		updates["cancelled_at"] = at
	}
	res := r.DB(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListBookingsByMember returns the member's bookings newest first.
func (r *Repository) ListBookingsByMember(ctx context.Context, memberID uuid.UUID, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.DB(ctx).
		Where("member_id = ?", memberID).
		Order("created_at DESC, id DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&bookings).Error
	return bookings, err
}

// ExpireElapsed marks active offers whose window has closed.
func (r *Repository) ExpireElapsed(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.FlashOffer{}).
		Where("status = ? AND validity_end <= ?", enums.OfferStatusActive, now).
		Update("status", enums.OfferStatusExpired)
	return res.RowsAffected, res.Error
}

// ExpireExhausted marks active offers with no stock left.
func (r *Repository) ExpireExhausted(ctx context.Context) (int64, error) {
	res := r.DB(ctx).
		Model(&models.FlashOffer{}).
		Where("status = ? AND current_stock = 0", enums.OfferStatusActive).
		Update("status", enums.OfferStatusExpired)
	return res.RowsAffected, res.Error
}
