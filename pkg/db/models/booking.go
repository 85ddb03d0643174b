package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// Booking is a flash-offer reservation. At most one non-cancelled booking
// exists per (member, offer); the partial unique index enforces it.
type Booking struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	MemberID    uuid.UUID           `gorm:"column:member_id;type:uuid;not null;uniqueIndex:bookings_member_offer_live_key,where:status <> 'cancelled'"`
	OfferID     uuid.UUID           `gorm:"column:offer_id;type:uuid;not null;uniqueIndex:bookings_member_offer_live_key,where:status <> 'cancelled';index:bookings_offer_id_idx"`
	PartnerID   uuid.UUID           `gorm:"column:partner_id;type:uuid;not null;index:bookings_partner_id_idx"`
	Status      enums.BookingStatus `gorm:"column:status;type:varchar(16);not null;default:'confirmed'"`
	UsedAt      *time.Time          `gorm:"column:used_at"`
	CancelledAt *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
