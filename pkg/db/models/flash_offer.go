package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// FlashOffer is a time-boxed, stock-limited promotion. 0 <= CurrentStock <= TotalStock.
type FlashOffer struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PartnerID     uuid.UUID           `gorm:"column:partner_id;type:uuid;not null;index:flash_offers_partner_id_idx"`
	Title         string              `gorm:"column:title;not null"`
	Description   *string             `gorm:"column:description"`
	Category      enums.OfferCategory `gorm:"column:category;type:varchar(32);not null;default:'general'"`
	DiscountValue decimal.Decimal     `gorm:"column:discount_value;type:numeric(12,2);not null"`
	TotalStock    int                 `gorm:"column:total_stock;not null"`
	CurrentStock  int                 `gorm:"column:current_stock;not null"`
	ValidityStart time.Time           `gorm:"column:validity_start;not null"`
	ValidityEnd   time.Time           `gorm:"column:validity_end;not null;index:flash_offers_validity_end_idx"`
	Status        enums.OfferStatus   `gorm:"column:status;type:varchar(16);not null;default:'active';index:flash_offers_status_idx"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *FlashOffer) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// AvailableAt reports whether the offer can take a new reservation at now.
func (o FlashOffer) AvailableAt(now time.Time) bool {
	return o.Status == enums.OfferStatusActive &&
		o.CurrentStock > 0 &&
		!now.Before(o.ValidityStart) &&
		now.Before(o.ValidityEnd)
}
