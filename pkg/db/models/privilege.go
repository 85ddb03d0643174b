package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// Privilege is a standing discount a partner grants to subscribed members.
type Privilege struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PartnerID     uuid.UUID           `gorm:"column:partner_id;type:uuid;not null;index:privileges_partner_id_idx"`
	Title         string              `gorm:"column:title;not null"`
	Description   *string             `gorm:"column:description"`
	DiscountLabel string              `gorm:"column:discount_label;not null;default:''"`
	Category      enums.OfferCategory `gorm:"column:category;type:varchar(32);not null;default:'general'"`
	IsActive      bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Privilege) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
