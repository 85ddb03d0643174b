package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// Partner is a business offering privileges and flash offers. Coordinates are
// nullable until the address has been geocoded.
type Partner struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OwnerUserID uuid.UUID           `gorm:"column:owner_user_id;type:uuid;not null;index:partners_owner_user_id_idx"`
	Name        string              `gorm:"column:name;not null"`
	Category    enums.OfferCategory `gorm:"column:category;type:varchar(32);not null;default:'general'"`
	Address     *string             `gorm:"column:address"`
	City        *string             `gorm:"column:city"`
	Latitude    *float64            `gorm:"column:latitude"`
	Longitude   *float64            `gorm:"column:longitude"`
	IsActive    bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Partner) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

func (p Partner) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}
