package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// User is a platform account. Members carry an optional last-known position;
// nil coordinates mean the position is unknown and radius matching is skipped.
type User struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email             string         `gorm:"column:email;type:text;not null;uniqueIndex:users_email_key"`
	FirstName         string         `gorm:"column:first_name;not null;default:''"`
	LastName          string         `gorm:"column:last_name;not null;default:''"`
	Role              enums.UserRole `gorm:"column:role;type:varchar(16);not null;default:'member'"`
	PointsBalance     int            `gorm:"column:points_balance;not null;default:0"`
	LastLatitude      *float64       `gorm:"column:last_latitude"`
	LastLongitude     *float64       `gorm:"column:last_longitude"`
	LocationUpdatedAt *time.Time     `gorm:"column:location_updated_at"`
	StripeCustomerID  *string        `gorm:"column:stripe_customer_id"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// HasLocation reports whether both coordinates are known.
func (u User) HasLocation() bool {
	return u.LastLatitude != nil && u.LastLongitude != nil
}
