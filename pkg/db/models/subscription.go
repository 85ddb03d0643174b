package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// Subscription persists billing provider subscription state per user. Rows
// are only written by the billing webhook.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index:subscriptions_user_id_idx"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null;uniqueIndex:subscriptions_stripe_subscription_id_key"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;default:'active'"`
	NbAccess             int                      `gorm:"column:nb_access;not null;default:1"`
	Currency             enums.Currency           `gorm:"column:currency;type:varchar(3);not null;default:'CHF'"`
	TierType             enums.TierType           `gorm:"column:tier_type;type:varchar(16);not null;default:'progressive'"`
	PriceID              *string                  `gorm:"column:price_id"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd     time.Time                `gorm:"column:current_period_end;not null"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	CanceledAt           *time.Time               `gorm:"column:canceled_at"`
	Metadata             json.RawMessage          `gorm:"column:metadata;type:jsonb"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// GrantsAccessAt reports whether the subscription is usable at now.
func (s Subscription) GrantsAccessAt(now time.Time) bool {
	return s.Status.GrantsAccess() && s.CurrentPeriodEnd.After(now)
}
