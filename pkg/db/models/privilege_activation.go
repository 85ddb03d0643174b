package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// PrivilegeActivation is a short redemption window for one member at one
// partner. Status may read "active" after ExpiresAt; use EffectiveStatus.
type PrivilegeActivation struct {
	ID                    uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	MemberID              uuid.UUID              `gorm:"column:member_id;type:uuid;not null;index:privilege_activations_member_partner_idx,priority:1"`
	PartnerID             uuid.UUID              `gorm:"column:partner_id;type:uuid;not null;index:privilege_activations_member_partner_idx,priority:2"`
	OfferID               uuid.UUID              `gorm:"column:offer_id;type:uuid;not null"`
	ActivatedAt           time.Time              `gorm:"column:activated_at;not null"`
	ExpiresAt             time.Time              `gorm:"column:expires_at;not null"`
	ValidationCode        string                 `gorm:"column:validation_code;type:varchar(8);not null;uniqueIndex:privilege_activations_validation_code_key"`
	Status                enums.ActivationStatus `gorm:"column:status;type:varchar(16);not null;default:'active'"`
	Latitude              *float64               `gorm:"column:latitude"`
	Longitude             *float64               `gorm:"column:longitude"`
	DeviceInfo            *string                `gorm:"column:device_info"`
	ValidatedAt           *time.Time             `gorm:"column:validated_at"`
	FeedbackRating        *int                   `gorm:"column:feedback_rating"`
	FeedbackComment       *string                `gorm:"column:feedback_comment"`
	FeedbackSubmittedAt   *time.Time             `gorm:"column:feedback_submitted_at"`
	FeedbackPointsAwarded int                    `gorm:"column:feedback_points_awarded;not null;default:0"`
	CreatedAt             time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *PrivilegeActivation) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// UsableAt is the authoritative "currently usable" predicate.
func (a PrivilegeActivation) UsableAt(now time.Time) bool {
	return a.Status == enums.ActivationStatusActive && a.ExpiresAt.After(now)
}

// EffectiveStatus folds lazy expiry into the stored status.
func (a PrivilegeActivation) EffectiveStatus(now time.Time) enums.ActivationStatus {
	if a.Status == enums.ActivationStatusActive && !a.ExpiresAt.After(now) {
		return enums.ActivationStatusExpired
	}
	return a.Status
}
