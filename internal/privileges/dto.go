package privileges

import (
	"time"

	"github.com/google/uuid"

	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// ActivateInput is the member request to open a redemption window.
type ActivateInput struct {
	OfferID    uuid.UUID
	Latitude   *float64
	Longitude  *float64
	DeviceInfo *string
}

type FeedbackInput struct {
	ActivationID uuid.UUID
	Rating       int
	Comment      *string
}

// ActivationDTO exposes the effective status, so a stale "active" row past
// its window reads as expired.
type ActivationDTO struct {
	ID                    uuid.UUID              `json:"id"`
	MemberID              uuid.UUID              `json:"member_id"`
	PartnerID             uuid.UUID              `json:"partner_id"`
	OfferID               uuid.UUID              `json:"offer_id"`
	ValidationCode        string                 `json:"validation_code"`
	Status                enums.ActivationStatus `json:"status"`
	ActivatedAt           time.Time              `json:"activated_at"`
	ExpiresAt             time.Time              `json:"expires_at"`
	RemainingSeconds      int                    `json:"remaining_seconds"`
	ValidatedAt           *time.Time             `json:"validated_at,omitempty"`
	FeedbackRating        *int                   `json:"feedback_rating,omitempty"`
	FeedbackComment       *string                `json:"feedback_comment,omitempty"`
	FeedbackPointsAwarded int                    `json:"feedback_points_awarded"`
}

func FromModel(a models.PrivilegeActivation, now time.Time) ActivationDTO {
	remaining := 0
	if a.UsableAt(now) {
		remaining = int(a.ExpiresAt.Sub(now).Seconds())
	}
	return ActivationDTO{
		ID:                    a.ID,
		MemberID:              a.MemberID,
		PartnerID:             a.PartnerID,
		OfferID:               a.OfferID,
		ValidationCode:        a.ValidationCode,
		Status:                a.EffectiveStatus(now),
		ActivatedAt:           a.ActivatedAt,
		ExpiresAt:             a.ExpiresAt,
		RemainingSeconds:      remaining,
		ValidatedAt:           a.ValidatedAt,
		FeedbackRating:        a.FeedbackRating,
		FeedbackComment:       a.FeedbackComment,
		FeedbackPointsAwarded: a.FeedbackPointsAwarded,
	}
}
