package privileges

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/internal/repo"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// Repository persists privilege activations.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

func (r *Repository) Create(ctx context.Context, activation *models.PrivilegeActivation) error {
	return r.DB(ctx).Create(activation).Error
}

// FindUsable returns the member's usable activation at partnerID, if any.
func (r *Repository) FindUsable(ctx context.Context, memberID, partnerID uuid.UUID, now time.Time) (*models.PrivilegeActivation, error) {
	var activation models.PrivilegeActivation
	err := r.DB(ctx).
		Where("member_id = ? AND partner_id = ?", memberID, partnerID).
		Where("status = ? AND expires_at > ?", enums.ActivationStatusActive, now).
		Order("expires_at DESC").
		First(&activation).Error
	return nilIfMissing(&activation, err)
}

// LockByID loads the activation FOR UPDATE. Must run inside a transaction.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.PrivilegeActivation, error) {
	var activation models.PrivilegeActivation
	err := r.ForUpdate(ctx).
		First(&activation, "id = ?", id).Error
	return nilIfMissing(&activation, err)
}

// LockByCode loads the activation holding code FOR UPDATE.
func (r *Repository) LockByCode(ctx context.Context, code string) (*models.PrivilegeActivation, error) {
	var activation models.PrivilegeActivation
	err := r.ForUpdate(ctx).
		Where("validation_code = ?", code).
		First(&activation).Error
	return nilIfMissing(&activation, err)
}

// Transition moves an activation out of from, reporting false when it was no
// longer in that state.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.ActivationStatus, at time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	if to == enums.ActivationStatusValidated {
		updates["validated_at"] = at
	}
	res := r.DB(ctx).
		Model(&models.PrivilegeActivation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordFeedback writes the feedback fields only while they are still empty.
func (r *Repository) RecordFeedback(ctx context.Context, id uuid.UUID, rating int, comment *string, points int, at time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.PrivilegeActivation{}).
		Where("id = ? AND feedback_rating IS NULL", id).
		Updates(map[string]any{
			"feedback_rating":         rating,
			"feedback_comment":        comment,
			"feedback_submitted_at":   at,
			"feedback_points_awarded": points,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListByMember returns activations newest first. With usableAt set, only
// activations usable at that instant are returned.
func (r *Repository) ListByMember(ctx context.Context, memberID uuid.UUID, usableAt *time.Time, limit int) ([]models.PrivilegeActivation, error) {
	query := r.DB(ctx).Where("member_id = ?", memberID)
	if usableAt != nil {
		query = query.Where("status = ? AND expires_at > ?", enums.ActivationStatusActive, *usableAt)
	}
	var activations []models.PrivilegeActivation
	err := query.Order("activated_at DESC, id DESC").Limit(limit).Find(&activations).Error
	return activations, err
}

// ExpireStale rewrites "active" rows whose window closed before now. Reads
// never depend on it.
func (r *Repository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.PrivilegeActivation{}).
		Where("status = ? AND expires_at <= ?", enums.ActivationStatusActive, now).
		Update("status", enums.ActivationStatusExpired)
	return res.RowsAffected, res.Error
}

func nilIfMissing(activation *models.PrivilegeActivation, err error) (*models.PrivilegeActivation, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return activation, nil
}
