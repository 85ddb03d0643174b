package favorites

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/privilegia/privilegia-backend/pkg/db/models"
)

// Repository manages the member to partner association table.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Add inserts the pair and ignores duplicates.
func (r *Repository) Add(ctx context.Context, memberID, partnerID uuid.UUID) error {
	if memberID == uuid.Nil || partnerID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.FavoritePartner{MemberID: memberID, PartnerID: partnerID}).
		Error
}

func (r *Repository) Remove(ctx context.Context, memberID, partnerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("member_id = ? AND partner_id = ?", memberID, partnerID).
		Delete(&models.FavoritePartner{}).
		Error
}

func (r *Repository) IsFavorite(ctx context.Context, memberID, partnerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FavoritePartner{}).
		Where("member_id = ? AND partner_id = ?", memberID, partnerID).
		Count(&count).Error
	return count > 0, err
}

// ListPartnerIDs returns the member's favorites, newest first.
func (r *Repository) ListPartnerIDs(ctx context.Context, memberID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.FavoritePartner{}).
		Where("member_id = ?", memberID).
		Order("created_at DESC").
		Pluck("partner_id", &ids).Error
	return ids, err
}
