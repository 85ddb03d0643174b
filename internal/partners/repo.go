package partners

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/internal/repo"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
)

// Repository persists partners and their standing privileges.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, partner *models.Partner) error {
	return r.DB(ctx).Create(partner).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	var partner models.Partner
	if err := r.DB(ctx).First(&partner, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "partner not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partner")
	}
	return &partner, nil
}

// FindByOwner returns the partner operated by userID.
func (r *Repository) FindByOwner(ctx context.Context, userID uuid.UUID) (*models.Partner, error) {
	var partner models.Partner
	if err := r.DB(ctx).Where("owner_user_id = ?", userID).First(&partner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "partner not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partner")
	}
	return &partner, nil
}

// ListWithLocation returns active partners whose coordinates are known.
func (r *Repository) ListWithLocation(ctx context.Context) ([]models.Partner, error) {
	var partners []models.Partner
	err := r.DB(ctx).
		Where("is_active = ? AND latitude IS NOT NULL AND longitude IS NOT NULL", true).
		Find(&partners).Error
	return partners, err
}

// UpdateLocation stores a geocoded address.
func (r *Repository) UpdateLocation(ctx context.Context, id uuid.UUID, address, city string, lat, lng float64) error {
	res := r.DB(ctx).
		Model(&models.Partner{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"address":   address,
			"city":      city,
			"latitude":  lat,
			"longitude": lng,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "partner not found")
	}
	return nil
}

func (r *Repository) CreatePrivilege(ctx context.Context, privilege *models.Privilege) error {
	return r.DB(ctx).Create(privilege).Error
}

// FindPrivilege loads a privilege by id.
func (r *Repository) FindPrivilege(ctx context.Context, id uuid.UUID) (*models.Privilege, error) {
	var privilege models.Privilege
	if err := r.DB(ctx).First(&privilege, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "privilege not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load privilege")
	}
	return &privilege, nil
}

// UpdateAddress stores the address text only, leaving coordinates untouched.
func (r *Repository) UpdateAddress(ctx context.Context, id uuid.UUID, address string) error {
	res := r.DB(ctx).Model(&models.Partner{}).Where("id = ?", id).Update("address", address)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "partner not found")
	}
	return nil
}
