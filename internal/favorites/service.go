package favorites

import (
	"context"

	"github.com/google/uuid"

	"github.com/privilegia/privilegia-backend/pkg/db/models"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
)

type partnerFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Partner, error)
}

// Set is a membership view over partner ids.
type Set map[uuid.UUID]struct{}

func (s Set) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Service exposes favorites as explicit id-based operations.
type Service struct {
	repo     *Repository
	partners partnerFinder
}

func NewService(repo *Repository, partners partnerFinder) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "favorites repo is required")
	}
	if partners == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "partner repo is required")
	}
	return &Service{repo: repo, partners: partners}, nil
}

// Add follows an existing partner. Adding twice is a no-op.
func (s *Service) Add(ctx context.Context, memberID, partnerID uuid.UUID) error {
	if partnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "partner id is required")
	}
	if _, err := s.partners.FindByID(ctx, partnerID); err != nil {
		return err
	}
	if err := s.repo.Add(ctx, memberID, partnerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add favorite")
	}
	return nil
}

func (s *Service) Remove(ctx context.Context, memberID, partnerID uuid.UUID) error {
	if err := s.repo.Remove(ctx, memberID, partnerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove favorite")
	}
	return nil
}

func (s *Service) IsFavorite(ctx context.Context, memberID, partnerID uuid.UUID) (bool, error) {
	ok, err := s.repo.IsFavorite(ctx, memberID, partnerID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check favorite")
	}
	return ok, nil
}

// ListFavorites returns the member's favorite partner ids as a set.
func (s *Service) ListFavorites(ctx context.Context, memberID uuid.UUID) (Set, error) {
	ids, err := s.repo.ListPartnerIDs(ctx, memberID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list favorites")
	}
	set := make(Set, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// ListPartnerIDs keeps the newest-first order for display.
func (s *Service) ListPartnerIDs(ctx context.Context, memberID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.repo.ListPartnerIDs(ctx, memberID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list favorites")
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}
