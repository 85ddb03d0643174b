package partners

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/privilegia/privilegia-backend/pkg/db/models"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/maps"
)

// Geocoder resolves free-form addresses into coordinates.
type Geocoder interface {
	Autocomplete(ctx context.Context, req maps.AutocompleteRequest) ([]maps.AutocompleteSuggestion, error)
	ResolvePlace(ctx context.Context, placeID string) (*maps.PlaceDetails, error)
}

// LocationInput sets a partner address. PlaceID is resolved through the
// geocoder; Address alone is stored as text.
type LocationInput struct {
	PlaceID string `json:"place_id"`
	Address string `json:"address"`
}

// LocationResult reports whether coordinates were obtained.
type LocationResult struct {
	Partner  *models.Partner
	Geocoded bool
}

type Service struct {
	repo     *Repository
	geocoder Geocoder
	logg     *logger.Logger
}

// NewService accepts a nil geocoder; addresses are then stored as text only.
func NewService(repo *Repository, geocoder Geocoder, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "partner repo is required")
	}
	return &Service{repo: repo, geocoder: geocoder, logg: logg}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateLocation geocodes and stores the partner address. A geocoder failure
// keeps the previous coordinates and stores the address text.
func (s *Service) UpdateLocation(ctx context.Context, partnerID uuid.UUID, input LocationInput) (*LocationResult, error) {
	placeID := strings.TrimSpace(input.PlaceID)
	address := strings.TrimSpace(input.Address)
	if placeID == "" && address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "place_id or address is required")
	}
	if _, err := s.repo.FindByID(ctx, partnerID); err != nil {
		return nil, err
	}

	geocoded := false
	if placeID != "" && s.geocoder != nil {
		place, err := s.geocoder.ResolvePlace(ctx, placeID)
		if err != nil {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"partner_id": partnerID.String(), "error": err.Error()}), "partners.geocode_failed")
			}
		} else {
			if place.FormattedAddress != "" {
				address = place.FormattedAddress
			}
			if err := s.repo.UpdateLocation(ctx, partnerID, address, place.Locality(), place.Location.Latitude, place.Location.Longitude); err != nil {
				return nil, err
			}
			geocoded = true
		}
	}
	if !geocoded {
		if address == "" {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "address could not be resolved")
		}
		if err := s.repo.UpdateAddress(ctx, partnerID, address); err != nil {
			return nil, err
		}
	}

	partner, err := s.repo.FindByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	return &LocationResult{Partner: partner, Geocoded: geocoded}, nil
}

// SuggestAddresses returns autocomplete candidates, or none when the
// geocoder is unavailable.
func (s *Service) SuggestAddresses(ctx context.Context, input string) ([]maps.AutocompleteSuggestion, error) {
	if strings.TrimSpace(input) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "input is required")
	}
	if s.geocoder == nil {
		return []maps.AutocompleteSuggestion{}, nil
	}
	suggestions, err := s.geocoder.Autocomplete(ctx, maps.AutocompleteRequest{Input: input})
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "partners.autocomplete_failed")
		}
		return []maps.AutocompleteSuggestion{}, nil
	}
	return suggestions, nil
}
