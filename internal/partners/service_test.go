package partners

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/pkg/db/models"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
	"github.com/privilegia/privilegia-backend/pkg/maps"
)

type fakeGeocoder struct {
	place *maps.PlaceDetails
	err   error
}

func (f fakeGeocoder) Autocomplete(context.Context, maps.AutocompleteRequest) ([]maps.AutocompleteSuggestion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []maps.AutocompleteSuggestion{{PlaceID: "p1", Description: "Rue de Bourg 1"}}, nil
}

func (f fakeGeocoder) ResolvePlace(context.Context, string) (*maps.PlaceDetails, error) {
	return f.place, f.err
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Partner{}, &models.Privilege{}))
	return NewRepository(db)
}

func TestUpdateLocationGeocodes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	partner := &models.Partner{OwnerUserID: uuid.New(), Name: "Cafe", IsActive: true}
	require.NoError(t, repo.Create(ctx, partner))

	svc, err := NewService(repo, fakeGeocoder{place: &maps.PlaceDetails{
		FormattedAddress:  "Rue de Bourg 1, Lausanne",
		Location:          maps.LatLng{Latitude: 46.52, Longitude: 6.63},
		AddressComponents: []maps.AddressComponent{{LongName: "Lausanne", Types: []string{"locality"}}},
	}}, nil)
	require.NoError(t, err)

	res, err := svc.UpdateLocation(ctx, partner.ID, LocationInput{PlaceID: "p1"})
	require.NoError(t, err)
	assert.True(t, res.Geocoded)
	require.True(t, res.Partner.HasLocation())
	assert.Equal(t, "Lausanne", *res.Partner.City)

	located, err := repo.ListWithLocation(ctx)
	require.NoError(t, err)
	assert.Len(t, located, 1)
}

func TestUpdateLocationDegradesOnGeocoderFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	partner := &models.Partner{OwnerUserID: uuid.New(), Name: "Spa", IsActive: true}
	require.NoError(t, repo.Create(ctx, partner))

	svc, _ := NewService(repo, fakeGeocoder{err: errors.New("quota")}, nil)
	res, err := svc.UpdateLocation(ctx, partner.ID, LocationInput{PlaceID: "p1", Address: "Grand-Rue 5"})
	require.NoError(t, err)
	assert.False(t, res.Geocoded)
	assert.False(t, res.Partner.HasLocation())
	assert.Equal(t, "Grand-Rue 5", *res.Partner.Address)

	_, err = svc.UpdateLocation(ctx, partner.ID, LocationInput{PlaceID: "p1"})
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))

	suggestions, err := svc.SuggestAddresses(ctx, "grand")
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestUpdateLocationValidation(t *testing.T) {
	svc, _ := NewService(newTestRepo(t), nil, nil)
	_, err := svc.UpdateLocation(context.Background(), uuid.New(), LocationInput{})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	_, err = svc.UpdateLocation(context.Background(), uuid.New(), LocationInput{Address: "x"})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
