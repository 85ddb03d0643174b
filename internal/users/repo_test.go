package users

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.User{}))
	return conn
}

func TestRepositoryLifecycle(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Email: "m@example.com", FirstName: "Mia"})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleMember, user.Role)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLocation(ctx, user.ID, 46.52, 6.63, at))
	require.NoError(t, repo.AddPoints(ctx, user.ID, 10))
	require.NoError(t, repo.SetStripeCustomerID(ctx, user.ID, "cus_1"))
	require.NoError(t, repo.SetStripeCustomerID(ctx, user.ID, "cus_2"))

	got, err := repo.FindByEmail(ctx, "m@example.com")
	require.NoError(t, err)
	assert.True(t, got.HasLocation())
	assert.InDelta(t, 46.52, *got.LastLatitude, 1e-9)
	assert.Equal(t, 10, got.PointsBalance)
	require.NotNil(t, got.StripeCustomerID)
	assert.Equal(t, "cus_1", *got.StripeCustomerID)

	err = repo.AddPoints(ctx, uuid.New(), 5)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
