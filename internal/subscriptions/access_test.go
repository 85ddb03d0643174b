package subscriptions

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
	require.NoError(t, conn.AutoMigrate(&models.Subscription{}))
	return conn
}

func TestActiveForUser(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	checker := NewAccessChecker(repo)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	userID := uuid.New()
	_, err := checker.ActiveForUser(ctx, userID, now)
	assert.Equal(t, pkgerrors.CodeSubscriptionExpired, pkgerrors.CodeOf(err))

	sub := &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: "sub_a",
		Status:               enums.SubscriptionStatusActive,
		NbAccess:             5,
		Currency:             enums.CurrencyCHF,
		TierType:             enums.TierTypeProgressive,
		CurrentPeriodEnd:     now.Add(time.Hour),
	}
	require.NoError(t, repo.Create(ctx, sub))

	got, err := checker.ActiveForUser(ctx, userID, now)
	require.NoError(t, err)
	assert.Equal(t, "sub_a", got.StripeSubscriptionID)

	_, err = checker.ActiveForUser(ctx, userID, now.Add(2*time.Hour))
	assert.Equal(t, pkgerrors.CodeSubscriptionExpired, pkgerrors.CodeOf(err))

	sub.Status = enums.SubscriptionStatusPastDue
	require.NoError(t, repo.Update(ctx, sub))
	_, err = checker.ActiveForUser(ctx, userID, now)
	assert.Equal(t, pkgerrors.CodeSubscriptionExpired, pkgerrors.CodeOf(err))
}
