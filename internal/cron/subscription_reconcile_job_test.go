package cron

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/internal/subscriptions"
	pkgdb "github.com/privilegia/privilegia-backend/pkg/db"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
	"github.com/privilegia/privilegia-backend/pkg/logger"
)

type fakeFetcher struct {
	subs  map[string]*stripe.Subscription
	fails map[string]error
	calls []string
}

func (f *fakeFetcher) GetSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	f.calls = append(f.calls, id)
	if err := f.fails[id]; err != nil {
		return nil, err
	}
	return f.subs[id], nil
}

func openReconcileDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedSubscription(t *testing.T, db *gorm.DB, stripeID string, periodEnd time.Time) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		UserID:               uuid.New(),
		StripeSubscriptionID: stripeID,
		Status:               enums.SubscriptionStatusActive,
		NbAccess:             1,
		Currency:             enums.CurrencyCHF,
		TierType:             enums.TierTypeProgressive,
		CurrentPeriodEnd:     periodEnd,
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func renewed(id string, end time.Time) *stripe.Subscription {
	return &stripe.Subscription{
		ID:     id,
		Status: stripe.SubscriptionStatusActive,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				Price:              &stripe.Price{ID: "price_monthly"},
				CurrentPeriodStart: end.AddDate(0, -1, 0).Unix(),
				CurrentPeriodEnd:   end.Unix(),
			}},
		},
	}
}

func TestSubscriptionReconcileRefreshesLapsedRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := openReconcileDB(t)
	lapsed := seedSubscription(t, db, "sub_lapsed", now.Add(-time.Hour))
	current := seedSubscription(t, db, "sub_current", now.Add(24*time.Hour))
	seedSubscription(t, db, "sub_ancient", now.AddDate(0, -2, 0))

	nextEnd := now.AddDate(0, 1, 0).Truncate(time.Second)
	fetcher := &fakeFetcher{subs: map[string]*stripe.Subscription{"sub_lapsed": renewed("sub_lapsed", nextEnd)}}
	repo := subscriptions.NewRepository(db)
	job, err := NewSubscriptionReconcileJob(SubscriptionReconcileJobParams{
		Logger:   logger.Nop(),
		DB:       pkgdb.NewFromGorm(db),
		Repo:     repo,
		Provider: fetcher,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"sub_lapsed"}, fetcher.calls)

	stored, err := repo.FindByStripeID(context.Background(), lapsed.StripeSubscriptionID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.CurrentPeriodEnd.Equal(nextEnd))
	assert.True(t, stored.GrantsAccessAt(now))

	untouched, err := repo.FindByStripeID(context.Background(), current.StripeSubscriptionID)
	require.NoError(t, err)
	assert.True(t, untouched.CurrentPeriodEnd.Equal(current.CurrentPeriodEnd))
}

func TestSubscriptionReconcileAggregatesFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := openReconcileDB(t)
	seedSubscription(t, db, "sub_a", now.Add(-2*time.Hour))
	seedSubscription(t, db, "sub_b", now.Add(-time.Hour))

	nextEnd := now.AddDate(0, 1, 0).Truncate(time.Second)
	fetcher := &fakeFetcher{
		subs:  map[string]*stripe.Subscription{"sub_b": renewed("sub_b", nextEnd)},
		fails: map[string]error{"sub_a": errors.New("stripe unavailable")},
	}
	repo := subscriptions.NewRepository(db)
	job, err := NewSubscriptionReconcileJob(SubscriptionReconcileJobParams{
		Logger:   logger.Nop(),
		DB:       pkgdb.NewFromGorm(db),
		Repo:     repo,
		Provider: fetcher,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sub_a")
	assert.ElementsMatch(t, []string{"sub_a", "sub_b"}, fetcher.calls)

	stored, err := repo.FindByStripeID(context.Background(), "sub_b")
	require.NoError(t, err)
	assert.True(t, stored.CurrentPeriodEnd.Equal(nextEnd))
}
