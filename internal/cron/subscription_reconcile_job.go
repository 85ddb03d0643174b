package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/internal/subscriptions"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/metrics"
)

const (
	SubscriptionReconcileJobName = "subscription-reconcile"
	defaultReconcileLimit        = 250
	defaultReconcileLookback     = 7 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

// SubscriptionReconcileJobParams configures the billing resync job.
type SubscriptionReconcileJobParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Repo     subscriptions.Repository
	Provider subscriptionFetcher
	Metrics  *metrics.CronJobMetrics
	Limit    int
	Lookback time.Duration
	Now      func() time.Time
}

// NewSubscriptionReconcileJob builds the job that refetches subscriptions
// whose period ended while they were still stored as granting access. A
// renewal webhook that never arrived would otherwise lock the member out.
func NewSubscriptionReconcileJob(params SubscriptionReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("billing provider required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultReconcileLookback
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &subscriptionReconcileJob{
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Repo,
		provider: params.Provider,
		metrics:  params.Metrics,
		now:      now,
		limit:    limit,
		lookback: lookback,
	}, nil
}

type subscriptionReconcileJob struct {
	logg     *logger.Logger
	db       txRunner
	repo     subscriptions.Repository
	provider subscriptionFetcher
	metrics  *metrics.CronJobMetrics
	now      func() time.Time
	limit    int
	lookback time.Duration
}

func (j *subscriptionReconcileJob) Name() string { return SubscriptionReconcileJobName }

func (j *subscriptionReconcileJob) Run(ctx context.Context) error {
	candidates, err := j.repo.ListForReconciliation(ctx, j.now(), j.lookback, j.limit)
	if err != nil {
		return fmt.Errorf("list subscriptions for reconciliation: %w", err)
	}
	var errs error
	synced := 0
	for i := range candidates {
		if err := j.reconcile(ctx, &candidates[i]); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		synced++
	}
	j.metrics.AddAffected(j.Name(), int64(synced))
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"synced":     synced,
	}), "subscription reconcile loop complete")
	return errs
}

func (j *subscriptionReconcileJob) reconcile(ctx context.Context, sub *models.Subscription) error {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"subscription_id":        sub.ID.String(),
		"stripe_subscription_id": sub.StripeSubscriptionID,
	})
	if strings.TrimSpace(sub.StripeSubscriptionID) == "" {
		return nil
	}
	remote, err := j.provider.GetSubscription(logCtx, sub.StripeSubscriptionID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", sub.StripeSubscriptionID, err)
	}
	if remote == nil {
		j.logg.Warn(logCtx, "billing subscription not found; skipping")
		return nil
	}
	return j.db.WithTx(logCtx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)
		stored, err := repo.FindByStripeID(logCtx, remote.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			return nil
		}
		if err := subscriptions.UpdateSubscriptionFromStripe(stored, remote); err != nil {
			return err
		}
		if err := repo.Update(logCtx, stored); err != nil {
			return fmt.Errorf("persist subscription %s: %w", stored.StripeSubscriptionID, err)
		}
		j.logg.Info(j.logg.WithFields(logCtx, map[string]any{
			"status":     stored.Status.String(),
			"period_end": stored.CurrentPeriodEnd,
		}), "subscription reconciled")
		return nil
	})
}
