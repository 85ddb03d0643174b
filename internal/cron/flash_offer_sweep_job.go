package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/metrics"
)

const FlashOfferSweepJobName = "flash-offer-sweep"

type offerSweeper interface {
	ExpireElapsed(ctx context.Context, now time.Time) (int64, error)
	ExpireExhausted(ctx context.Context) (int64, error)
}

type activationSweeper interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// FlashOfferSweepJobParams configures the offer status sweep.
type FlashOfferSweepJobParams struct {
	Logger      *logger.Logger
	Offers      offerSweeper
	Activations activationSweeper
	Metrics     *metrics.CronJobMetrics
	Now         func() time.Time
}

// NewFlashOfferSweepJob builds the job that rewrites stored statuses of
// elapsed or sold-out offers and stale activations. Reservation and
// activation paths derive availability themselves, so the sweep is cosmetic.
func NewFlashOfferSweepJob(params FlashOfferSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offer repository required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &flashOfferSweepJob{
		logg:        params.Logger,
		offers:      params.Offers,
		activations: params.Activations,
		metrics:     params.Metrics,
		now:         now,
	}, nil
}

type flashOfferSweepJob struct {
	logg        *logger.Logger
	offers      offerSweeper
	activations activationSweeper
	metrics     *metrics.CronJobMetrics
	now         func() time.Time
}

func (j *flashOfferSweepJob) Name() string { return FlashOfferSweepJobName }

// Run attempts every step even when an earlier one fails.
func (j *flashOfferSweepJob) Run(ctx context.Context) error {
	now := j.now()
	var errs error

	elapsed, err := j.offers.ExpireElapsed(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("expire elapsed offers: %w", err))
	}
	exhausted, err := j.offers.ExpireExhausted(ctx)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("expire exhausted offers: %w", err))
	}
	var stale int64
	if j.activations != nil {
		stale, err = j.activations.ExpireStale(ctx, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire stale activations: %w", err))
		}
	}

	j.metrics.AddAffected(j.Name(), elapsed+exhausted+stale)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"elapsed_offers":    elapsed,
		"exhausted_offers":  exhausted,
		"stale_activations": stale,
	}), "flash offer sweep complete")
	return errs
}
