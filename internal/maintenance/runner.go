package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	pkgdb "github.com/privilegia/privilegia-backend/pkg/db"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/metrics"
)

const defaultLockTTL = 15 * time.Minute

// TaskFunc performs a one-shot task and reports how many rows it touched.
type TaskFunc func(ctx context.Context) (int64, error)

type namedLock interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (string, error)
	Release(ctx context.Context, name, owner string) error
}

// Result describes a RunOnce call.
type Result struct {
	Name         string
	Skipped      bool
	AffectedRows int64
	CompletedAt  time.Time
}

// RunnerParams configures a Runner.
type RunnerParams struct {
	DB      *gorm.DB
	Lock    namedLock
	Logger  *logger.Logger
	Metrics *metrics.CronJobMetrics
	LockTTL time.Duration
	Clock   func() time.Time
}

// Runner executes named one-shot tasks at most once across every process
// sharing the database.
type Runner struct {
	db      *gorm.DB
	lock    namedLock
	logg    *logger.Logger
	metrics *metrics.CronJobMetrics
	ttl     time.Duration
	now     func() time.Time
}

func NewRunner(params RunnerParams) (*Runner, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	lock := params.Lock
	if lock == nil {
		lock = pkgdb.NewNamedLock(params.DB)
	}
	ttl := params.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Runner{
		db:      params.DB,
		lock:    lock,
		logg:    params.Logger,
		metrics: params.Metrics,
		ttl:     ttl,
		now:     clock,
	}, nil
}

// RunOnce runs fn under the named lock unless a completed run of name is
// already recorded. A failed run leaves no record and may be retried.
func (r *Runner) RunOnce(ctx context.Context, name string, fn TaskFunc) (Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "task name required")
	}
	if fn == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "task function required")
	}
	ctx = r.logg.WithField(ctx, "task", name)

	owner, err := r.lock.Acquire(ctx, lockName(name), r.ttl)
	if errors.Is(err, pkgdb.ErrLockHeld) {
		return Result{}, pkgerrors.New(pkgerrors.CodeConflict, "task already running").
			WithDetails(map[string]any{"task": name})
	}
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "acquire maintenance lock")
	}
	defer func() {
		if relErr := r.lock.Release(context.WithoutCancel(ctx), lockName(name), owner); relErr != nil {
			r.logg.Error(ctx, "release maintenance lock", relErr)
		}
	}()

	previous, err := r.findRun(ctx, name)
	if err != nil {
		return Result{}, err
	}
	if previous != nil {
		r.logg.Info(ctx, "maintenance task already completed; skipping")
		return Result{
			Name:         name,
			Skipped:      true,
			AffectedRows: previous.AffectedRows,
			CompletedAt:  previous.CompletedAt,
		}, nil
	}

	start := time.Now()
	affected, err := fn(ctx)
	r.metrics.ObserveDuration(name, time.Since(start))
	if err != nil {
		r.metrics.IncFailure(name)
		return Result{}, fmt.Errorf("maintenance task %s: %w", name, err)
	}
	r.metrics.IncSuccess(name)
	r.metrics.AddAffected(name, affected)

	run := models.MaintenanceRun{Name: name, AffectedRows: affected, CompletedAt: r.now()}
	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record maintenance run")
	}
	r.logg.Info(r.logg.WithField(ctx, "affected_rows", affected), "maintenance task completed")
	return Result{Name: name, AffectedRows: affected, CompletedAt: run.CompletedAt}, nil
}

func (r *Runner) findRun(ctx context.Context, name string) (*models.MaintenanceRun, error) {
	var run models.MaintenanceRun
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load maintenance run")
	}
	return &run, nil
}

func lockName(task string) string {
	return "maintenance:" + task
}
