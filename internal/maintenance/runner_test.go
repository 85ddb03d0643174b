package maintenance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/internal/privileges"
	pkgdb "github.com/privilegia/privilegia-backend/pkg/db"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
	"github.com/privilegia/privilegia-backend/pkg/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(append(models.All(), &pkgdb.LockRow{})...))
	return db
}

func newTestRunner(t *testing.T, db *gorm.DB) *Runner {
	t.Helper()
	runner, err := NewRunner(RunnerParams{
		DB:     db,
		Logger: logger.Nop(),
		Clock:  func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return runner
}

func TestRunOnceRecordsAndSkipsCompletedTask(t *testing.T) {
	db := openTestDB(t)
	runner := newTestRunner(t, db)
	ctx := context.Background()

	calls := 0
	task := func(context.Context) (int64, error) {
		calls++
		return 4, nil
	}

	first, err := runner.RunOnce(ctx, "reindex", task)
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.EqualValues(t, 4, first.AffectedRows)

	second, err := runner.RunOnce(ctx, "reindex", task)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.EqualValues(t, 4, second.AffectedRows)
	assert.Equal(t, 1, calls)

	var locks int64
	require.NoError(t, db.Model(&pkgdb.LockRow{}).Count(&locks).Error)
	assert.Zero(t, locks)
}

func TestRunOnceFailureLeavesNoRecord(t *testing.T) {
	db := openTestDB(t)
	runner := newTestRunner(t, db)
	ctx := context.Background()

	_, err := runner.RunOnce(ctx, "flaky", func(context.Context) (int64, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)

	var runs int64
	require.NoError(t, db.Model(&models.MaintenanceRun{}).Count(&runs).Error)
	assert.Zero(t, runs)

	result, err := runner.RunOnce(ctx, "flaky", func(context.Context) (int64, error) { return 1, nil })
	require.NoError(t, err)
	assert.False(t, result.Skipped)
}

func TestRunOnceRejectsWhileLockHeld(t *testing.T) {
	db := openTestDB(t)
	runner := newTestRunner(t, db)
	ctx := context.Background()

	_, err := pkgdb.NewNamedLock(db).Acquire(ctx, lockName("busy"), time.Hour)
	require.NoError(t, err)

	called := false
	_, err = runner.RunOnce(ctx, "busy", func(context.Context) (int64, error) {
		called = true
		return 0, nil
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
	assert.False(t, called)
}

func TestBackfillActivationExpiry(t *testing.T) {
	db := openTestDB(t)
	runner := newTestRunner(t, db)
	ctx := context.Background()

	seed := func(code string, expiresAt time.Time, status enums.ActivationStatus) {
		require.NoError(t, db.Create(&models.PrivilegeActivation{
			MemberID:       uuid.New(),
			PartnerID:      uuid.New(),
			OfferID:        uuid.New(),
			ActivatedAt:    expiresAt.Add(-2 * time.Minute),
			ExpiresAt:      expiresAt,
			ValidationCode: code,
			Status:         status,
		}).Error)
	}
	seed("STALE001", testNow.Add(-time.Hour), enums.ActivationStatusActive)
	seed("STALE002", testNow.Add(-time.Minute), enums.ActivationStatusActive)
	seed("LIVE0001", testNow.Add(time.Minute), enums.ActivationStatusActive)
	seed("USED0001", testNow.Add(-time.Hour), enums.ActivationStatusValidated)

	tasks := DefaultTasks(privileges.NewRepository(db), func() time.Time { return testNow })
	assert.Equal(t, []string{BackfillActivationExpiry}, tasks.Names())

	result, err := tasks.Run(ctx, runner, BackfillActivationExpiry)
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.AffectedRows)

	var expired int64
	require.NoError(t, db.Model(&models.PrivilegeActivation{}).
		Where("status = ?", enums.ActivationStatusExpired).Count(&expired).Error)
	assert.EqualValues(t, 2, expired)

	_, err = tasks.Run(ctx, runner, "unknown-task")
	require.Error(t, err)
}
