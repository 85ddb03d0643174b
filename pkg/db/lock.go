package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrLockHeld is returned when another owner holds an unexpired lock.
var ErrLockHeld = errors.New("named lock held by another owner")

// LockRow is a single named lock. A row whose expires_at has passed may be
// taken over by a new owner.
type LockRow struct {
	Name       string    `gorm:"column:name;primaryKey"`
	Owner      string    `gorm:"column:owner;not null"`
	AcquiredAt time.Time `gorm:"column:acquired_at;not null"`
	ExpiresAt  time.Time `gorm:"column:expires_at;not null"`
}

func (LockRow) TableName() string { return "maintenance_locks" }

// NamedLock provides mutual exclusion across processes that share the
// database. Acquire and Release are compare-and-set on a single row.
type NamedLock struct {
	db  *gorm.DB
	now func() time.Time
}

func NewNamedLock(conn *gorm.DB) *NamedLock {
	return &NamedLock{db: conn, now: time.Now}
}

// Acquire takes name for ttl and returns the owner token needed to release it.
func (l *NamedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if l == nil || l.db == nil {
		return "", fmt.Errorf("named lock not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("lock name required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("lock ttl must be positive")
	}

	now := l.now().UTC()
	owner := uuid.NewString()
	row := LockRow{Name: name, Owner: owner, AcquiredAt: now, ExpiresAt: now.Add(ttl)}

	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return "", fmt.Errorf("insert lock %s: %w", name, res.Error)
	}
	if res.RowsAffected == 1 {
		return owner, nil
	}

	res = l.db.WithContext(ctx).
		Model(&LockRow{}).
		Where("name = ? AND expires_at <= ?", name, now).
		Updates(map[string]any{
			"owner":       owner,
			"acquired_at": now,
			"expires_at":  now.Add(ttl),
		})
	if res.Error != nil {
		return "", fmt.Errorf("steal expired lock %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return "", ErrLockHeld
	}
	return owner, nil
}

// Release drops the lock when owner still holds it.
func (l *NamedLock) Release(ctx context.Context, name, owner string) error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.WithContext(ctx).
		Where("name = ? AND owner = ?", name, owner).
		Delete(&LockRow{}).Error
}
