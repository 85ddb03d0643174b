package models

import "time"

// MaintenanceRun records a completed one-shot maintenance task.
type MaintenanceRun struct {
	Name         string    `gorm:"column:name;primaryKey"`
	AffectedRows int64     `gorm:"column:affected_rows;not null;default:0"`
	CompletedAt  time.Time `gorm:"column:completed_at;not null"`
}
