package models

import "time"

// DayLayout formats calendar days in streak logs.
const DayLayout = "2006-01-02"

// StreakLogEntry marks one user-local day of activity. At most one per (user, date).
type StreakLogEntry struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string    `gorm:"uniqueIndex:idx_streak_logs_user_date,priority:1;not null" json:"user_id"`
	Date       string    `gorm:"type:varchar(10);uniqueIndex:idx_streak_logs_user_date,priority:2;not null" json:"date"`
	Maintained bool      `gorm:"default:true" json:"maintained"`
	CreatedAt  time.Time `json:"created_at"`
}

func (StreakLogEntry) TableName() string { return "streak_logs" }
