package models

import "time"

// XPSource says why an XP change happened.
type XPSource string

const (
	XPSourceTask        XPSource = "task"
	XPSourceBadgeReward XPSource = "badge_reward"
	XPSourceManual      XPSource = "manual" // admin grants and corrections
)

// XPLogEntry is the append-only audit row written with every XP change.
type XPLogEntry struct {
	ID       string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID   string   `gorm:"index:idx_xp_logs_user_source,priority:1;not null" json:"user_id"`
	XPChange int64    `gorm:"not null" json:"xp_change"`
	Reason   string   `gorm:"type:text" json:"reason"`
	Source   XPSource `gorm:"type:varchar(16);index:idx_xp_logs_user_source,priority:2;not null" json:"source"`
	Subject  string   `gorm:"type:varchar(64)" json:"subject,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (XPLogEntry) TableName() string { return "xp_logs" }
