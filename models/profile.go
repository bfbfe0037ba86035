package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserProfile is the gamified state of one student. XP and streak columns are
// mutated only by the ledger and the streak tracker.
type UserProfile struct {
	ID       string `gorm:"primaryKey;type:varchar(64)" json:"id"` // auth provider's user id
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Timezone string `gorm:"type:varchar(64)" json:"timezone,omitempty"` // IANA name, empty = service default

	Subjects datatypes.JSONSlice[string] `json:"subjects"`

	XP            int64 `gorm:"default:0;not null;index" json:"xp"`
	Level         int   `gorm:"default:1;not null" json:"level"`
	Streak        int   `gorm:"default:0;not null;index" json:"streak"`
	LongestStreak int   `gorm:"default:0;not null" json:"longest_streak"`

	// Last user-local day with a streak log, YYYY-MM-DD.
	LastActiveDate string `gorm:"type:varchar(10)" json:"last_active_date,omitempty"`

	Timestamps
}

func (UserProfile) TableName() string { return "profiles" }

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
