package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type BadgeCategory string

const (
	BadgeCategoryStreak   BadgeCategory = "streak"
	BadgeCategoryXP       BadgeCategory = "xp"
	BadgeCategoryTasks    BadgeCategory = "tasks"
	BadgeCategorySubjects BadgeCategory = "subjects"
	BadgeCategorySpecial  BadgeCategory = "special"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// ConditionKind is the stat a badge threshold is measured against.
type ConditionKind string

const (
	ConditionXP           ConditionKind = "xp"
	ConditionStreak       ConditionKind = "streak"
	ConditionTasks        ConditionKind = "tasks"
	ConditionSubjectTasks ConditionKind = "subject_tasks" // tasks tagged with BadgeDefinition.Subject
	ConditionAllSubjects  ConditionKind = "all_subjects"  // fewest tasks across the profile's subjects
	ConditionEarlyTasks   ConditionKind = "early_tasks"   // completed before 08:00 local
	ConditionLateTasks    ConditionKind = "late_tasks"    // completed at or after 22:00 local
	ConditionDailyTasks   ConditionKind = "daily_tasks"   // most tasks on one local day
	ConditionPerfectWeek  ConditionKind = "perfect_week"  // Mon-Sun weeks with a task every day
)

var conditionKinds = map[ConditionKind]bool{
	ConditionXP:           true,
	ConditionStreak:       true,
	ConditionTasks:        true,
	ConditionSubjectTasks: true,
	ConditionAllSubjects:  true,
	ConditionEarlyTasks:   true,
	ConditionLateTasks:    true,
	ConditionDailyTasks:   true,
	ConditionPerfectWeek:  true,
}

func (k ConditionKind) Valid() bool { return conditionKinds[k] }

// BadgeDefinition: static catalog entry, seeded at startup.
type BadgeDefinition struct {
	ID             string        `gorm:"primaryKey;type:varchar(64)" json:"id"` // e.g. "streak_7"
	Name           string        `gorm:"not null" json:"name"`
	Description    string        `json:"description"`
	Category       BadgeCategory `gorm:"type:varchar(16);not null" json:"category"`
	ConditionType  ConditionKind `gorm:"type:varchar(32);not null" json:"condition_type"`
	ConditionValue int64         `gorm:"not null" json:"condition_value"`
	Subject        string        `gorm:"type:varchar(64)" json:"subject,omitempty"`
	XPReward       int64         `gorm:"default:0" json:"xp_reward"`
	Rarity         Rarity        `gorm:"type:varchar(16);default:'common'" json:"rarity"`
	IconURL        string        `gorm:"type:text" json:"icon_url,omitempty"` // R2 URL
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

func (BadgeDefinition) TableName() string { return "badge_definitions" }

func (b BadgeDefinition) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("badge without id")
	}
	if !b.ConditionType.Valid() {
		return fmt.Errorf("badge %s: unknown condition type %q", b.ID, b.ConditionType)
	}
	if b.ConditionValue < 1 {
		return fmt.Errorf("badge %s: condition value must be positive", b.ID)
	}
	if b.ConditionType == ConditionSubjectTasks && b.Subject == "" {
		return fmt.Errorf("badge %s: subject_tasks needs a subject", b.ID)
	}
	if b.XPReward < 0 {
		return fmt.Errorf("badge %s: negative xp reward", b.ID)
	}
	return nil
}

// ValidateCatalog rejects unknown condition kinds and duplicate ids.
func ValidateCatalog(defs []BadgeDefinition) error {
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate badge id %s", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

// UserBadge: awarded instance. Its existence is what "unlocked" means.
type UserBadge struct {
	ID       string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID   string            `gorm:"uniqueIndex:idx_user_badges_user_badge,priority:1;not null" json:"user_id"`
	BadgeID  string            `gorm:"uniqueIndex:idx_user_badges_user_badge,priority:2;not null" json:"badge_id"`
	EarnedAt time.Time         `gorm:"not null" json:"earned_at"`
	Progress int64             `json:"progress"`
	Metadata datatypes.JSONMap `json:"metadata,omitempty"` // e.g. {"observed": 7}
}

func (UserBadge) TableName() string { return "user_badges" }

// DefaultBadgeCatalog is the catalog seeded on startup.
var DefaultBadgeCatalog = []BadgeDefinition{
	// Streak
	{ID: "streak_3", Name: "Getting Started", Description: "Maintain a 3-day study streak", Category: BadgeCategoryStreak, ConditionType: ConditionStreak, ConditionValue: 3, XPReward: 50, Rarity: RarityCommon},
	{ID: "streak_7", Name: "Week Warrior", Description: "Maintain a 7-day study streak", Category: BadgeCategoryStreak, ConditionType: ConditionStreak, ConditionValue: 7, XPReward: 150, Rarity: RarityCommon},
	{ID: "streak_14", Name: "Streak Master", Description: "Maintain a 14-day study streak", Category: BadgeCategoryStreak, ConditionType: ConditionStreak, ConditionValue: 14, XPReward: 300, Rarity: RarityRare},
	{ID: "streak_30", Name: "Dedicated Scholar", Description: "Maintain a 30-day study streak", Category: BadgeCategoryStreak, ConditionType: ConditionStreak, ConditionValue: 30, XPReward: 750, Rarity: RarityEpic},
	{ID: "streak_100", Name: "Century Champion", Description: "Maintain a 100-day study streak", Category: BadgeCategoryStreak, ConditionType: ConditionStreak, ConditionValue: 100, XPReward: 2500, Rarity: RarityLegendary},

	// XP
	{ID: "xp_500", Name: "Rising Star", Description: "Earn 500 total XP", Category: BadgeCategoryXP, ConditionType: ConditionXP, ConditionValue: 500, XPReward: 100, Rarity: RarityCommon},
	{ID: "xp_1000", Name: "Knowledge Seeker", Description: "Earn 1,000 total XP", Category: BadgeCategoryXP, ConditionType: ConditionXP, ConditionValue: 1000, XPReward: 200, Rarity: RarityRare},
	{ID: "xp_5000", Name: "Academic Ace", Description: "Earn 5,000 total XP", Category: BadgeCategoryXP, ConditionType: ConditionXP, ConditionValue: 5000, XPReward: 500, Rarity: RarityEpic},
	{ID: "xp_10000", Name: "Master Scholar", Description: "Earn 10,000 total XP", Category: BadgeCategoryXP, ConditionType: ConditionXP, ConditionValue: 10000, XPReward: 1000, Rarity: RarityLegendary},

	// Tasks
	{ID: "tasks_10", Name: "Quick Learner", Description: "Complete 10 tasks", Category: BadgeCategoryTasks, ConditionType: ConditionTasks, ConditionValue: 10, XPReward: 100, Rarity: RarityCommon},
	{ID: "tasks_50", Name: "Productive Student", Description: "Complete 50 tasks", Category: BadgeCategoryTasks, ConditionType: ConditionTasks, ConditionValue: 50, XPReward: 250, Rarity: RarityRare},
	{ID: "tasks_100", Name: "Task Master", Description: "Complete 100 tasks", Category: BadgeCategoryTasks, ConditionType: ConditionTasks, ConditionValue: 100, XPReward: 500, Rarity: RarityEpic},
	{ID: "tasks_500", Name: "Completion Legend", Description: "Complete 500 tasks", Category: BadgeCategoryTasks, ConditionType: ConditionTasks, ConditionValue: 500, XPReward: 2000, Rarity: RarityLegendary},

	// Subjects
	{ID: "math_master", Name: "Math Wizard", Description: "Complete 25 Mathematics tasks", Category: BadgeCategorySubjects, ConditionType: ConditionSubjectTasks, ConditionValue: 25, Subject: "Mathematics", XPReward: 300, Rarity: RarityRare},
	{ID: "science_genius", Name: "Science Genius", Description: "Complete 25 Science tasks", Category: BadgeCategorySubjects, ConditionType: ConditionSubjectTasks, ConditionValue: 25, Subject: "Science", XPReward: 300, Rarity: RarityRare},
	{ID: "all_rounder", Name: "Renaissance Scholar", Description: "Complete tasks in all subjects", Category: BadgeCategorySubjects, ConditionType: ConditionAllSubjects, ConditionValue: 1, XPReward: 500, Rarity: RarityEpic},

	// Special
	{ID: "early_bird", Name: "Early Bird", Description: "Complete tasks before 8 AM", Category: BadgeCategorySpecial, ConditionType: ConditionEarlyTasks, ConditionValue: 10, XPReward: 200, Rarity: RarityRare},
	{ID: "night_owl", Name: "Night Owl", Description: "Complete tasks after 10 PM", Category: BadgeCategorySpecial, ConditionType: ConditionLateTasks, ConditionValue: 10, XPReward: 200, Rarity: RarityRare},
	{ID: "perfectionist", Name: "Perfectionist", Description: "Complete a task every day of a week", Category: BadgeCategorySpecial, ConditionType: ConditionPerfectWeek, ConditionValue: 1, XPReward: 400, Rarity: RarityEpic},
	{ID: "speed_demon", Name: "Speed Demon", Description: "Complete 10 tasks in one day", Category: BadgeCategorySpecial, ConditionType: ConditionDailyTasks, ConditionValue: 10, XPReward: 350, Rarity: RarityEpic},
}
