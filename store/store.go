// Package store is the persistence boundary of the gamification engine.
package store

import (
	"context"

	"study-quest/models"
)

// LeaderboardMetric selects the profile column a leaderboard is ranked by.
type LeaderboardMetric string

const (
	ByXP     LeaderboardMetric = "xp"
	ByStreak LeaderboardMetric = "streak"
)

func (m LeaderboardMetric) Valid() bool { return m == ByXP || m == ByStreak }

// Store is the query interface the services run against. Every method returns
// apperr-typed failures: NotFound for a missing profile, Store for I/O or
// timeout, Conflict for a uniqueness violation.
type Store interface {
	// WithinTx runs fn against a Store bound to a single transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	EnsureProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, fields map[string]any) (*models.UserProfile, error)
	// IncrementXP applies xp = xp + delta as one statement and returns the
	// updated row. A delta that would leave xp below zero is a Validation error.
	IncrementXP(ctx context.Context, userID string, delta int64) (*models.UserProfile, error)
	// ResetStreak zeroes streak only if last_active_date still equals lastActive.
	ResetStreak(ctx context.Context, userID, lastActive string) (bool, error)
	ListActiveStreaks(ctx context.Context) ([]models.UserProfile, error)
	UpsertProfileIdentity(ctx context.Context, profiles []models.UserProfile) error
	TopProfiles(ctx context.Context, by LeaderboardMetric, limit int) ([]models.UserProfile, error)
	RankOf(ctx context.Context, userID string, by LeaderboardMetric) (int64, error)

	AppendXPLog(ctx context.Context, entry *models.XPLogEntry) error
	CountTaskCompletions(ctx context.Context, userID string) (int64, error)
	ListTaskCompletions(ctx context.Context, userID string) ([]models.XPLogEntry, error)

	FindStreakLog(ctx context.Context, userID, date string) (*models.StreakLogEntry, error)
	AppendStreakLog(ctx context.Context, entry *models.StreakLogEntry) error

	ListBadgeDefinitions(ctx context.Context) ([]models.BadgeDefinition, error)
	GetBadgeDefinition(ctx context.Context, id string) (*models.BadgeDefinition, error)
	SeedBadgeDefinitions(ctx context.Context, defs []models.BadgeDefinition) error
	SetBadgeIcon(ctx context.Context, id, url string) error
	ListUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error)
	// InsertUserBadge reports false when the (user, badge) pair already exists.
	InsertUserBadge(ctx context.Context, entry *models.UserBadge) (bool, error)
}
