package services

import (
	"context"
	"fmt"

	"study-quest/apperr"
	"study-quest/logger"
	"study-quest/models"
)

const defaultTaskReason = "task_completed"

// MaxTaskXP is the most a single completed task can be worth.
const MaxTaskXP int64 = 10_000

// XPResult is what a caller sees after an XP-changing action, badge rewards included.
type XPResult struct {
	NewXP     int64                    `json:"new_xp"`
	NewLevel  int                      `json:"new_level"`
	LeveledUp bool                     `json:"leveled_up"`
	RewardXP  int64                    `json:"reward_xp"` // from badges unlocked by this action
	NewBadges []models.BadgeDefinition `json:"new_badges"`
}

type CheckInResult struct {
	Streak        int                      `json:"streak"`
	LongestStreak int                      `json:"longest_streak"`
	Changed       bool                     `json:"changed"`
	RewardXP      int64                    `json:"reward_xp"`
	NewBadges     []models.BadgeDefinition `json:"new_badges"`
}

type ProgressView struct {
	UserID           string  `json:"user_id"`
	XP               int64   `json:"xp"`
	Level            int     `json:"level"`
	ProgressFraction float64 `json:"progress_fraction"`
	NextLevelXP      int64   `json:"next_level_xp"`
	Streak           int     `json:"streak"`
	LongestStreak    int     `json:"longest_streak"`
	LastActiveDate   string  `json:"last_active_date,omitempty"`
}

// GamificationService turns user actions into ledger, streak and badge
// updates. The XP or streak change is the durable result; badge grants that
// follow it are best effort.
type GamificationService struct {
	Ledger  *ProgressionService
	Streaks *StreakService
	Badges  *BadgeService
}

func NewGamificationService(ledger *ProgressionService, streaks *StreakService, badges *BadgeService) *GamificationService {
	return &GamificationService{Ledger: ledger, Streaks: streaks, Badges: badges}
}

// CompleteTask credits a finished task and evaluates badges.
func (g *GamificationService) CompleteTask(ctx context.Context, userID string, xp int64, reason, subject string) (*XPResult, error) {
	if xp <= 0 {
		return nil, apperr.Validation("task xp must be positive, got %d", xp)
	}
	if xp > MaxTaskXP {
		return nil, apperr.Validation("task xp %d exceeds the %d cap", xp, MaxTaskXP)
	}
	if reason == "" {
		reason = defaultTaskReason
	}

	grant, err := g.Ledger.Apply(ctx, XPGrant{
		UserID:  userID,
		Amount:  xp,
		Reason:  reason,
		Source:  models.XPSourceTask,
		Subject: subject,
	})
	if err != nil {
		return nil, err
	}
	return g.settle(ctx, grant), nil
}

// GrantXP is the admin path: a manual ledger entry followed by badge evaluation.
func (g *GamificationService) GrantXP(ctx context.Context, userID string, amount int64, reason string) (*XPResult, error) {
	if reason == "" {
		return nil, apperr.Validation("a reason is required for manual xp changes")
	}
	grant, err := g.Ledger.GrantXP(ctx, userID, amount, reason)
	if err != nil {
		return nil, err
	}
	return g.settle(ctx, grant), nil
}

// DailyCheckIn touches the streak and evaluates badges.
func (g *GamificationService) DailyCheckIn(ctx context.Context, userID string) (*CheckInResult, error) {
	sr, err := g.Streaks.TouchStreak(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := &CheckInResult{Streak: sr.Streak, LongestStreak: sr.LongestStreak, Changed: sr.Changed}

	badges, rewards, err := g.awardBadges(ctx, userID)
	if err != nil {
		logger.L().Warnw("⚠️ [BADGES] evaluation after check-in failed", "user_id", userID, "error", err)
	}
	res.NewBadges = badges
	for _, r := range rewards {
		res.RewardXP += r.Entry.XPChange
	}
	return res, nil
}

// EvaluateBadges runs the badge evaluator on demand. Unlike the follow-up
// after an action, failures are returned to the caller.
func (g *GamificationService) EvaluateBadges(ctx context.Context, userID string) ([]models.BadgeDefinition, error) {
	badges, _, err := g.awardBadges(ctx, userID)
	if err != nil {
		return badges, fmt.Errorf("evaluate badges for %s: %w", userID, err)
	}
	return badges, nil
}

// Progress returns the user's level card, creating the profile on first use.
func (g *GamificationService) Progress(ctx context.Context, userID string) (*ProgressView, error) {
	prof, err := g.Ledger.EnsureProgressRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProgressView{
		UserID:           prof.ID,
		XP:               prof.XP,
		Level:            LevelOf(prof.XP),
		ProgressFraction: ProgressFraction(prof.XP),
		NextLevelXP:      NextLevelXP(prof.XP),
		Streak:           prof.Streak,
		LongestStreak:    prof.LongestStreak,
		LastActiveDate:   prof.LastActiveDate,
	}, nil
}

func (g *GamificationService) BadgeProgress(ctx context.Context, userID string) ([]BadgeProgress, error) {
	return g.Badges.BadgeProgress(ctx, userID)
}

// settle runs best-effort badge evaluation after a committed grant and folds
// any reward XP into the result.
func (g *GamificationService) settle(ctx context.Context, grant *GrantResult) *XPResult {
	res := &XPResult{
		NewXP:     grant.NewXP,
		NewLevel:  grant.NewLevel,
		LeveledUp: grant.LeveledUp,
	}

	badges, rewards, err := g.awardBadges(ctx, grant.UserID)
	if err != nil {
		logger.L().Warnw("⚠️ [BADGES] evaluation after xp grant failed", "user_id", grant.UserID, "error", err)
	}
	res.NewBadges = badges
	for _, r := range rewards {
		res.RewardXP += r.Entry.XPChange
	}
	if n := len(rewards); n > 0 {
		last := rewards[n-1]
		res.NewXP = last.NewXP
		res.NewLevel = last.NewLevel
		res.LeveledUp = last.NewLevel > grant.PreviousLevel
	}
	return res
}

// awardBadges evaluates, pays out rewards, and evaluates again until nothing
// new unlocks. Every round grants at least one badge, so it ends within the
// catalog size.
func (g *GamificationService) awardBadges(ctx context.Context, userID string) ([]models.BadgeDefinition, []*GrantResult, error) {
	var (
		granted []models.BadgeDefinition
		rewards []*GrantResult
	)
	for {
		newly, evalErr := g.Badges.EvaluateBadges(ctx, userID)
		granted = append(granted, newly...)
		for _, b := range newly {
			if b.XPReward <= 0 {
				continue
			}
			r, err := g.Ledger.Apply(ctx, XPGrant{
				UserID: userID,
				Amount: b.XPReward,
				Reason: "badge:" + b.ID,
				Source: models.XPSourceBadgeReward,
			})
			if err != nil {
				return granted, rewards, err
			}
			rewards = append(rewards, r)
		}
		if evalErr != nil {
			return granted, rewards, evalErr
		}
		if len(newly) == 0 {
			return granted, rewards, nil
		}
	}
}
