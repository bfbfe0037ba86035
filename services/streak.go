package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"study-quest/apperr"
	"study-quest/logger"
	"study-quest/models"
	"study-quest/store"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type StreakResult struct {
	Streak        int    `json:"streak"`
	LongestStreak int    `json:"longest_streak"`
	Date          string `json:"date"`    // user-local day that was checked
	Changed       bool   `json:"changed"` // false when today was already logged
}

// StreakService tracks consecutive user-local days of activity.
type StreakService struct {
	Store           store.Store
	Clock           clockwork.Clock
	DefaultLocation *time.Location
}

func NewStreakService(st store.Store, clock clockwork.Clock, loc *time.Location) *StreakService {
	if loc == nil {
		loc = time.UTC
	}
	return &StreakService{Store: st, Clock: clock, DefaultLocation: loc}
}

// DayKey formats t as a streak-log date in t's own location.
func DayKey(t time.Time) string {
	return t.Format(models.DayLayout)
}

func userLocation(prof *models.UserProfile, fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	if prof == nil || prof.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(prof.Timezone)
	if err != nil {
		logger.L().Warnf("⚠️ [STREAK] profile %s has invalid timezone %q, using %s", prof.ID, prof.Timezone, fallback)
		return fallback
	}
	return loc
}

// TouchStreak logs today for the user. A second call on the same local day
// is a no-op. Yesterday logged continues the streak, anything else restarts it at 1.
func (s *StreakService) TouchStreak(ctx context.Context, userID string) (*StreakResult, error) {
	var result *StreakResult
	err := s.Store.WithinTx(ctx, func(tx store.Store) error {
		prof, err := tx.GetProfile(ctx, userID)
		if err != nil {
			return err
		}

		now := s.Clock.Now().In(userLocation(prof, s.DefaultLocation))
		today := DayKey(now)

		existing, err := tx.FindStreakLog(ctx, userID, today)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &StreakResult{Streak: prof.Streak, LongestStreak: prof.LongestStreak, Date: today}
			return nil
		}

		prev, err := tx.FindStreakLog(ctx, userID, DayKey(now.AddDate(0, 0, -1)))
		if err != nil {
			return err
		}
		streak := 1
		if prev != nil {
			streak = prof.Streak + 1
		}
		longest := max(prof.LongestStreak, streak)

		updated, err := tx.UpdateProfile(ctx, userID, map[string]any{
			"streak":           streak,
			"longest_streak":   longest,
			"last_active_date": today,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendStreakLog(ctx, &models.StreakLogEntry{
			ID:         uuid.NewString(),
			UserID:     userID,
			Date:       today,
			Maintained: true,
			CreatedAt:  s.Clock.Now(),
		}); err != nil {
			return err
		}

		result = &StreakResult{Streak: updated.Streak, LongestStreak: updated.LongestStreak, Date: today, Changed: true}
		return nil
	})

	if apperr.IsCode(err, apperr.CodeConflict) {
		// A concurrent check-in logged today first and its transaction won.
		prof, gerr := s.Store.GetProfile(ctx, userID)
		if gerr != nil {
			return nil, fmt.Errorf("touch streak for %s: %w", userID, gerr)
		}
		return &StreakResult{
			Streak:        prof.Streak,
			LongestStreak: prof.LongestStreak,
			Date:          DayKey(s.Clock.Now().In(userLocation(prof, s.DefaultLocation))),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("touch streak for %s: %w", userID, err)
	}

	if result.Changed {
		logger.L().Infof("🔥 [STREAK] %s → streak=%d longest=%d (%s)", userID, result.Streak, result.LongestStreak, result.Date)
	}
	return result, nil
}

// DecayStreaks zeroes the displayed streak of users whose last logged day is
// older than their local yesterday. longest_streak is never touched.
func (s *StreakService) DecayStreaks(ctx context.Context) (int, error) {
	profs, err := s.Store.ListActiveStreaks(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	reset := 0
	for i := range profs {
		p := &profs[i]
		yesterday := DayKey(s.Clock.Now().In(userLocation(p, s.DefaultLocation)).AddDate(0, 0, -1))
		if p.LastActiveDate >= yesterday {
			continue
		}
		ok, err := s.Store.ResetStreak(ctx, p.ID, p.LastActiveDate)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			reset++
		}
	}
	if reset > 0 {
		logger.L().Infof("🧊 [STREAK] reset %d lapsed streak(s)", reset)
	}
	return reset, errors.Join(errs...)
}
