package services

import (
	"context"
	"fmt"
	"time"

	"study-quest/logger"
	"study-quest/models"
	"study-quest/store"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/text/cases"
)

// Task-time windows for the early/late badges, user-local hours.
const (
	earlyBeforeHour = 8
	lateFromHour    = 22
)

type BadgeService struct {
	Store           store.Store
	Clock           clockwork.Clock
	DefaultLocation *time.Location
}

func NewBadgeService(st store.Store, clock clockwork.Clock, loc *time.Location) *BadgeService {
	if loc == nil {
		loc = time.UTC
	}
	return &BadgeService{Store: st, Clock: clock, DefaultLocation: loc}
}

// BadgeProgress is one catalog entry as seen by a user.
type BadgeProgress struct {
	Badge    models.BadgeDefinition `json:"badge"`
	Unlocked bool                   `json:"unlocked"`
	EarnedAt *time.Time             `json:"earned_at,omitempty"`
	Current  int64                  `json:"current"`
	Percent  int                    `json:"percent"` // 0..100
}

// EvaluateBadges grants every catalog badge the user newly qualifies for and
// returns those definitions. A badge is reported only if this call inserted it.
func (s *BadgeService) EvaluateBadges(ctx context.Context, userID string) ([]models.BadgeDefinition, error) {
	prof, err := s.Store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	defs, err := s.Store.ListBadgeDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	owned, err := s.Store.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(owned))
	for _, ub := range owned {
		have[ub.BadgeID] = true
	}

	stats := newBadgeStats(s.Store, prof, userLocation(prof, s.DefaultLocation))
	var granted []models.BadgeDefinition
	for _, def := range defs {
		if have[def.ID] {
			continue
		}
		observed, err := stats.value(ctx, def)
		if err != nil {
			return granted, err
		}
		if observed < def.ConditionValue {
			continue
		}

		inserted, err := s.Store.InsertUserBadge(ctx, &models.UserBadge{
			ID:       uuid.NewString(),
			UserID:   userID,
			BadgeID:  def.ID,
			EarnedAt: s.Clock.Now(),
			Progress: def.ConditionValue,
			Metadata: map[string]any{"observed": observed},
		})
		if err != nil {
			return granted, err
		}
		if !inserted {
			// a concurrent evaluation got there first
			continue
		}
		granted = append(granted, def)
		logger.L().Infof("🎖️ Badge awarded: %s → %s", def.Name, userID)
	}
	return granted, nil
}

// BadgeProgress lists the whole catalog with the user's standing on each badge.
func (s *BadgeService) BadgeProgress(ctx context.Context, userID string) ([]BadgeProgress, error) {
	prof, err := s.Store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	defs, err := s.Store.ListBadgeDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	owned, err := s.Store.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned := make(map[string]time.Time, len(owned))
	for _, ub := range owned {
		earned[ub.BadgeID] = ub.EarnedAt
	}

	stats := newBadgeStats(s.Store, prof, userLocation(prof, s.DefaultLocation))
	out := make([]BadgeProgress, 0, len(defs))
	for _, def := range defs {
		current, err := stats.value(ctx, def)
		if err != nil {
			return nil, err
		}
		bp := BadgeProgress{Badge: def, Current: current, Percent: percentOf(current, def.ConditionValue)}
		if at, ok := earned[def.ID]; ok {
			bp.Unlocked = true
			bp.EarnedAt = &at
			bp.Percent = 100
		}
		out = append(out, bp)
	}
	return out, nil
}

func percentOf(current, target int64) int {
	if target <= 0 || current >= target {
		return 100
	}
	if current <= 0 {
		return 0
	}
	return int(current * 100 / target)
}

// badgeStats loads the task history at most once per evaluation.
type badgeStats struct {
	st   store.Store
	prof *models.UserProfile
	loc  *time.Location
	fold cases.Caser

	taskCount *int64
	tasks     []models.XPLogEntry
	loaded    bool
}

func newBadgeStats(st store.Store, prof *models.UserProfile, loc *time.Location) *badgeStats {
	return &badgeStats{st: st, prof: prof, loc: loc, fold: cases.Fold()}
}

func (b *badgeStats) value(ctx context.Context, def models.BadgeDefinition) (int64, error) {
	switch def.ConditionType {
	case models.ConditionXP:
		return b.prof.XP, nil
	case models.ConditionStreak:
		return int64(b.prof.Streak), nil
	case models.ConditionTasks:
		return b.countTasks(ctx)
	case models.ConditionSubjectTasks:
		if err := b.load(ctx); err != nil {
			return 0, err
		}
		return b.subjectCounts()[b.fold.String(def.Subject)], nil
	case models.ConditionAllSubjects:
		if err := b.load(ctx); err != nil {
			return 0, err
		}
		return b.weakestSubject(), nil
	case models.ConditionEarlyTasks:
		return b.countWhere(ctx, func(t time.Time) bool { return t.Hour() < earlyBeforeHour })
	case models.ConditionLateTasks:
		return b.countWhere(ctx, func(t time.Time) bool { return t.Hour() >= lateFromHour })
	case models.ConditionDailyTasks:
		if err := b.load(ctx); err != nil {
			return 0, err
		}
		return b.busiestDay(), nil
	case models.ConditionPerfectWeek:
		if err := b.load(ctx); err != nil {
			return 0, err
		}
		return b.perfectWeeks(), nil
	default:
		return 0, fmt.Errorf("badge %s: unknown condition type %q", def.ID, def.ConditionType)
	}
}

func (b *badgeStats) countTasks(ctx context.Context) (int64, error) {
	if b.taskCount != nil {
		return *b.taskCount, nil
	}
	n, err := b.st.CountTaskCompletions(ctx, b.prof.ID)
	if err != nil {
		return 0, err
	}
	b.taskCount = &n
	return n, nil
}

func (b *badgeStats) load(ctx context.Context) error {
	if b.loaded {
		return nil
	}
	tasks, err := b.st.ListTaskCompletions(ctx, b.prof.ID)
	if err != nil {
		return err
	}
	b.tasks = tasks
	b.loaded = true
	return nil
}

func (b *badgeStats) countWhere(ctx context.Context, match func(local time.Time) bool) (int64, error) {
	if err := b.load(ctx); err != nil {
		return 0, err
	}
	var n int64
	for _, t := range b.tasks {
		if match(t.CreatedAt.In(b.loc)) {
			n++
		}
	}
	return n, nil
}

func (b *badgeStats) subjectCounts() map[string]int64 {
	counts := make(map[string]int64)
	for _, t := range b.tasks {
		if t.Subject == "" {
			continue
		}
		counts[b.fold.String(t.Subject)]++
	}
	return counts
}

// weakestSubject is the task count of the profile subject with the fewest
// tasks. No subjects on the profile means nothing to be all-round in.
func (b *badgeStats) weakestSubject() int64 {
	if len(b.prof.Subjects) == 0 {
		return 0
	}
	counts := b.subjectCounts()
	lowest := int64(-1)
	for _, subj := range b.prof.Subjects {
		n := counts[b.fold.String(subj)]
		if lowest < 0 || n < lowest {
			lowest = n
		}
	}
	return lowest
}

func (b *badgeStats) busiestDay() int64 {
	perDay := make(map[string]int64)
	var best int64
	for _, t := range b.tasks {
		day := DayKey(t.CreatedAt.In(b.loc))
		perDay[day]++
		best = max(best, perDay[day])
	}
	return best
}

// perfectWeeks counts ISO weeks (Mon-Sun) with a task on all seven days.
func (b *badgeStats) perfectWeeks() int64 {
	type isoWeek struct{ year, week int }
	days := make(map[isoWeek]uint8)
	for _, t := range b.tasks {
		local := t.CreatedAt.In(b.loc)
		y, w := local.ISOWeek()
		days[isoWeek{y, w}] |= 1 << uint(local.Weekday())
	}
	var n int64
	for _, mask := range days {
		if mask == 0x7f {
			n++
		}
	}
	return n
}
