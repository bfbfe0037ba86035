package services

import (
	"context"
	"testing"
	"time"

	"study-quest/models"
	"study-quest/store/storetest"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func countStreakLogs(t *testing.T, env *testEnv, userID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, env.store.DB.Model(&models.StreakLogEntry{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func TestTouchStreakFirstEver(t *testing.T) {
	env := newTestEnv(t)
	storetest.Profile(t, env.store, models.UserProfile{ID: "u1"})

	res, err := env.game.Streaks.TouchStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, 1, res.LongestStreak)
	assert.True(t, res.Changed)
	assert.Equal(t, "2026-10-15", res.Date)

	prof := env.profile(t, "u1")
	assert.Equal(t, 1, prof.Streak)
	assert.Equal(t, "2026-10-15", prof.LastActiveDate)
	assert.EqualValues(t, 1, countStreakLogs(t, env, "u1"))
}

func TestTouchStreakTwiceSameDay(t *testing.T) {
	env := newTestEnv(t)
	storetest.Profile(t, env.store, models.UserProfile{ID: "u1"})
	ctx := context.Background()

	first, err := env.game.Streaks.TouchStreak(ctx, "u1")
	require.NoError(t, err)

	env.clock.Advance(6 * time.Hour)
	second, err := env.game.Streaks.TouchStreak(ctx, "u1")
	require.NoError(t, err)

	assert.False(t, second.Changed)
	assert.Equal(t, first.Streak, second.Streak)
	assert.Equal(t, first.LongestStreak, second.LongestStreak)
	assert.EqualValues(t, 1, countStreakLogs(t, env, "u1"))
}

func TestTouchStreakContinuesFromYesterday(t *testing.T) {
	env := newTestEnv(t)
	storetest.Profile(t, env.store, models.UserProfile{ID: "u1", Streak: 4, LongestStreak: 4, LastActiveDate: "2026-10-14"})
	storetest.StreakDay(t, env.store, "u1", "2026-10-14")

	res, err := env.game.Streaks.TouchStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Streak)
	assert.Equal(t, 5, res.LongestStreak)
}

func TestTouchStreakResetsAfterMissedDay(t *testing.T) {
	env := newTestEnv(t)
	storetest.Profile(t, env.store, models.UserProfile{ID: "u1", Streak: 6, LongestStreak: 9, LastActiveDate: "2026-10-13"})
	storetest.StreakDay(t, env.store, "u1", "2026-10-13")

	res, err := env.game.Streaks.TouchStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, 9, res.LongestStreak)
}

func TestLongestStreakNeverDecreases(t *testing.T) {
	env := newTestEnv(t)
	storetest.Profile(t, env.store, models.UserProfile{ID: "u1"})
	ctx := context.Background()

	// active, active, active, gap, active, active, gap, gap, active
	pattern := []bool{true, true, true, false, true, true, false, false, true}
	longest := 0
	for day, active := range pattern {
		if active {
			res, err := env.game.Streaks.TouchStreak(ctx, "u1")
			require.NoError(t, err, "day %d", day)
			assert.GreaterOrEqual(t, res.LongestStreak, longest, "day %d", day)
			assert.GreaterOrEqual(t, res.LongestStreak, res.Streak, "day %d", day)
			longest = res.LongestStreak
		}
		env.clock.Advance(24 * time.Hour)
	}

	prof := env.profile(t, "u1")
	assert.Equal(t, 3, prof.LongestStreak)
	assert.Equal(t, 1, prof.Streak)
}

func TestTouchStreakUsesProfileTimezone(t *testing.T) {
	env := newTestEnv(t)
	// 16:00 UTC is already 01:00 the next day in Tokyo.
	env.clock.Advance(4 * time.Hour)
	storetest.Profile(t, env.store, models.UserProfile{ID: "tokyo", Timezone: "Asia/Tokyo"})
	storetest.Profile(t, env.store, models.UserProfile{ID: "broken", Timezone: "Mars/Olympus"})
	ctx := context.Background()

	res, err := env.game.Streaks.TouchStreak(ctx, "tokyo")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-16", res.Date)

	res, err = env.game.Streaks.TouchStreak(ctx, "broken")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", res.Date)
}

func TestConcurrentCheckInsLogOnce(t *testing.T) {
	env := newTestEnv(t)
	storetest.Profile(t, env.store, models.UserProfile{ID: "u1", Streak: 2, LongestStreak: 2, LastActiveDate: "2026-10-14"})
	storetest.StreakDay(t, env.store, "u1", "2026-10-14")
	ctx := context.Background()

	var g errgroup.Group
	for range 10 {
		g.Go(func() error {
			_, err := env.game.Streaks.TouchStreak(ctx, "u1")
			return err
		})
	}
	require.NoError(t, g.Wait())

	prof := env.profile(t, "u1")
	assert.Equal(t, 3, prof.Streak)
	assert.EqualValues(t, 2, countStreakLogs(t, env, "u1"))
}

func TestTouchStreakUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.game.Streaks.TouchStreak(context.Background(), "ghost")
	assert.Error(t, err)
	assert.EqualValues(t, 0, countStreakLogs(t, env, "ghost"))
}

func TestDecayStreaks(t *testing.T) {
	env := newTestEnv(t)
	storetest.Profile(t, env.store, models.UserProfile{ID: "lapsed", Streak: 5, LongestStreak: 8, LastActiveDate: "2026-10-13"})
	storetest.Profile(t, env.store, models.UserProfile{ID: "yesterday", Streak: 3, LongestStreak: 3, LastActiveDate: "2026-10-14"})
	storetest.Profile(t, env.store, models.UserProfile{ID: "today", Streak: 2, LongestStreak: 2, LastActiveDate: "2026-10-15"})
	// Still 2026-10-14 in Los Angeles, so 10-13 is their yesterday.
	storetest.Profile(t, env.store, models.UserProfile{ID: "west", Timezone: "America/Los_Angeles", Streak: 4, LongestStreak: 4, LastActiveDate: "2026-10-13"})
	streaks := NewStreakService(env.store, clockwork.NewFakeClockAt(time.Date(2026, 10, 15, 5, 0, 0, 0, time.UTC)), time.UTC)

	n, err := streaks.DecayStreaks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lapsed := env.profile(t, "lapsed")
	assert.Zero(t, lapsed.Streak)
	assert.Equal(t, 8, lapsed.LongestStreak)
	assert.Equal(t, 3, env.profile(t, "yesterday").Streak)
	assert.Equal(t, 2, env.profile(t, "today").Streak)
	assert.Equal(t, 4, env.profile(t, "west").Streak)

	n, err = streaks.DecayStreaks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
