package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"study-quest/apperr"
	"study-quest/models"
	"study-quest/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestGrantXPCrossesLevel(t *testing.T) {
	env := newTestEnv(t)
	storetest.Profile(t, env.store, models.UserProfile{ID: "u1", XP: 240})

	assert.Equal(t, 1, LevelOf(240))
	assert.InDelta(t, 0.96, ProgressFraction(240), 1e-9)

	res, err := env.game.Ledger.GrantXP(context.Background(), "u1", 20, "task")
	require.NoError(t, err)
	assert.EqualValues(t, 260, res.NewXP)
	assert.Equal(t, 2, res.NewLevel)
	assert.Equal(t, 1, res.PreviousLevel)
	assert.True(t, res.LeveledUp)

	prof := env.profile(t, "u1")
	assert.EqualValues(t, 260, prof.XP)
	assert.Equal(t, 2, prof.Level)

	logs := env.xpLogs(t, "u1")
	require.Len(t, logs, 1)
	assert.EqualValues(t, 20, logs[0].XPChange)
	assert.Equal(t, "task", logs[0].Reason)
	assert.Equal(t, models.XPSourceManual, logs[0].Source)
	assert.True(t, logs[0].CreatedAt.Equal(testNow))
}

func TestGrantZeroStillLogs(t *testing.T) {
	env := newTestEnv(t)
	storetest.Profile(t, env.store, models.UserProfile{ID: "u1", XP: 100})

	res, err := env.game.Ledger.GrantXP(context.Background(), "u1", 0, "noop")
	require.NoError(t, err)
	assert.EqualValues(t, 100, res.NewXP)
	assert.Equal(t, 1, res.NewLevel)
	assert.False(t, res.LeveledUp)

	logs := env.xpLogs(t, "u1")
	require.Len(t, logs, 1)
	assert.Zero(t, logs[0].XPChange)
}

func TestGrantXPUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.game.Ledger.GrantXP(context.Background(), "ghost", 10, "task")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound), "got %v", err)
	assert.Empty(t, env.xpLogs(t, "ghost"))
}

func TestCorrectionCannotGoNegative(t *testing.T) {
	env := newTestEnv(t)
	storetest.Profile(t, env.store, models.UserProfile{ID: "u1", XP: 300, Level: 2})
	ctx := context.Background()

	res, err := env.game.Ledger.GrantXP(ctx, "u1", -100, "duplicate task")
	require.NoError(t, err)
	assert.EqualValues(t, 200, res.NewXP)
	assert.Equal(t, 1, res.NewLevel)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, 1, env.profile(t, "u1").Level)

	_, err = env.game.Ledger.GrantXP(ctx, "u1", -201, "too much")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation), "got %v", err)
	assert.EqualValues(t, 200, env.profile(t, "u1").XP)
	assert.Len(t, env.xpLogs(t, "u1"), 1)
}

func TestGrantRejectsOverflow(t *testing.T) {
	env := newTestEnv(t)
	near := int64(math.MaxInt64 - 5)
	storetest.Profile(t, env.store, models.UserProfile{ID: "u1", XP: near})
	ctx := context.Background()

	_, err := env.game.Ledger.GrantXP(ctx, "u1", 10, "bonus")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation), "got %v", err)
	assert.Equal(t, near, env.profile(t, "u1").XP)
	assert.Empty(t, env.xpLogs(t, "u1"))

	res, err := env.game.Ledger.GrantXP(ctx, "u1", 5, "bonus")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), res.NewXP)
}

func TestGrantRollsBackWhenLogFails(t *testing.T) {
	env := newTestEnv(t)
	storetest.Profile(t, env.store, models.UserProfile{ID: "u1", XP: 240})

	ledger := NewProgressionService(failingTxLog{Store: env.store, err: apperr.Store(errors.New("disk full"), "append")}, env.clock)
	_, err := ledger.GrantXP(context.Background(), "u1", 20, "task")
	assert.True(t, apperr.IsCode(err, apperr.CodeStore), "got %v", err)

	prof := env.profile(t, "u1")
	assert.EqualValues(t, 240, prof.XP)
	assert.Equal(t, 1, prof.Level)
	assert.Empty(t, env.xpLogs(t, "u1"))
}

func TestConcurrentGrantsDoNotLoseUpdates(t *testing.T) {
	env := newTestEnv(t)
	storetest.Profile(t, env.store, models.UserProfile{ID: "u1", XP: 100})
	ctx := context.Background()

	var g errgroup.Group
	for range 2 {
		g.Go(func() error {
			_, err := env.game.Ledger.GrantXP(ctx, "u1", 50, "task")
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 200, env.profile(t, "u1").XP)

	for range 20 {
		g.Go(func() error {
			_, err := env.game.Ledger.GrantXP(ctx, "u1", 5, "burst")
			return err
		})
	}
	require.NoError(t, g.Wait())

	prof := env.profile(t, "u1")
	assert.EqualValues(t, 300, prof.XP)
	assert.Equal(t, LevelOf(300), prof.Level)
	assert.Len(t, env.xpLogs(t, "u1"), 22)
}

func TestEnsureProgressRecord(t *testing.T) {
	env := newTestEnv(t)

	prof, err := env.game.Ledger.EnsureProgressRecord(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", prof.ID)
	assert.Equal(t, 1, prof.Level)

	_, err = env.game.Ledger.EnsureProgressRecord(context.Background(), "")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}
