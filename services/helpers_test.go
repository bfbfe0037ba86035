package services

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"study-quest/models"
	"study-quest/store"
	"study-quest/store/storetest"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// 2026-10-15 is a Thursday.
var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store *store.GormStore
	clock *clockwork.FakeClock
	game  *GamificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := storetest.New(t)
	clock := clockwork.NewFakeClockAt(testNow)
	return &testEnv{
		store: s,
		clock: clock,
		game: NewGamificationService(
			NewProgressionService(s, clock),
			NewStreakService(s, clock, time.UTC),
			NewBadgeService(s, clock, time.UTC),
		),
	}
}

func (e *testEnv) seed(t *testing.T, defs ...models.BadgeDefinition) {
	t.Helper()
	require.NoError(t, e.store.SeedBadgeDefinitions(context.Background(), defs))
}

func (e *testEnv) profile(t *testing.T, id string) *models.UserProfile {
	t.Helper()
	p, err := e.store.GetProfile(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (e *testEnv) xpLogs(t *testing.T, userID string) []models.XPLogEntry {
	t.Helper()
	var logs []models.XPLogEntry
	require.NoError(t, e.store.DB.Where("user_id = ?", userID).Order("created_at ASC").Find(&logs).Error)
	return logs
}

func badge(id string, kind models.ConditionKind, value, reward int64) models.BadgeDefinition {
	return models.BadgeDefinition{
		ID:             id,
		Name:           id,
		Category:       models.BadgeCategorySpecial,
		ConditionType:  kind,
		ConditionValue: value,
		XPReward:       reward,
		Rarity:         models.RarityCommon,
	}
}

func badgeIDs(defs []models.BadgeDefinition) []string {
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
	}
	return ids
}

// failingTxLog lets every call through except AppendXPLog inside a transaction.
type failingTxLog struct {
	store.Store
	inTx bool
	err  error
}

func (f failingTxLog) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.WithinTx(ctx, func(tx store.Store) error {
		return fn(failingTxLog{Store: tx, inTx: true, err: f.err})
	})
}

func (f failingTxLog) AppendXPLog(ctx context.Context, entry *models.XPLogEntry) error {
	if f.inTx {
		return f.err
	}
	return f.Store.AppendXPLog(ctx, entry)
}

// brokenCatalog fails every badge catalog read.
type brokenCatalog struct {
	store.Store
	err error
}

func (b brokenCatalog) ListBadgeDefinitions(context.Context) ([]models.BadgeDefinition, error) {
	return nil, b.err
}
