// Package storetest opens throwaway SQLite-backed stores for tests.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"study-quest/models"
	"study-quest/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// New returns a migrated in-memory store. A single connection serializes
// transactions the way row locks do on the hosted database.
func New(t testing.TB) *store.GormStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := store.New(db, 2*time.Second)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// Profile inserts a profile row as-is and returns it.
func Profile(t testing.TB, s *store.GormStore, p models.UserProfile) *models.UserProfile {
	t.Helper()
	if p.Level == 0 {
		p.Level = 1
	}
	require.NoError(t, s.DB.Create(&p).Error)
	return &p
}

// StreakDay inserts a streak log for the given day.
func StreakDay(t testing.TB, s *store.GormStore, userID, date string) {
	t.Helper()
	require.NoError(t, s.DB.Create(&models.StreakLogEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Date:       date,
		Maintained: true,
		CreatedAt:  time.Now(),
	}).Error)
}

// Task inserts a task-completion log at the given instant.
func Task(t testing.TB, s *store.GormStore, userID, subject string, at time.Time) {
	t.Helper()
	require.NoError(t, s.DB.Create(&models.XPLogEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		XPChange:  10,
		Reason:    "task_completed",
		Source:    models.XPSourceTask,
		Subject:   subject,
		CreatedAt: at,
	}).Error)
}
