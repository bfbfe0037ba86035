package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"study-quest/apperr"
	"study-quest/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// A transaction issues a handful of statements; its overall deadline is this
// many per-statement timeouts.
const txStatementBudget = 6

// GormStore implements Store on top of GORM. Every round-trip runs under its
// own Timeout so a stuck backend surfaces as a Store error instead of hanging.
type GormStore struct {
	DB      *gorm.DB
	Timeout time.Duration

	inTx bool
}

var _ Store = (*GormStore)(nil)

func New(db *gorm.DB, timeout time.Duration) *GormStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GormStore{DB: db, Timeout: timeout}
}

// OpenPostgres connects to the hosted database.
func OpenPostgres(dsn string, timeout time.Duration) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db, timeout), nil
}

func (s *GormStore) Migrate(ctx context.Context) error {
	return s.DB.WithContext(ctx).AutoMigrate(
		&models.UserProfile{},
		&models.XPLogEntry{},
		&models.StreakLogEntry{},
		&models.BadgeDefinition{},
		&models.UserBadge{},
	)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) call(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	return s.DB.WithContext(ctx), cancel
}

// wrap converts driver and GORM errors into apperr types.
func wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s not found", msg)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict(err, "%s", msg)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Store(err, "%s: timed out", msg)
	default:
		return apperr.Store(err, "%s", msg)
	}
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	ctx, cancel := context.WithTimeout(ctx, s.Timeout*txStatementBudget)
	defer cancel()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{DB: tx, Timeout: s.Timeout, inTx: true})
	})
	return wrap(err, "transaction")
}

// --- Profiles ---

func (s *GormStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	var prof models.UserProfile
	if err := db.Where("id = ?", userID).First(&prof).Error; err != nil {
		return nil, wrap(err, "profile %s", userID)
	}
	return &prof, nil
}

// EnsureProfile creates a zero-state profile if none exists (idempotent).
func (s *GormStore) EnsureProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	prof := models.UserProfile{ID: userID, Level: 1}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&prof).Error; err != nil {
		return nil, wrap(err, "create profile %s", userID)
	}
	var out models.UserProfile
	if err := db.Where("id = ?", userID).First(&out).Error; err != nil {
		return nil, wrap(err, "profile %s", userID)
	}
	return &out, nil
}

func (s *GormStore) UpdateProfile(ctx context.Context, userID string, fields map[string]any) (*models.UserProfile, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	res := db.Model(&models.UserProfile{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		return nil, wrap(res.Error, "update profile %s", userID)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("profile %s not found", userID)
	}
	var prof models.UserProfile
	if err := db.Where("id = ?", userID).First(&prof).Error; err != nil {
		return nil, wrap(err, "profile %s", userID)
	}
	return &prof, nil
}

func (s *GormStore) IncrementXP(ctx context.Context, userID string, delta int64) (*models.UserProfile, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	res := db.Model(&models.UserProfile{}).
		Where("id = ? AND xp + ? >= 0", userID, delta).
		UpdateColumn("xp", gorm.Expr("xp + ?", delta))
	if res.Error != nil {
		return nil, wrap(res.Error, "increment xp for %s", userID)
	}

	var prof models.UserProfile
	if err := db.Where("id = ?", userID).First(&prof).Error; err != nil {
		return nil, wrap(err, "profile %s", userID)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Validation("xp change %d would leave %s below zero (xp=%d)", delta, userID, prof.XP)
	}
	return &prof, nil
}

func (s *GormStore) ResetStreak(ctx context.Context, userID, lastActive string) (bool, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	res := db.Model(&models.UserProfile{}).
		Where("id = ? AND last_active_date = ? AND streak > 0", userID, lastActive).
		UpdateColumn("streak", 0)
	if res.Error != nil {
		return false, wrap(res.Error, "reset streak for %s", userID)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) ListActiveStreaks(ctx context.Context) ([]models.UserProfile, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	var profs []models.UserProfile
	if err := db.Where("streak > 0").Order("id ASC").Find(&profs).Error; err != nil {
		return nil, wrap(err, "list active streaks")
	}
	return profs, nil
}

// UpsertProfileIdentity writes identity columns only; xp and streak state are
// never touched by a sync.
func (s *GormStore) UpsertProfileIdentity(ctx context.Context, profiles []models.UserProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	db, cancel := s.call(ctx)
	defer cancel()

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "timezone", "subjects", "updated_at"}),
	}).Create(&profiles).Error
	return wrap(err, "upsert %d profiles", len(profiles))
}

func (s *GormStore) TopProfiles(ctx context.Context, by LeaderboardMetric, limit int) ([]models.UserProfile, error) {
	if !by.Valid() {
		return nil, apperr.Validation("unknown leaderboard metric %q", by)
	}
	db, cancel := s.call(ctx)
	defer cancel()

	var profs []models.UserProfile
	err := db.Order(string(by) + " DESC").Order("id ASC").Limit(limit).Find(&profs).Error
	if err != nil {
		return nil, wrap(err, "leaderboard by %s", by)
	}
	return profs, nil
}

// RankOf is 1 + the number of profiles strictly ahead of the user.
func (s *GormStore) RankOf(ctx context.Context, userID string, by LeaderboardMetric) (int64, error) {
	if !by.Valid() {
		return 0, apperr.Validation("unknown leaderboard metric %q", by)
	}
	prof, err := s.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	value := prof.XP
	if by == ByStreak {
		value = int64(prof.Streak)
	}

	db, cancel := s.call(ctx)
	defer cancel()
	var ahead int64
	if err := db.Model(&models.UserProfile{}).Where(string(by)+" > ?", value).Count(&ahead).Error; err != nil {
		return 0, wrap(err, "rank of %s", userID)
	}
	return ahead + 1, nil
}

// --- XP log ---

func (s *GormStore) AppendXPLog(ctx context.Context, entry *models.XPLogEntry) error {
	db, cancel := s.call(ctx)
	defer cancel()
	return wrap(db.Create(entry).Error, "append xp log for %s", entry.UserID)
}

func (s *GormStore) CountTaskCompletions(ctx context.Context, userID string) (int64, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	var n int64
	err := db.Model(&models.XPLogEntry{}).
		Where("user_id = ? AND source = ?", userID, models.XPSourceTask).
		Count(&n).Error
	return n, wrap(err, "count tasks for %s", userID)
}

func (s *GormStore) ListTaskCompletions(ctx context.Context, userID string) ([]models.XPLogEntry, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	var logs []models.XPLogEntry
	err := db.Where("user_id = ? AND source = ?", userID, models.XPSourceTask).
		Order("created_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, wrap(err, "list tasks for %s", userID)
	}
	return logs, nil
}

// --- Streak log ---

// FindStreakLog returns nil, nil when the user has no entry for date.
func (s *GormStore) FindStreakLog(ctx context.Context, userID, date string) (*models.StreakLogEntry, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	var logs []models.StreakLogEntry
	if err := db.Where("user_id = ? AND date = ?", userID, date).Limit(1).Find(&logs).Error; err != nil {
		return nil, wrap(err, "streak log %s/%s", userID, date)
	}
	if len(logs) == 0 {
		return nil, nil
	}
	return &logs[0], nil
}

func (s *GormStore) AppendStreakLog(ctx context.Context, entry *models.StreakLogEntry) error {
	db, cancel := s.call(ctx)
	defer cancel()
	return wrap(db.Create(entry).Error, "append streak log %s/%s", entry.UserID, entry.Date)
}

// --- Badges ---

func (s *GormStore) ListBadgeDefinitions(ctx context.Context) ([]models.BadgeDefinition, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	var defs []models.BadgeDefinition
	if err := db.Order("category ASC, condition_value ASC, id ASC").Find(&defs).Error; err != nil {
		return nil, wrap(err, "list badge definitions")
	}
	return defs, nil
}

func (s *GormStore) GetBadgeDefinition(ctx context.Context, id string) (*models.BadgeDefinition, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	var def models.BadgeDefinition
	if err := db.Where("id = ?", id).First(&def).Error; err != nil {
		return nil, wrap(err, "badge %s", id)
	}
	return &def, nil
}

// SeedBadgeDefinitions upserts the catalog, leaving uploaded icons in place.
func (s *GormStore) SeedBadgeDefinitions(ctx context.Context, defs []models.BadgeDefinition) error {
	if err := models.ValidateCatalog(defs); err != nil {
		return apperr.Validation("badge catalog: %v", err)
	}
	if len(defs) == 0 {
		return nil
	}
	db, cancel := s.call(ctx)
	defer cancel()

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "category", "condition_type",
			"condition_value", "subject", "xp_reward", "rarity",
		}),
	}).Create(&defs).Error
	return wrap(err, "seed %d badges", len(defs))
}

func (s *GormStore) SetBadgeIcon(ctx context.Context, id, url string) error {
	db, cancel := s.call(ctx)
	defer cancel()

	res := db.Model(&models.BadgeDefinition{}).Where("id = ?", id).Update("icon_url", url)
	if res.Error != nil {
		return wrap(res.Error, "set icon for badge %s", id)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("badge %s not found", id)
	}
	return nil
}

func (s *GormStore) ListUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	var badges []models.UserBadge
	if err := db.Where("user_id = ?", userID).Order("earned_at ASC").Find(&badges).Error; err != nil {
		return nil, wrap(err, "list badges for %s", userID)
	}
	return badges, nil
}

func (s *GormStore) InsertUserBadge(ctx context.Context, entry *models.UserBadge) (bool, error) {
	db, cancel := s.call(ctx)
	defer cancel()

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
		DoNothing: true,
	}).Create(entry)
	if res.Error != nil {
		return false, wrap(res.Error, "grant badge %s to %s", entry.BadgeID, entry.UserID)
	}
	return res.RowsAffected == 1, nil
}
