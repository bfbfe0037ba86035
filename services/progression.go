package services

import (
	"context"
	"fmt"
	"math"

	"study-quest/apperr"
	"study-quest/logger"
	"study-quest/models"
	"study-quest/store"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// XPGrant is one XP change request.
type XPGrant struct {
	UserID  string
	Amount  int64 // negative for corrections
	Reason  string
	Source  models.XPSource
	Subject string
}

type GrantResult struct {
	UserID        string            `json:"user_id"`
	NewXP         int64             `json:"new_xp"`
	NewLevel      int               `json:"new_level"`
	PreviousLevel int               `json:"previous_level"`
	LeveledUp     bool              `json:"leveled_up"`
	Entry         models.XPLogEntry `json:"entry"`
}

// ProgressionService is the XP ledger: it owns every write to profiles.xp,
// profiles.level and xp_logs.
type ProgressionService struct {
	Store store.Store
	Clock clockwork.Clock
}

func NewProgressionService(st store.Store, clock clockwork.Clock) *ProgressionService {
	return &ProgressionService{Store: st, Clock: clock}
}

// EnsureProgressRecord ensures a profile row exists (idempotent)
func (s *ProgressionService) EnsureProgressRecord(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	return s.Store.EnsureProfile(ctx, userID)
}

// GrantXP records a manual XP change (admin grant or correction).
func (s *ProgressionService) GrantXP(ctx context.Context, userID string, amount int64, reason string) (*GrantResult, error) {
	return s.Apply(ctx, XPGrant{UserID: userID, Amount: amount, Reason: reason, Source: models.XPSourceManual})
}

// Apply increments XP, recomputes the cached level and appends the audit
// entry in one transaction. Either all three land or none do.
func (s *ProgressionService) Apply(ctx context.Context, g XPGrant) (*GrantResult, error) {
	if g.UserID == "" {
		return nil, apperr.Validation("user id is required")
	}
	if g.Source == "" {
		g.Source = models.XPSourceManual
	}

	entry := models.XPLogEntry{
		ID:        uuid.NewString(),
		UserID:    g.UserID,
		XPChange:  g.Amount,
		Reason:    g.Reason,
		Source:    g.Source,
		Subject:   g.Subject,
		CreatedAt: s.Clock.Now(),
	}

	var result *GrantResult
	err := s.Store.WithinTx(ctx, func(tx store.Store) error {
		if g.Amount > 0 {
			cur, err := tx.GetProfile(ctx, g.UserID)
			if err != nil {
				return err
			}
			if cur.XP > math.MaxInt64-g.Amount {
				return apperr.Validation("xp change %d would overflow %s (xp=%d)", g.Amount, g.UserID, cur.XP)
			}
		}

		prof, err := tx.IncrementXP(ctx, g.UserID, g.Amount)
		if err != nil {
			return err
		}

		newLevel := LevelOf(prof.XP)
		if prof.Level != newLevel {
			if _, err := tx.UpdateProfile(ctx, g.UserID, map[string]any{"level": newLevel}); err != nil {
				return err
			}
		}
		if err := tx.AppendXPLog(ctx, &entry); err != nil {
			return err
		}

		prevLevel := LevelOf(prof.XP - g.Amount)
		result = &GrantResult{
			UserID:        g.UserID,
			NewXP:         prof.XP,
			NewLevel:      newLevel,
			PreviousLevel: prevLevel,
			LeveledUp:     newLevel > prevLevel,
			Entry:         entry,
		}
		return nil
	})
	if err != nil {
		logger.L().Warnw("❌ [XP] grant failed", "user_id", g.UserID, "amount", g.Amount, "source", g.Source, "error", err)
		return nil, fmt.Errorf("grant %d xp to %s: %w", g.Amount, g.UserID, err)
	}

	logger.L().Infof("🎮 XP Awarded: %s → XP=%d, Lvl=%d (%+d, %s: %s)",
		g.UserID, result.NewXP, result.NewLevel, g.Amount, g.Source, g.Reason)
	return result, nil
}
