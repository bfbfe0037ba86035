package services

import (
	"context"

	"study-quest/apperr"
	"study-quest/store"

	"golang.org/x/sync/errgroup"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

type LeaderboardEntry struct {
	Rank   int64  `json:"rank"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	XP     int64  `json:"xp"`
	Level  int    `json:"level"`
	Streak int    `json:"streak"`
}

type Leaderboard struct {
	By      store.LeaderboardMetric `json:"by"`
	Entries []LeaderboardEntry      `json:"entries"`
	// Me is the caller's own rank, set when a user id was given.
	Me *LeaderboardEntry `json:"me,omitempty"`
}

type LeaderboardService struct {
	Store store.Store
}

func NewLeaderboardService(st store.Store) *LeaderboardService {
	return &LeaderboardService{Store: st}
}

// Top ranks profiles by xp or streak. Equal values share a rank.
func (s *LeaderboardService) Top(ctx context.Context, by store.LeaderboardMetric, limit int, userID string) (*Leaderboard, error) {
	if by == "" {
		by = store.ByXP
	}
	if !by.Valid() {
		return nil, apperr.Validation("unknown leaderboard metric %q", by)
	}
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	limit = min(limit, maxLeaderboardSize)

	board := &Leaderboard{By: by}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profs, err := s.Store.TopProfiles(gctx, by, limit)
		if err != nil {
			return err
		}
		entries := make([]LeaderboardEntry, 0, len(profs))
		var prev int64
		for i, p := range profs {
			e := LeaderboardEntry{Rank: int64(i + 1), UserID: p.ID, Name: p.Name, XP: p.XP, Level: LevelOf(p.XP), Streak: p.Streak}
			v := metricOf(by, e)
			if i > 0 && v == prev {
				e.Rank = entries[i-1].Rank
			}
			prev = v
			entries = append(entries, e)
		}
		board.Entries = entries
		return nil
	})

	if userID != "" {
		g.Go(func() error {
			prof, err := s.Store.GetProfile(gctx, userID)
			if apperr.IsCode(err, apperr.CodeNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			rank, err := s.Store.RankOf(gctx, userID, by)
			if err != nil {
				return err
			}
			board.Me = &LeaderboardEntry{Rank: rank, UserID: prof.ID, Name: prof.Name, XP: prof.XP, Level: LevelOf(prof.XP), Streak: prof.Streak}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return board, nil
}

func metricOf(by store.LeaderboardMetric, e LeaderboardEntry) int64 {
	if by == store.ByStreak {
		return int64(e.Streak)
	}
	return e.XP
}
