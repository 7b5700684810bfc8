package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"geoguess-bot/internal/pkg/cooldown"
	"geoguess-bot/internal/repository"
)

// LeaderboardStore is the persistence the leaderboard service needs.
type LeaderboardStore interface {
	GetScore(ctx context.Context, userID int64) (int64, error)
	TopN(ctx context.Context, n int) ([]repository.Entry, error)
	Rank(ctx context.Context, userID int64) (int64, error)
	Size(ctx context.Context) (int64, error)
	Reset(ctx context.Context, userID int64) error
}

// Standing is a user's position on the leaderboard.
type Standing struct {
	Rank  int64
	Score int64
	Size  int64
}

// LeaderboardService handles leaderboard display and maintenance.
type LeaderboardService struct {
	store     LeaderboardStore
	cooldowns cooldown.Limiter
	window    time.Duration
	size      int
}

// NewLeaderboardService creates a new LeaderboardService instance. Top is
// limited to one call per chat per window; cooldowns may be nil.
func NewLeaderboardService(store LeaderboardStore, cooldowns cooldown.Limiter, window time.Duration, size int) *LeaderboardService {
	if size <= 0 {
		size = 10
	}
	return &LeaderboardService{store: store, cooldowns: cooldowns, window: window, size: size}
}

// Top returns the best entries for display in a chat.
func (s *LeaderboardService) Top(ctx context.Context, chatID int64) ([]repository.Entry, error) {
	if s.cooldowns != nil && s.window > 0 {
		key := fmt.Sprintf("lb:%d", chatID)
		ok, wait, err := s.cooldowns.Allow(ctx, key, s.window)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("key", key).Msg("Cooldown check failed")
		case !ok:
			return nil, &CooldownError{Wait: wait}
		}
	}
	return s.store.TopN(ctx, s.size)
}

// Standing returns a user's rank and score. It returns
// repository.ErrNotFound for users who never scored.
func (s *LeaderboardService) Standing(ctx context.Context, userID int64) (Standing, error) {
	score, err := s.store.GetScore(ctx, userID)
	if err != nil {
		return Standing{}, err
	}
	rank, err := s.store.Rank(ctx, userID)
	if err != nil {
		return Standing{}, err
	}
	size, err := s.store.Size(ctx)
	if err != nil {
		return Standing{}, err
	}
	return Standing{Rank: rank, Score: score, Size: size}, nil
}

// Reset removes a user's entry. It is an admin maintenance operation and
// reports false when the user had no entry.
func (s *LeaderboardService) Reset(ctx context.Context, userID int64) (bool, error) {
	err := s.store.Reset(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	log.Info().Int64("user_id", userID).Msg("Leaderboard entry reset")
	return true, nil
}
