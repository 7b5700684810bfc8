// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"geoguess-bot/internal/pkg/db"
)

// Common errors for repository operations.
var (
	ErrNotFound      = errors.New("leaderboard entry not found")
	ErrNegativeDelta = errors.New("score delta must not be negative")
)

// Entry is one leaderboard row.
type Entry struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	Score     int64     `db:"score"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// LeaderboardRepository persists cumulative per-user scores.
type LeaderboardRepository struct {
	db db.Querier
}

// NewLeaderboardRepository creates a new LeaderboardRepository instance.
func NewLeaderboardRepository(q db.Querier) *LeaderboardRepository {
	return &LeaderboardRepository{db: q}
}

// GetScore returns a user's score or ErrNotFound.
func (r *LeaderboardRepository) GetScore(ctx context.Context, userID int64) (int64, error) {
	const query = `SELECT score FROM leaderboard WHERE user_id = $1`

	var score int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&score); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to get score: %w", err)
	}
	return score, nil
}

// AddScore adds delta to a user's score, creating the row on first use,
// and returns the new total. The username is refreshed on every call.
func (r *LeaderboardRepository) AddScore(ctx context.Context, userID int64, username string, delta int64) (int64, error) {
	if delta < 0 {
		return 0, ErrNegativeDelta
	}

	const query = `
		INSERT INTO leaderboard (user_id, username, score, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET score = leaderboard.score + EXCLUDED.score,
		    username = EXCLUDED.username,
		    updated_at = NOW()
		RETURNING score
	`

	var total int64
	if err := r.db.QueryRow(ctx, query, userID, username, delta).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to add score: %w", err)
	}
	return total, nil
}

// TopN returns up to n entries by score descending. Ties keep the order in
// which users first scored.
func (r *LeaderboardRepository) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	const query = `
		SELECT id, user_id, username, score, created_at, updated_at
		FROM leaderboard
		ORDER BY score DESC, id ASC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.Score, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return entries, nil
}

// Rank returns 1 + the number of users with a strictly greater score, so
// tied users share a rank.
func (r *LeaderboardRepository) Rank(ctx context.Context, userID int64) (int64, error) {
	const query = `
		SELECT 1 + (SELECT COUNT(*) FROM leaderboard o WHERE o.score > l.score)
		FROM leaderboard l
		WHERE l.user_id = $1
	`

	var rank int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&rank); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to get rank: %w", err)
	}
	return rank, nil
}

// Size returns the number of users on the leaderboard.
func (r *LeaderboardRepository) Size(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM leaderboard`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count leaderboard: %w", err)
	}
	return n, nil
}

// Reset deletes a user's entry. It returns ErrNotFound if there was none.
func (r *LeaderboardRepository) Reset(ctx context.Context, userID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM leaderboard WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to reset score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
