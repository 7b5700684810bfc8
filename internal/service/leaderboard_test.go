package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoguess-bot/internal/pkg/cooldown"
	"geoguess-bot/internal/repository"
)

func newLeaderboard(t *testing.T, limiter cooldown.Limiter) (*LeaderboardService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewLeaderboardService(repository.NewLeaderboardRepository(mock), limiter, 30*time.Second, 3), mock
}

func TestLeaderboardService_TopWithCooldown(t *testing.T) {
	svc, mock := newLeaderboard(t, cooldown.NewMemory())
	now := time.Now()

	mock.ExpectQuery(`ORDER BY score DESC`).
		WithArgs(3).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "username", "score", "created_at", "updated_at"}).
			AddRow(int64(1), int64(10), "alice", int64(5000), now, now))

	entries, err := svc.Top(context.Background(), -100)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Username)

	_, err = svc.Top(context.Background(), -100)
	assert.ErrorIs(t, err, ErrOnCooldown)
}

func TestLeaderboardService_Standing(t *testing.T) {
	svc, mock := newLeaderboard(t, nil)

	mock.ExpectQuery(`SELECT score FROM leaderboard`).
		WithArgs(int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"score"}).AddRow(int64(4240)))
	mock.ExpectQuery(`WHERE o.score > l.score`).
		WithArgs(int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"rank"}).AddRow(int64(2)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM leaderboard`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(9)))

	st, err := svc.Standing(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, Standing{Rank: 2, Score: 4240, Size: 9}, st)
}

func TestLeaderboardService_StandingNotFound(t *testing.T) {
	svc, mock := newLeaderboard(t, nil)

	mock.ExpectQuery(`SELECT score FROM leaderboard`).
		WithArgs(int64(11)).
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.Standing(context.Background(), 11)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLeaderboardService_Reset(t *testing.T) {
	svc, mock := newLeaderboard(t, nil)

	mock.ExpectExec(`DELETE FROM leaderboard`).
		WithArgs(int64(10)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM leaderboard`).
		WithArgs(int64(10)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	removed, err := svc.Reset(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Reset(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, removed, "absent entry")
}
