package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestLeaderboard_GetScore(t *testing.T) {
	mock := newMock(t)
	repo := NewLeaderboardRepository(mock)

	mock.ExpectQuery(`SELECT score FROM leaderboard WHERE user_id`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"score"}).AddRow(int64(4240)))

	score, err := repo.GetScore(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(4240), score)
}

func TestLeaderboard_GetScoreNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewLeaderboardRepository(mock)

	mock.ExpectQuery(`SELECT score FROM leaderboard`).
		WithArgs(int64(8)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetScore(context.Background(), 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaderboard_AddScoreUpserts(t *testing.T) {
	mock := newMock(t)
	repo := NewLeaderboardRepository(mock)

	mock.ExpectQuery(`ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs(int64(1), "alice", int64(3240)).
		WillReturnRows(pgxmock.NewRows([]string{"score"}).AddRow(int64(3240)))
	mock.ExpectQuery(`INSERT INTO leaderboard`).
		WithArgs(int64(1), "alice", int64(1000)).
		WillReturnRows(pgxmock.NewRows([]string{"score"}).AddRow(int64(4240)))

	total, err := repo.AddScore(context.Background(), 1, "alice", 3240)
	require.NoError(t, err)
	assert.Equal(t, int64(3240), total)

	total, err = repo.AddScore(context.Background(), 1, "alice", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(4240), total)
}

func TestLeaderboard_AddScoreRejectsNegative(t *testing.T) {
	mock := newMock(t)
	repo := NewLeaderboardRepository(mock)

	_, err := repo.AddScore(context.Background(), 1, "alice", -5)
	assert.ErrorIs(t, err, ErrNegativeDelta)
}

func TestLeaderboard_AddScoreError(t *testing.T) {
	mock := newMock(t)
	repo := NewLeaderboardRepository(mock)

	boom := errors.New("connection reset")
	mock.ExpectQuery(`INSERT INTO leaderboard`).
		WithArgs(int64(1), "alice", int64(10)).
		WillReturnError(boom)

	_, err := repo.AddScore(context.Background(), 1, "alice", 10)
	assert.ErrorIs(t, err, boom)
}

func TestLeaderboard_TopN(t *testing.T) {
	mock := newMock(t)
	repo := NewLeaderboardRepository(mock)
	now := time.Now()

	mock.ExpectQuery(`ORDER BY score DESC, id ASC`).
		WithArgs(3).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "username", "score", "created_at", "updated_at"}).
			AddRow(int64(2), int64(20), "bob", int64(900), now, now).
			AddRow(int64(1), int64(10), "alice", int64(500), now, now).
			AddRow(int64(3), int64(30), "carol", int64(500), now, now))

	entries, err := repo.TopN(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "bob", entries[0].Username)
	assert.Equal(t, int64(10), entries[1].UserID)
	assert.Equal(t, int64(30), entries[2].UserID)
}

func TestLeaderboard_TopNZero(t *testing.T) {
	mock := newMock(t)
	repo := NewLeaderboardRepository(mock)

	entries, err := repo.TopN(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLeaderboard_Rank(t *testing.T) {
	mock := newMock(t)
	repo := NewLeaderboardRepository(mock)

	mock.ExpectQuery(`WHERE o.score > l.score`).
		WithArgs(int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"rank"}).AddRow(int64(2)))
	mock.ExpectQuery(`WHERE o.score > l.score`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	rank, err := repo.Rank(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)

	_, err = repo.Rank(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaderboard_Size(t *testing.T) {
	mock := newMock(t)
	repo := NewLeaderboardRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM leaderboard`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))

	n, err := repo.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestLeaderboard_Reset(t *testing.T) {
	mock := newMock(t)
	repo := NewLeaderboardRepository(mock)

	mock.ExpectExec(`DELETE FROM leaderboard WHERE user_id`).
		WithArgs(int64(10)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM leaderboard WHERE user_id`).
		WithArgs(int64(11)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Reset(context.Background(), 10))
	assert.ErrorIs(t, repo.Reset(context.Background(), 11), ErrNotFound)
}
