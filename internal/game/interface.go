// Package game implements guessing rounds: the view a round shows, its
// answer options, time-decay scoring and the registry that routes actions
// to a round by session id.
package game

import "context"

// Player identifies a participant. Name is only used for display.
type Player struct {
	ID   int64
	Name string
}

// ScoreRecorder durably adds points to a player's cumulative score and
// returns the new total. It is the only durable side effect of a round.
type ScoreRecorder interface {
	AddScore(ctx context.Context, userID int64, username string, delta int64) (int64, error)
}
