package game

import (
	"math"
	"time"
)

const (
	// BaseScore is awarded for an instant correct answer.
	BaseScore = 5000
	// DecayConstant is the e-folding time of the score.
	DecayConstant = 28 * time.Second
)

// DecayScore returns floor(base * e^(-elapsed/DecayConstant)). Elapsed time
// before startedAt counts as zero and the result is never negative.
func DecayScore(base int, startedAt, answeredAt time.Time) int {
	if base <= 0 {
		return 0
	}
	elapsed := answeredAt.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	score := math.Floor(float64(base) * math.Exp(-elapsed.Seconds()/DecayConstant.Seconds()))
	if score < 0 {
		return 0
	}
	return int(score)
}
