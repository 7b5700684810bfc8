package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"geoguess-bot/internal/geo"
	"geoguess-bot/internal/imagery"
	"geoguess-bot/internal/metrics"
	"geoguess-bot/internal/pkg/lock"

	"github.com/rs/zerolog/log"
)

// DefaultQuota is the number of navigations a round allows.
const DefaultQuota = 10

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidOption   = errors.New("invalid answer option")
	ErrInvalidSession  = errors.New("session needs exactly one correct option")
)

// NavOutcome is the result kind of Navigate.
type NavOutcome int

const (
	Navigated NavOutcome = iota + 1
	NavSessionFinished
	NavQuotaExhausted
	NavAtBound
)

func (o NavOutcome) String() string {
	switch o {
	case Navigated:
		return "navigated"
	case NavSessionFinished:
		return "finished"
	case NavQuotaExhausted:
		return "quota_exhausted"
	case NavAtBound:
		return "at_bound"
	default:
		return "unknown"
	}
}

// NavResult carries the new image and view when Outcome is Navigated.
type NavResult struct {
	Outcome NavOutcome
	Image   []byte
	View    ViewState
	Quota   int
}

// AnswerOutcome is the result kind of Answer.
type AnswerOutcome int

const (
	Won AnswerOutcome = iota + 1
	Wrong
	AlreadyAnswered
	SessionFinished
)

func (o AnswerOutcome) String() string {
	switch o {
	case Won:
		return "won"
	case Wrong:
		return "wrong"
	case AlreadyAnswered:
		return "already_answered"
	case SessionFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// AnswerResult describes an answer. Score and Total are set only on Won.
type AnswerResult struct {
	Outcome AnswerOutcome
	Score   int
	Total   int64
	Correct Option
	// Region is the round's answer; set when Outcome is Won.
	Region geo.Region
}

// Settings tunes a session. Zero fields take defaults.
type Settings struct {
	Quota     int
	BaseScore int
	Now       func() time.Time
}

// Snapshot is a read-only copy of session state.
type Snapshot struct {
	ID         string
	ChatID     int64
	Region     geo.Region
	Options    []Option
	View       ViewState
	Quota      int
	Answered   int
	Finished   bool
	Winner     *Player
	StartedAt  time.Time
	FinishedAt time.Time
	LastActive time.Time
}

// Session is one round. Navigations are serialized by turn; all other state
// is guarded by mu, which is never held across an image fetch.
type Session struct {
	id      string
	chatID  int64
	region  geo.Region
	options []Option
	correct Option
	images  imagery.Fetcher
	scores  ScoreRecorder
	base    int
	now     func() time.Time

	turn *lock.Turn

	mu         sync.Mutex
	view       ViewState
	quota      int
	answered   map[int64]int
	finished   bool
	winner     *Player
	startedAt  time.Time
	finishedAt time.Time
	lastActive time.Time

	// settling is non-nil while a winning score is being written; it is
	// closed when the write returns.
	settling chan struct{}
}

// NewSession creates a round at view. options must contain exactly one
// correct entry.
func NewSession(id string, chatID int64, region geo.Region, options []Option, view ViewState,
	images imagery.Fetcher, scores ScoreRecorder, s Settings) (*Session, error) {
	var correct *Option
	for i := range options {
		if options[i].Correct {
			if correct != nil {
				return nil, ErrInvalidSession
			}
			correct = &options[i]
		}
	}
	if correct == nil {
		return nil, ErrInvalidSession
	}

	if s.Quota <= 0 {
		s.Quota = DefaultQuota
	}
	if s.BaseScore <= 0 {
		s.BaseScore = BaseScore
	}
	if s.Now == nil {
		s.Now = time.Now
	}

	started := s.Now()
	return &Session{
		id:         id,
		chatID:     chatID,
		region:     region,
		options:    append([]Option(nil), options...),
		correct:    *correct,
		images:     images,
		scores:     scores,
		base:       s.BaseScore,
		now:        s.Now,
		turn:       lock.NewTurn(),
		view:       view,
		quota:      s.Quota,
		answered:   make(map[int64]int),
		startedAt:  started,
		lastActive: started,
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ChatID returns the chat the round runs in.
func (s *Session) ChatID() int64 { return s.chatID }

// Options returns a copy of the answer options.
func (s *Session) Options() []Option {
	return append([]Option(nil), s.options...)
}

// Navigate moves the camera and fetches the new image. At most one
// navigation is in flight per session; others wait for their turn or for
// ctx. A failed fetch leaves the view and quota untouched.
func (s *Session) Navigate(ctx context.Context, dir Direction) (NavResult, error) {
	if err := s.turn.Acquire(ctx); err != nil {
		return NavResult{}, err
	}
	defer s.turn.Release()

	s.mu.Lock()
	s.lastActive = s.now()
	if s.finished {
		s.mu.Unlock()
		return s.navResult(NavSessionFinished), nil
	}
	if s.quota <= 0 {
		s.mu.Unlock()
		return s.navResult(NavQuotaExhausted), nil
	}
	next, ok := s.view.Apply(dir)
	if !ok {
		s.mu.Unlock()
		return s.navResult(NavAtBound), nil
	}
	s.mu.Unlock()

	img, err := s.images.FetchImage(ctx, next.Coordinate, next.Params())
	if err != nil {
		metrics.NavigationsTotal.WithLabelValues("error").Inc()
		return NavResult{}, fmt.Errorf("fetch view: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		metrics.NavigationsTotal.WithLabelValues(NavSessionFinished.String()).Inc()
		return NavResult{Outcome: NavSessionFinished, View: s.view, Quota: s.quota}, nil
	}
	s.view = next
	s.quota--
	metrics.NavigationsTotal.WithLabelValues(Navigated.String()).Inc()
	return NavResult{Outcome: Navigated, Image: img, View: next, Quota: s.quota}, nil
}

// Available reports whether dir would currently move the camera.
func (s *Session) Available(dir Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.quota <= 0 {
		return false
	}
	_, ok := s.view.Apply(dir)
	return ok
}

func (s *Session) navResult(o NavOutcome) NavResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	metrics.NavigationsTotal.WithLabelValues(o.String()).Inc()
	return NavResult{Outcome: o, View: s.view, Quota: s.quota}
}

// Answer records player's choice. The first correct answer wins the round,
// and its score is written through the ScoreRecorder before the round is
// marked finished. The write runs without the state lock held; other
// correct answers wait for it. If the write fails the answer is discarded
// so the player may retry.
func (s *Session) Answer(ctx context.Context, player Player, optionID int) (AnswerResult, error) {
	s.mu.Lock()
	s.lastActive = s.now()
	if s.finished {
		s.mu.Unlock()
		metrics.AnswersTotal.WithLabelValues(SessionFinished.String()).Inc()
		return AnswerResult{Outcome: SessionFinished}, nil
	}
	if optionID < 0 || optionID >= len(s.options) {
		s.mu.Unlock()
		return AnswerResult{}, fmt.Errorf("%w: %d", ErrInvalidOption, optionID)
	}
	if _, ok := s.answered[player.ID]; ok {
		s.mu.Unlock()
		metrics.AnswersTotal.WithLabelValues(AlreadyAnswered.String()).Inc()
		return AnswerResult{Outcome: AlreadyAnswered}, nil
	}
	s.answered[player.ID] = optionID

	if !s.options[optionID].Correct {
		s.mu.Unlock()
		metrics.AnswersTotal.WithLabelValues(Wrong.String()).Inc()
		return AnswerResult{Outcome: Wrong}, nil
	}

	for s.settling != nil {
		ch := s.settling
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			s.mu.Lock()
			delete(s.answered, player.ID)
			s.mu.Unlock()
			return AnswerResult{}, fmt.Errorf("wait for pending win: %w", ctx.Err())
		}
		s.mu.Lock()
	}
	if s.finished {
		s.mu.Unlock()
		metrics.AnswersTotal.WithLabelValues(SessionFinished.String()).Inc()
		return AnswerResult{Outcome: SessionFinished}, nil
	}

	settled := make(chan struct{})
	s.settling = settled
	answeredAt := s.now()
	score := DecayScore(s.base, s.startedAt, answeredAt)
	s.mu.Unlock()

	total, err := s.scores.AddScore(ctx, player.ID, player.Name, int64(score))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settling = nil
	close(settled)

	if err != nil {
		delete(s.answered, player.ID)
		metrics.AnswersTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("session", s.id).Int64("user_id", player.ID).Msg("Failed to record winning score")
		return AnswerResult{}, fmt.Errorf("record score: %w", err)
	}

	winner := player
	s.finished = true
	s.winner = &winner
	s.finishedAt = answeredAt
	metrics.AnswersTotal.WithLabelValues(Won.String()).Inc()

	log.Info().
		Str("session", s.id).
		Int64("chat_id", s.chatID).
		Int64("user_id", player.ID).
		Str("region", s.region.Code).
		Int("score", score).
		Msg("Round won")

	return AnswerResult{Outcome: Won, Score: score, Total: total, Correct: s.correct, Region: s.region}, nil
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:         s.id,
		ChatID:     s.chatID,
		Region:     s.region,
		Options:    append([]Option(nil), s.options...),
		View:       s.view,
		Quota:      s.quota,
		Answered:   len(s.answered),
		Finished:   s.finished,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
		LastActive: s.lastActive,
	}
	if s.winner != nil {
		w := *s.winner
		snap.Winner = &w
	}
	return snap
}
