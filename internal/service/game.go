package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"geoguess-bot/internal/game"
	"geoguess-bot/internal/geo"
	"geoguess-bot/internal/imagery"
	"geoguess-bot/internal/metrics"
	"geoguess-bot/internal/pkg/cooldown"
	"geoguess-bot/internal/pkg/lock"
	"geoguess-bot/internal/sampler"
)

// Common errors for round operations.
var (
	ErrSamplingExhausted   = errors.New("no imagery found for this region")
	ErrSamplingUnavailable = errors.New("imagery provider unavailable")
	ErrRoundStarting       = errors.New("a round is already starting in this chat")
	ErrOnCooldown          = errors.New("on cooldown")
)

// CooldownError reports how long the caller must wait. It matches
// ErrOnCooldown with errors.Is.
type CooldownError struct {
	Wait time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("on cooldown for %s", e.Wait.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool { return target == ErrOnCooldown }

// Sampler finds a location with imagery.
type Sampler interface {
	Sample(ctx context.Context, code string) (sampler.Outcome, error)
	SampleRandom(ctx context.Context) sampler.Outcome
}

// GameSettings tunes new rounds.
type GameSettings struct {
	Quota         int
	BaseScore     int
	OptionCount   int
	ImageSize     string
	RoundCooldown time.Duration
}

// Round is a freshly started session with its opening image.
type Round struct {
	Session *game.Session
	Image   []byte
	Region  geo.Region
	Options []game.Option
	Checks  int
}

// GameService starts rounds and routes player actions to them.
type GameService struct {
	catalog   *geo.Catalog
	sampler   Sampler
	images    imagery.Fetcher
	scores    game.ScoreRecorder
	registry  *game.Registry
	cooldowns cooldown.Limiter
	settings  GameSettings

	starting *lock.KeyedLock[int64]

	rngMu sync.Mutex
	rng   *rand.Rand
	newID func() string
}

// NewGameService creates a new GameService instance. cooldowns may be nil
// to disable the per-user round cooldown.
func NewGameService(
	catalog *geo.Catalog,
	smp Sampler,
	images imagery.Fetcher,
	scores game.ScoreRecorder,
	registry *game.Registry,
	cooldowns cooldown.Limiter,
	settings GameSettings,
) *GameService {
	if settings.OptionCount <= 0 {
		settings.OptionCount = game.OptionCount
	}
	return &GameService{
		catalog:   catalog,
		sampler:   smp,
		images:    images,
		scores:    scores,
		registry:  registry,
		cooldowns: cooldowns,
		settings:  settings,
		starting:  lock.NewKeyedLock[int64](),
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		newID:     uuid.NewString,
	}
}

// StartRound samples a location in code (or a weighted random region when
// code is empty), builds the answer options, fetches the opening image and
// registers the session. Only one start runs per chat at a time.
func (s *GameService) StartRound(ctx context.Context, chatID, userID int64, code string) (*Round, error) {
	if !s.starting.TryLock(chatID) {
		return nil, ErrRoundStarting
	}
	defer s.starting.Unlock(chatID)

	// A mistyped code must not cost the player a cooldown.
	if strings.TrimSpace(code) != "" {
		if _, err := s.catalog.Lookup(code); err != nil {
			return nil, err
		}
	}

	if err := s.checkCooldown(ctx, fmt.Sprintf("round:%d", userID), s.settings.RoundCooldown); err != nil {
		return nil, err
	}

	var (
		outcome sampler.Outcome
		err     error
	)
	if strings.TrimSpace(code) == "" {
		outcome = s.sampler.SampleRandom(ctx)
	} else {
		outcome, err = s.sampler.Sample(ctx, code)
		if err != nil {
			return nil, err
		}
	}

	var found sampler.Found
	switch o := outcome.(type) {
	case sampler.Found:
		found = o
	case sampler.Exhausted:
		return nil, fmt.Errorf("%w: tried %s", ErrSamplingExhausted, strings.Join(o.Regions, ", "))
	case sampler.TransientFailure:
		return nil, fmt.Errorf("%w: %s", ErrSamplingUnavailable, o.Reason)
	default:
		return nil, fmt.Errorf("unexpected sampler outcome %T", outcome)
	}

	s.rngMu.Lock()
	options, err := game.BuildOptions(found.Region, s.catalog.All(), s.settings.OptionCount, s.rng)
	s.rngMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to build options: %w", err)
	}

	view := game.NewView(found.Coordinate, s.settings.ImageSize)
	img, err := s.images.FetchImage(ctx, view.Coordinate, view.Params())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch opening image: %w", err)
	}

	sess, err := game.NewSession(s.newID(), chatID, found.Region, options, view, s.images, s.scores,
		game.Settings{Quota: s.settings.Quota, BaseScore: s.settings.BaseScore})
	if err != nil {
		return nil, err
	}
	if err := s.registry.Add(sess); err != nil {
		return nil, err
	}
	metrics.RoundsStartedTotal.Inc()

	log.Info().
		Str("session", sess.ID()).
		Int64("chat_id", chatID).
		Int64("user_id", userID).
		Str("region", found.Region.Code).
		Str("location", found.Coordinate.String()).
		Int("checks", found.Checks).
		Msg("Round started")

	return &Round{
		Session: sess,
		Image:   img,
		Region:  found.Region,
		Options: options,
		Checks:  found.Checks,
	}, nil
}

// Session returns a registered session.
func (s *GameService) Session(id string) (*game.Session, error) {
	return s.registry.Get(id)
}

// Navigate moves the camera of a session.
func (s *GameService) Navigate(ctx context.Context, sessionID string, dir game.Direction) (game.NavResult, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return game.NavResult{}, err
	}
	return sess.Navigate(ctx, dir)
}

// Answer submits a player's choice to a session.
func (s *GameService) Answer(ctx context.Context, sessionID string, player game.Player, optionID int) (game.AnswerResult, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return game.AnswerResult{}, err
	}
	return sess.Answer(ctx, player, optionID)
}

// Regions lists the playable regions ordered by code.
func (s *GameService) Regions() []geo.Region {
	return s.catalog.All()
}

// checkCooldown fails open: a broken limiter never blocks play.
func (s *GameService) checkCooldown(ctx context.Context, key string, window time.Duration) error {
	if s.cooldowns == nil || window <= 0 {
		return nil
	}
	ok, wait, err := s.cooldowns.Allow(ctx, key, window)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cooldown check failed")
		return nil
	}
	if !ok {
		return &CooldownError{Wait: wait}
	}
	return nil
}
