// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"geoguess-bot/internal/config"
	"geoguess-bot/internal/handler"
	"geoguess-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	gameHandler        *handler.GameHandler
	leaderboardHandler *handler.LeaderboardHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config             *config.Config
	GameService        *service.GameService
	LeaderboardService *service.LeaderboardService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	timeout := deps.Config.Bot.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	teleBot, err := tele.NewBot(tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Handler error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:                teleBot,
		cfg:                deps.Config,
		gameHandler:        handler.NewGameHandler(deps.GameService),
		leaderboardHandler: handler.NewLeaderboardHandler(deps.LeaderboardService),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleHelp)
	b.bot.Handle("/help", b.handleHelp)

	b.bot.Handle("/geo", b.gameHandler.HandleGeo)
	b.bot.Handle("/regions", b.gameHandler.HandleRegions)

	b.bot.Handle("/lb", b.leaderboardHandler.HandleTop)
	b.bot.Handle("/rank", b.leaderboardHandler.HandleRank)
	b.bot.Handle("/lbreset", b.leaderboardHandler.HandleReset, AdminMiddleware(b.cfg))

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

const helpText = `🌍 Guess where the street view was taken!

/geo - start a round in a random region
/geo CODE - start a round in a region (see /regions)
/lb - show the leaderboard
/rank - show your rank

Use the arrows to look around and pick the country you think it is.
The faster you answer, the more points you get.`

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Reply(helpText)
}

// handleCallback routes callbacks to the round keyboard handler.
func (b *Bot) handleCallback(c tele.Context) error {
	handled, err := b.gameHandler.HandleCallback(c)
	if !handled && err == nil {
		if cb := c.Callback(); cb != nil {
			log.Debug().Str("data", cb.Data).Msg("Ignoring unknown callback")
		}
		return c.Respond()
	}
	return err
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
