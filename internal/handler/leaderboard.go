package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"geoguess-bot/internal/repository"
	"geoguess-bot/internal/service"
)

// LeaderboardHandler handles leaderboard commands.
type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(leaderboard *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

// HandleTop handles /lb.
func (h *LeaderboardHandler) HandleTop(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	entries, err := h.leaderboard.Top(context.Background(), chat.ID)
	if err != nil {
		var cd *service.CooldownError
		if errors.As(err, &cd) {
			return c.Reply(fmt.Sprintf("⏳ The leaderboard was just shown, try again in %s", cd.Wait.Round(time.Second)))
		}
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to load leaderboard")
		return c.Reply("❌ Failed to load the leaderboard, try again later")
	}
	return c.Reply(FormatLeaderboard(entries))
}

// HandleRank handles /rank.
func (h *LeaderboardHandler) HandleRank(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	st, err := h.leaderboard.Standing(context.Background(), sender.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Reply("You are not on the leaderboard yet. Win a round with /geo")
		}
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to load standing")
		return c.Reply("❌ Failed to load your rank, try again later")
	}
	return c.Reply(FormatStanding(displayName(sender), st))
}

// HandleReset handles /lbreset USER_ID, or /lbreset in reply to the
// user's message. It is registered behind the admin middleware.
func (h *LeaderboardHandler) HandleReset(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var replyTo *tele.Message
	if msg := c.Message(); msg != nil {
		replyTo = msg.ReplyTo
	}
	target, err := resetTarget(c.Args(), replyTo)
	if err != nil {
		return c.Reply("Usage: /lbreset USER_ID, or reply to the user's message with /lbreset")
	}

	removed, err := h.leaderboard.Reset(context.Background(), target)
	if err != nil {
		log.Error().Err(err).Int64("target_id", target).Msg("Failed to reset leaderboard entry")
		return c.Reply("❌ Failed to reset the score, try again later")
	}
	if !removed {
		return c.Reply(fmt.Sprintf("User %d has no leaderboard entry", target))
	}

	log.Info().Int64("admin_id", sender.ID).Int64("target_id", target).Msg("Admin reset leaderboard entry")
	return c.Reply(fmt.Sprintf("🧹 Score of user %d has been reset", target))
}

var errNoResetTarget = errors.New("no reset target")

// resetTarget picks the user id from the first argument, falling back to
// the author of the replied-to message.
func resetTarget(args []string, replyTo *tele.Message) (int64, error) {
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return 0, errNoResetTarget
		}
		return id, nil
	}
	if replyTo != nil && replyTo.Sender != nil {
		return replyTo.Sender.ID, nil
	}
	return 0, errNoResetTarget
}
