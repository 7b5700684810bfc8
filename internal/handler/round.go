package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"geoguess-bot/internal/game"
	"geoguess-bot/internal/geo"
	"geoguess-bot/internal/imagery"
	"geoguess-bot/internal/service"
)

const (
	startTimeout  = 90 * time.Second
	actionTimeout = 30 * time.Second
)

// GameHandler handles round commands and the round keyboard.
type GameHandler struct {
	games *service.GameService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(games *service.GameService) *GameHandler {
	return &GameHandler{games: games}
}

// HandleGeo handles /geo [CODE].
func (h *GameHandler) HandleGeo(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	code := ""
	if args := c.Args(); len(args) > 0 {
		code = args[0]
	}

	_ = c.Notify(tele.UploadingPhoto)

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	round, err := h.games.StartRound(ctx, chat.ID, sender.ID, code)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chat.ID).Str("code", code).Msg("Failed to start round")
		return c.Reply(startErrorMessage(err))
	}

	snap := round.Session.Snapshot()
	photo := &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(round.Image)),
		Caption: FormatRoundCaption(snap.View, snap.Quota),
	}
	return c.Send(photo, BuildRoundKeyboard(round.Session.ID(), round.Options, round.Session.Available))
}

func startErrorMessage(err error) string {
	var cd *service.CooldownError
	switch {
	case errors.As(err, &cd):
		return fmt.Sprintf("⏳ Please wait %s before starting another round", cd.Wait.Round(time.Second))
	case errors.Is(err, geo.ErrUnknownRegion):
		return "❌ Unknown region. See /regions for the list of codes"
	case errors.Is(err, service.ErrRoundStarting):
		return "⏳ A round is already being prepared in this chat"
	case errors.Is(err, service.ErrSamplingExhausted):
		return "😕 Couldn't find street imagery this time, try again"
	case errors.Is(err, service.ErrSamplingUnavailable):
		return "⚠️ The imagery provider is unavailable right now, try again later"
	case errors.Is(err, imagery.ErrImageFetch):
		return "⚠️ Couldn't load the picture, try again"
	default:
		return "❌ Something went wrong, try again later"
	}
}

// HandleCallback routes round keyboard presses. It reports false when the
// data does not belong to a round.
func (h *GameHandler) HandleCallback(c tele.Context) (bool, error) {
	cb := c.Callback()
	if cb == nil {
		return false, nil
	}
	action, sessionID, param, ok := DecodeCallback(cb.Data)
	if !ok {
		return false, nil
	}

	switch action {
	case ActionNavigate:
		return true, h.handleNavigate(c, sessionID, param)
	default:
		return true, h.handleAnswer(c, sessionID, param)
	}
}

func (h *GameHandler) handleNavigate(c tele.Context, sessionID, param string) error {
	dir, err := game.ParseDirection(param)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid action"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	res, err := h.games.Navigate(ctx, sessionID, dir)
	if err != nil {
		if errors.Is(err, game.ErrSessionNotFound) {
			return c.Respond(&tele.CallbackResponse{Text: "⌛ This round has expired", ShowAlert: true})
		}
		log.Warn().Err(err).Str("session", sessionID).Str("dir", dir.String()).Msg("Navigation failed")
		return c.Respond(&tele.CallbackResponse{Text: "⚠️ Couldn't load the view, try again"})
	}

	switch res.Outcome {
	case game.NavSessionFinished:
		return c.Respond(&tele.CallbackResponse{Text: "🏁 This round is over"})
	case game.NavQuotaExhausted:
		return c.Respond(&tele.CallbackResponse{Text: "👣 No moves left, make your guess"})
	case game.NavAtBound:
		return c.Respond(&tele.CallbackResponse{Text: "🔭 Can't zoom any further"})
	}

	sess, err := h.games.Session(sessionID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "⌛ This round has expired"})
	}
	photo := &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(res.Image)),
		Caption: FormatRoundCaption(res.View, res.Quota),
	}
	if err := c.Edit(photo, BuildRoundKeyboard(sessionID, sess.Options(), sess.Available)); err != nil {
		log.Debug().Err(err).Str("session", sessionID).Msg("Failed to edit round message")
	}
	return c.Respond()
}

func (h *GameHandler) handleAnswer(c tele.Context, sessionID, param string) error {
	optionID, err := strconv.Atoi(param)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid action"})
	}
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	player := game.Player{ID: sender.ID, Name: displayName(sender)}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	res, err := h.games.Answer(ctx, sessionID, player, optionID)
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return c.Respond(&tele.CallbackResponse{Text: "⌛ This round has expired", ShowAlert: true})
	case errors.Is(err, game.ErrInvalidOption):
		return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid action"})
	case err != nil:
		log.Error().Err(err).Str("session", sessionID).Int64("user_id", sender.ID).Msg("Answer failed")
		return c.Respond(&tele.CallbackResponse{Text: "⚠️ Couldn't record your answer, try again", ShowAlert: true})
	}

	switch res.Outcome {
	case game.Wrong:
		return c.Respond(&tele.CallbackResponse{Text: "❌ Wrong! You can't answer again this round"})
	case game.AlreadyAnswered:
		return c.Respond(&tele.CallbackResponse{Text: "You already answered this round"})
	case game.SessionFinished:
		return c.Respond(&tele.CallbackResponse{Text: "🏁 This round is over"})
	}

	if cb := c.Callback(); cb != nil && cb.Message != nil {
		if _, err := c.Bot().EditReplyMarkup(cb.Message, &tele.ReplyMarkup{}); err != nil {
			log.Debug().Err(err).Str("session", sessionID).Msg("Failed to clear round keyboard")
		}
	}
	if err := c.Send(FormatWin(player.Name, res.Region.FullName(), res.Score), tele.ModeHTML); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{Text: fmt.Sprintf("🎉 +%d points (total %d)", res.Score, res.Total)})
}

// HandleRegions handles /regions.
func (h *GameHandler) HandleRegions(c tele.Context) error {
	return c.Reply(FormatRegions(h.games.Regions()))
}
