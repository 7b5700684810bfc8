package handler

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"geoguess-bot/internal/game"
	"geoguess-bot/internal/imagery"
)

const (
	// CallbackPrefix marks callback data owned by the round keyboard.
	CallbackPrefix = "g"

	ActionNavigate = "n"
	ActionAnswer   = "a"

	callbackSep = "|"
	// Telegram rejects callback data longer than this.
	maxCallbackData = 64
)

// EncodeCallback builds "g|<action>|<session>|<param>".
func EncodeCallback(action, sessionID, param string) string {
	return strings.Join([]string{CallbackPrefix, action, sessionID, param}, callbackSep)
}

// DecodeCallback splits callback data built by EncodeCallback. Telebot may
// prepend a \f to unique-less buttons; it is stripped.
func DecodeCallback(data string) (action, sessionID, param string, ok bool) {
	data = strings.TrimPrefix(data, "\f")
	parts := strings.Split(data, callbackSep)
	if len(parts) != 4 || parts[0] != CallbackPrefix || parts[2] == "" {
		return "", "", "", false
	}
	switch parts[1] {
	case ActionNavigate, ActionAnswer:
		return parts[1], parts[2], parts[3], true
	default:
		return "", "", "", false
	}
}

var directionLabels = map[game.Direction]string{
	game.PanLeft:  "⬅️",
	game.ZoomIn:   "🔍+",
	game.ZoomOut:  "🔍-",
	game.PanRight: "➡️",
}

// BuildRoundKeyboard lays out one navigation row, holding only directions
// that would currently move the camera, followed by the answer options two
// per row.
func BuildRoundKeyboard(sessionID string, options []game.Option, available func(game.Direction) bool) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var navRow []tele.InlineButton
	for _, d := range game.Directions {
		if available != nil && !available(d) {
			continue
		}
		navRow = append(navRow, tele.InlineButton{
			Text: directionLabels[d],
			Data: EncodeCallback(ActionNavigate, sessionID, d.String()),
		})
	}

	var rows [][]tele.InlineButton
	if len(navRow) > 0 {
		rows = append(rows, navRow)
	}

	var row []tele.InlineButton
	for _, o := range options {
		row = append(row, tele.InlineButton{
			Text: o.Label,
			Data: EncodeCallback(ActionAnswer, sessionID, strconv.Itoa(o.ID)),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	markup.InlineKeyboard = rows
	return markup
}

// FormatRoundCaption describes the current view. The direction matches the
// label stamped on the image.
func FormatRoundCaption(view game.ViewState, quota int) string {
	return fmt.Sprintf("🌍 Where is this?\n🧭 Facing %s (%d°) | 🔭 FOV %d | 👣 %d moves left",
		imagery.Compass(view.Heading), view.Heading, view.FOV, quota)
}
