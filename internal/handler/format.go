package handler

import (
	"fmt"
	"html"
	"strings"

	tele "gopkg.in/telebot.v3"

	"geoguess-bot/internal/geo"
	"geoguess-bot/internal/repository"
	"geoguess-bot/internal/service"
)

var medals = []string{"🥇", "🥈", "🥉"}

// displayName prefers the @username, then the first name, then the id.
func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return fmt.Sprintf("User%d", u.ID)
}

// FormatWin is sent in HTML mode.
func FormatWin(player, label string, score int) string {
	return fmt.Sprintf("🎉 %s got the right answer of <b>%s</b> and won %d points!",
		html.EscapeString(player), html.EscapeString(label), score)
}

// FormatLeaderboard renders the top entries.
func FormatLeaderboard(entries []repository.Entry) string {
	var b strings.Builder
	b.WriteString("🏆 Leaderboard\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")

	if len(entries) == 0 {
		b.WriteString("No scores yet. Start a round with /geo\n")
	}
	for i, e := range entries {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		name := e.Username
		if name == "" {
			name = fmt.Sprintf("User%d", e.UserID)
		}
		fmt.Fprintf(&b, "%s %s: %d\n", rank, name, e.Score)
	}

	b.WriteString("━━━━━━━━━━━━━━━")
	return b.String()
}

// FormatStanding renders /rank.
func FormatStanding(name string, st service.Standing) string {
	return fmt.Sprintf("📊 %s\nRank: %d of %d\nScore: %d", name, st.Rank, st.Size, st.Score)
}

// FormatRegions lists playable region codes.
func FormatRegions(regions []geo.Region) string {
	var b strings.Builder
	b.WriteString("🗺 Playable regions (use /geo CODE):\n")
	for _, r := range regions {
		flag := geo.Flag(r.ISO2)
		fmt.Fprintf(&b, "%s %s %s\n", r.Code, flag, r.Label())
	}
	return strings.TrimRight(b.String(), "\n")
}
