package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "SGP", cfg.Geo.FallbackRegion)
	assert.Equal(t, 50, cfg.Geo.MaxAttempts)
	assert.Equal(t, 10, cfg.Game.InitialQuota)
	assert.Equal(t, 5000, cfg.Game.BaseScore)
	assert.Equal(t, 5, cfg.Game.OptionCount)
	assert.Equal(t, "640x550", cfg.Imagery.ImageSize)
	assert.Equal(t, 4*time.Second, cfg.Imagery.CheckTimeout)
	assert.Equal(t, 180*time.Second, cfg.Cooldown.Round)
	assert.Equal(t, 30*time.Second, cfg.Cooldown.Leaderboard)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	body := []byte(`
bot:
  token: file-token
geo:
  fallback_region: PXA
  max_attempts: 20
imagery:
  api_key: from-file
whitelist:
  chats: [-100, -200]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0o600))

	t.Setenv("IMAGERY_API_KEY", "from-env")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Bot.Token)
	assert.Equal(t, "PXA", cfg.Geo.FallbackRegion)
	assert.Equal(t, 20, cfg.Geo.MaxAttempts)
	assert.Equal(t, "from-env", cfg.Imagery.APIKey)
	assert.Equal(t, []int64{-100, -200}, cfg.Whitelist.Chats)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("geo: [unclosed"), 0o600))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestIsChatAllowed(t *testing.T) {
	tests := []struct {
		name   string
		chats  []int64
		chatID int64
		want   bool
	}{
		{"empty whitelist allows all", nil, 42, true},
		{"listed chat", []int64{1, 42}, 42, true},
		{"unlisted chat", []int64{1, 2}, 42, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Whitelist: WhitelistConfig{Chats: tt.chats}}
			assert.Equal(t, tt.want, cfg.IsChatAllowed(tt.chatID))
		})
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{Admin: AdminConfig{IDs: []int64{7, 9}}}
	assert.True(t, cfg.IsAdmin(7))
	assert.False(t, cfg.IsAdmin(8))
	assert.False(t, (&Config{}).IsAdmin(7), "no admins configured")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "postgres://u:p@db:5433/n?sslmode=disable", d.DSN())
}
