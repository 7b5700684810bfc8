// Package config provides configuration management using viper.
// Values come from an optional config.yaml and are overridden by environment
// variables (BOT_TOKEN, DATABASE_HOST, IMAGERY_API_KEY, ...).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Imagery   ImageryConfig   `mapstructure:"imagery"`
	Geo       GeoConfig       `mapstructure:"geo"`
	Game      GameConfig      `mapstructure:"game"`
	Cooldown  CooldownConfig  `mapstructure:"cooldown"`
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Log       LogConfig       `mapstructure:"log"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds Redis connection configuration.
// An empty Addr disables Redis; coverage caching is skipped and cooldowns
// are kept in process memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ImageryConfig holds the street-level imagery provider settings.
type ImageryConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CheckTimeout   time.Duration `mapstructure:"check_timeout"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	ImageSize      string        `mapstructure:"image_size"`
	CropMargin     int           `mapstructure:"crop_margin"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	CachePrecision int           `mapstructure:"cache_precision"`
}

// GeoConfig holds geometry catalog and sampler configuration.
type GeoConfig struct {
	BoundariesPath string `mapstructure:"boundaries_path"`
	RegionsPath    string `mapstructure:"regions_path"`
	FallbackRegion string `mapstructure:"fallback_region"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
}

// GameConfig holds round configuration.
type GameConfig struct {
	InitialQuota    int           `mapstructure:"initial_quota"`
	BaseScore       int           `mapstructure:"base_score"`
	OptionCount     int           `mapstructure:"option_count"`
	IdleTTL         time.Duration `mapstructure:"idle_ttl"`
	FinishedGrace   time.Duration `mapstructure:"finished_grace"`
	ReapInterval    time.Duration `mapstructure:"reap_interval"`
	LeaderboardSize int           `mapstructure:"leaderboard_size"`
}

// CooldownConfig holds per-command rate limits.
type CooldownConfig struct {
	Round       time.Duration `mapstructure:"round"`
	Leaderboard time.Duration `mapstructure:"leaderboard"`
}

// ServerConfig holds the ops HTTP server configuration.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in configPath, the working directory and ./config.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. IMAGERY_API_KEY overrides imagery.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.poll_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "geoguess")
	v.SetDefault("database.name", "geoguess")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("imagery.base_url", "https://maps.googleapis.com/maps/api/streetview")
	v.SetDefault("imagery.timeout", "10s")
	v.SetDefault("imagery.check_timeout", "4s")
	v.SetDefault("imagery.max_idle_conns", 16)
	v.SetDefault("imagery.image_size", "640x550")
	v.SetDefault("imagery.crop_margin", 10)
	v.SetDefault("imagery.cache_ttl", "72h")
	v.SetDefault("imagery.cache_precision", 6)

	v.SetDefault("geo.boundaries_path", "data/boundaries.geojson")
	v.SetDefault("geo.regions_path", "data/regions.yaml")
	v.SetDefault("geo.fallback_region", "SGP")
	v.SetDefault("geo.max_attempts", 50)

	v.SetDefault("game.initial_quota", 10)
	v.SetDefault("game.base_score", 5000)
	v.SetDefault("game.option_count", 5)
	v.SetDefault("game.idle_ttl", "30m")
	v.SetDefault("game.finished_grace", "2m")
	v.SetDefault("game.reap_interval", "1m")
	v.SetDefault("game.leaderboard_size", 10)

	v.SetDefault("cooldown.round", "180s")
	v.SetDefault("cooldown.leaderboard", "30s")

	v.SetDefault("server.addr", ":9090")

	v.SetDefault("log.level", "info")
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
