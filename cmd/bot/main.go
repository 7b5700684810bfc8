// Package main is the entry point for the geoguess Telegram bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"geoguess-bot/internal/bot"
	"geoguess-bot/internal/config"
	"geoguess-bot/internal/game"
	"geoguess-bot/internal/geo"
	"geoguess-bot/internal/imagery"
	"geoguess-bot/internal/migrations"
	"geoguess-bot/internal/pkg/cooldown"
	"geoguess-bot/internal/pkg/db"
	"geoguess-bot/internal/repository"
	"geoguess-bot/internal/sampler"
	"geoguess-bot/internal/server"
	"geoguess-bot/internal/service"
)

func main() {
	// Missing .env is fine outside local development.
	_ = godotenv.Load(".env")

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && cfg.Log.Level != "" {
		zerolog.SetGlobalLevel(level)
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := migrations.Run(dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}
	log.Info().Msg("Database migrations applied")

	rdb, err := db.NewRedis(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	catalog, err := geo.LoadCatalog(cfg.Geo.BoundariesPath, cfg.Geo.RegionsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load region catalog")
	}
	log.Info().Int("regions", len(catalog.All())).Msg("Region catalog loaded")

	client, err := imagery.NewClient(cfg.Imagery)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create imagery client")
	}
	defer client.Close()

	var checker imagery.Checker = client
	limiter := cooldown.Limiter(cooldown.NewMemory())
	checkers := []server.Checker{dbPool}
	if rdb != nil {
		checker = imagery.NewCoverageCache(client, rdb.Client, cfg.Imagery.CacheTTL, cfg.Imagery.CachePrecision)
		limiter = cooldown.NewRedis(rdb.Client, "geoguess:cd:")
		checkers = append(checkers, rdb)
	}
	images := imagery.NewFramer(client, cfg.Imagery.CropMargin)

	smp, err := sampler.New(catalog, checker, sampler.Config{
		MaxAttempts:    cfg.Geo.MaxAttempts,
		FallbackRegion: cfg.Geo.FallbackRegion,
		CheckTimeout:   cfg.Imagery.CheckTimeout,
	}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sampler")
	}

	leaderboardRepo := repository.NewLeaderboardRepository(dbPool.Pool)
	registry := game.NewRegistry(cfg.Game.IdleTTL, cfg.Game.FinishedGrace)

	gameService := service.NewGameService(catalog, smp, images, leaderboardRepo, registry, limiter, service.GameSettings{
		Quota:         cfg.Game.InitialQuota,
		BaseScore:     cfg.Game.BaseScore,
		OptionCount:   cfg.Game.OptionCount,
		ImageSize:     cfg.Imagery.ImageSize,
		RoundCooldown: cfg.Cooldown.Round,
	})
	leaderboardService := service.NewLeaderboardService(leaderboardRepo, limiter, cfg.Cooldown.Leaderboard, cfg.Game.LeaderboardSize)

	telegramBot, err := bot.New(&bot.Dependencies{
		Config:             cfg,
		GameService:        gameService,
		LeaderboardService: leaderboardService,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	srv := server.New(cfg.Server.Addr, checkers...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		telegramBot.Start()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		telegramBot.Stop()
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(context.Background())
	})
	g.Go(func() error {
		return registry.Run(gctx, cfg.Game.ReapInterval)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Shutdown with error")
		return
	}
	log.Info().Msg("Bot stopped gracefully")
}
