package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/seed-restock-bot/internal/config"
	"github.com/akagifreeez/seed-restock-bot/internal/handlers"
	"github.com/akagifreeez/seed-restock-bot/internal/services"
	"github.com/akagifreeez/seed-restock-bot/internal/storage"
	"github.com/akagifreeez/seed-restock-bot/internal/tgbot"
	"github.com/akagifreeez/seed-restock-bot/internal/workers"
	"github.com/akagifreeez/seed-restock-bot/pkg/discord"
	"github.com/akagifreeez/seed-restock-bot/pkg/ratelimit"
)

func main() {
	adminToken := flag.Int64("admin-token", 0, "print an admin API token for the given Telegram user id and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if *adminToken != 0 {
		token, err := handlers.NewAdminToken(cfg.JWTSecret, *adminToken, "admin", 30*24*time.Hour)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create admin token")
		}
		fmt.Println(token)
		return
	}

	log.Info().Str("environment", cfg.Environment).Msg("Starting Seed Restock Bot")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to storage
	store, err := storage.Open(ctx, storage.Config{
		Driver:      cfg.StoreDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to open store")
	}
	defer store.Close()

	registry := services.NewRegistry(store)
	if err := registry.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load subscribers")
	}

	// Discord source channel
	reader, err := discord.NewClient(discord.Config{
		Token:     cfg.DiscordToken,
		ChannelID: cfg.DiscordChannelID,
		Timeout:   cfg.FetchTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Discord client")
	}

	extractor := services.NewExtractor()
	state := services.NewPollState()
	stock := services.NewStockService(reader, extractor, state, store, cfg.RecentScanLimit)

	// Telegram commands (long polling)
	api, err := tgbot.NewAPI(cfg.TelegramToken, cfg.SendTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}

	sendLimiter := ratelimit.New(cfg.RedisURL, cfg.SendRateLimit, time.Second, "telegram:send")
	if c, ok := sendLimiter.(io.Closer); ok {
		defer c.Close()
	}

	// Deliveries get their own client so SEND_TIMEOUT is not stretched by long polling
	sendAPI, err := tgbot.NewSendAPI(cfg.TelegramToken, cfg.SendTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}
	notifier := tgbot.NewNotifier(sendAPI, sendLimiter)
	broadcaster := services.NewBroadcaster(store, registry, notifier, services.BroadcastConfig{
		Concurrency: cfg.FanoutConcurrency,
		SendTimeout: cfg.SendTimeout,
	})
	hub := handlers.NewStreamHub()

	// Workers
	poller := workers.NewRestockPoller(reader, extractor, state, stock, workers.PollerConfig{
		Interval:     cfg.PollInterval,
		ErrorBackoff: cfg.PollErrorBackoff,
		FetchTimeout: cfg.FetchTimeout,
	}, broadcaster, hub)

	sessions := services.NewSessionStore(store, cfg.SessionTTL, cfg.SessionLimit)
	bot := tgbot.New(api, tgbot.Config{
		ChannelID:  cfg.TelegramChannelID,
		ChannelURL: cfg.TelegramChannelURL,
		AdminIDs:   cfg.TelegramAdminIDs,
	}, registry, sessions, stock, store, broadcaster)

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Start(ctx)
	}()
	go sessions.StartJanitor(ctx)

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		bot.Run(ctx)
	}()

	// HTTP API
	router := handlers.NewRouter(handlers.RouterConfig{
		Stock:     handlers.NewStockHandler(stock),
		Admin:     handlers.NewAdminHandler(store, broadcaster, registry.Len),
		Stream:    hub,
		JWTSecret: cfg.JWTSecret,
		AdminIDs:  cfg.TelegramAdminIDs,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Server error")
			cancel()
		}
	}()

	log.Info().Int("subscribers", registry.Len()).Msg("All workers started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		log.Info().Msg("Shutdown signal received, stopping...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	cancel()
	<-botDone
	// No new batch may be dispatched once the broadcaster is drained
	<-pollerDone

	// Let in-flight broadcasts finish before the store closes
	done := make(chan struct{})
	go func() {
		broadcaster.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Broadcasts still running at shutdown, cancelling")
		broadcaster.Close()
	}

	log.Info().Msg("Stopped")
}
