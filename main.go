package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"satellite-trading-bot/config"
	"satellite-trading-bot/internal/ai/llm"
	"satellite-trading-bot/internal/api"
	"satellite-trading-bot/internal/auth"
	"satellite-trading-bot/internal/control"
	"satellite-trading-bot/internal/engine"
	"satellite-trading-bot/internal/events"
	"satellite-trading-bot/internal/exchange"
	"satellite-trading-bot/internal/logging"
	"satellite-trading-bot/internal/news"
	"satellite-trading-bot/internal/notification"
	"satellite-trading-bot/internal/orders"
	"satellite-trading-bot/internal/risk"
	"satellite-trading-bot/internal/screen"
	"satellite-trading-bot/internal/sentiment"
	"satellite-trading-bot/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		Output:     cfg.Logging.Output,
		JSONFormat: cfg.Logging.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	// Risk ledger store: PostgreSQL when configured, otherwise in-memory.
	// A restart with the memory store loses the day's halt state, so the
	// database is strongly recommended for live trading.
	var store risk.StatsStore
	if cfg.Database.Enabled {
		connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Database.User, cfg.Database.Password,
			cfg.Database.Host, cfg.Database.Port,
			cfg.Database.Database, cfg.Database.SSLMode)
		pgStore, err := risk.NewPostgresStore(ctx, connString)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		defer pgStore.Close()
		store = pgStore
		logger.Info("Daily stats store: postgres", "host", cfg.Database.Host)
	} else {
		store = risk.NewMemoryStore()
		logger.Warn("Daily stats store: in-memory, halt state will not survive a restart")
	}

	riskManager, err := risk.NewManager(cfg, store, eventBus)
	if err != nil {
		logger.Fatal("Failed to initialize risk manager", "error", err)
	}

	// Optional Redis: verdict cache + order group write-through.
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, continuing without it", "error", err)
			rdb = nil
		} else {
			logger.Info("Redis connected", "addr", cfg.Redis.Address)
		}
	}

	gateway, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize exchange gateway", "error", err)
	}

	// Startup probe: a gateway that cannot value the account must not trade.
	total, err := gateway.GetTotalValueUSDT()
	if err != nil {
		logger.Fatal("Exchange probe failed", "error", err)
	}
	logger.Info("Exchange gateway ready", "total_value_usdt", total)

	notifyManager := notification.NewManager(cfg.Notification.Enabled)
	if cfg.Notification.Enabled {
		if cfg.Notification.Telegram.Enabled {
			notifyManager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.Notification.Telegram.BotToken,
				ChatID:   cfg.Notification.Telegram.ChatID,
				Enabled:  cfg.Notification.Telegram.Enabled,
			}))
			logger.Info("Telegram notifications enabled")
		}
		if cfg.Notification.Discord.Enabled {
			notifyManager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
				WebhookURL: cfg.Notification.Discord.WebhookURL,
				Enabled:    cfg.Notification.Discord.Enabled,
			}))
			logger.Info("Discord notifications enabled")
		}
		notifyManager.WireBus(eventBus)
	}

	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	tracker := orders.NewGroupTracker(rdb, zl)
	if err := tracker.Restore(ctx); err != nil {
		// The engine reconciles the tracked set against the exchange on its
		// first cycle, so starting without the persisted groups is degraded,
		// not fatal.
		logger.Warn("Failed to restore exit groups from redis", "error", err)
	}

	llmClient := llm.NewClient(&llm.ClientConfig{
		Provider:    llm.Provider(cfg.AI.Provider),
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
	})
	analyzer := llm.NewNewsAnalyzer(llmClient, rdb)
	if analyzer.IsConfigured() {
		logger.Info("News analyzer ready", "provider", cfg.AI.Provider)
	} else {
		logger.Warn("News analyzer not configured, satellite trades disabled")
	}

	feed := news.NewFeed(cfg.News)
	gauge := sentiment.NewGauge()

	bot := engine.New(cfg, gateway, riskManager, screen.NewFilter(cfg), feed, analyzer, gauge, tracker, notifyManager, eventBus)

	// Admin HTTP surface.
	if cfg.Server.Enabled {
		var authService *auth.Service
		if cfg.Auth.AdminPasswordHash != "" {
			authService = auth.NewService(cfg.Auth)
		} else {
			logger.Warn("Admin API running without authentication; set auth.admin_password_hash")
		}
		server := api.NewServer(cfg, riskManager, tracker, eventBus, authService)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("HTTP server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	// Telegram command channel.
	if cfg.Notification.Telegram.Commands {
		listener := control.NewListener(control.ListenerConfig{
			BotToken: cfg.Notification.Telegram.BotToken,
			ChatID:   cfg.Notification.Telegram.ChatID,
		}, cfg, riskManager, tracker, eventBus)
		go listener.Run(ctx)
	}

	go bot.Run(ctx)
	logger.Info("Bot started",
		"pairs", fmt.Sprintf("%v", cfg.Engine.Pairs),
		"mock_mode", cfg.Exchange.MockMode)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received")
	cancel()
	// Give the engine loop a moment to finish its current cycle.
	time.Sleep(time.Second)
}

// buildGateway picks the exchange binding: the in-memory mock for dry runs,
// or the live client with credentials from Vault or the config file.
func buildGateway(ctx context.Context, cfg *config.Config, logger *logging.Logger) (exchange.Gateway, error) {
	if cfg.Exchange.MockMode {
		logger.Warn("MOCK MODE: no real orders will be placed")
		return exchange.NewMockClient(nil, map[string]float64{"USDT": 1000}), nil
	}

	apiKey, secretKey := cfg.Exchange.APIKey, cfg.Exchange.SecretKey
	if cfg.Vault.Enabled {
		vc, err := vault.NewClient(cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("creating vault client: %w", err)
		}
		keys, err := vc.LoadExchangeKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading exchange keys from vault: %w", err)
		}
		apiKey, secretKey = keys.APIKey, keys.SecretKey
		logger.Info("Exchange credentials loaded from Vault")
	}

	if apiKey == "" || secretKey == "" {
		return nil, fmt.Errorf("exchange credentials missing: set exchange.api_key/secret_key or enable vault")
	}

	return exchange.NewClient(apiKey, secretKey, cfg.Exchange.BaseURL), nil
}
