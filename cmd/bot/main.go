package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/classifier"
	"github.com/sparktutor-go/internal/config"
	"github.com/sparktutor-go/internal/i18n"
	"github.com/sparktutor-go/internal/middleware"
	"github.com/sparktutor-go/internal/services/ai"
	"github.com/sparktutor-go/internal/services/cache"
	"github.com/sparktutor-go/internal/services/storage"
	"github.com/sparktutor-go/internal/telegram"
	"github.com/sparktutor-go/pkg/logger"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting SparkTutor Telegram bot...")

	if cfg.Telegram.Token == "" {
		log.Fatal("Telegram token is required (set TELEGRAM_BOT_TOKEN)")
	}

	// Initialize bot
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}

	bot.Debug = cfg.Logging.Level == "debug"
	log.WithField("username", bot.Self.UserName).Info("Bot authorized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics
	metrics := middleware.NewMetrics()

	// Initialize classifier
	var zeroShot classifier.ZeroShotClassifier
	if cfg.Classifier.ZeroShot.Enabled {
		zeroShot = classifier.NewHuggingFaceClassifier(&cfg.Classifier.ZeroShot, log)
	}
	clf := classifier.New(&cfg.Classifier, zeroShot, log, metrics.RecordZeroShotError)

	// Initialize model router
	router, err := ai.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize model router")
	}

	// Initialize storage
	storageManager, err := storage.NewManager(&cfg.Storage, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}

	// Initialize cache
	cacheService := cache.NewCache(&cfg.Cache, log)

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Initialize i18n
	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	handler := telegram.NewHandler(
		cfg,
		bot,
		clf,
		router,
		storageManager,
		cacheService,
		rateLimiter,
		localizer,
		metrics,
		log,
	)

	// Use long polling
	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Telegram.UpdateTimeout
	updates := bot.GetUpdatesChan(u)
	log.Info("Using long polling")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Main bot loop
	go func() {
		for update := range updates {
			if err := handler.HandleUpdate(ctx, &update); err != nil {
				log.WithError(err).Error("Failed to handle update")
			}
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("Shutdown signal received")

	bot.StopReceivingUpdates()
	cancel()

	// Give in-flight answers time to finish
	time.Sleep(2 * time.Second)

	log.Info("Bot stopped")
}
