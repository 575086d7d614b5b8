package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/classifier"
	"github.com/sparktutor-go/internal/config"
	"github.com/sparktutor-go/internal/extract"
	"github.com/sparktutor-go/internal/i18n"
	"github.com/sparktutor-go/internal/middleware"
	"github.com/sparktutor-go/internal/server"
	"github.com/sparktutor-go/internal/services/ai"
	"github.com/sparktutor-go/internal/services/cache"
	"github.com/sparktutor-go/internal/services/storage"
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

	log.Info("Starting SparkTutor API server...")

	// Initialize metrics
	metrics := middleware.NewMetrics()

	// Initialize classifier
	var zeroShot classifier.ZeroShotClassifier
	if cfg.Classifier.ZeroShot.Enabled {
		if cfg.Classifier.ZeroShot.APIToken == "" {
			log.Warn("Zero-shot classification enabled but HF_API_TOKEN is not set")
		}
		zeroShot = classifier.NewHuggingFaceClassifier(&cfg.Classifier.ZeroShot, log)
	}
	clf := classifier.New(&cfg.Classifier, zeroShot, log, metrics.RecordZeroShotError)

	// Initialize model router
	router, err := ai.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize model router")
	}

	// Initialize text extraction
	extractor := extract.NewService(&cfg.OpenRouter, &cfg.Upload, log)

	// Initialize cache
	cacheService := cache.NewCache(&cfg.Cache, log)

	// Initialize storage
	storageManager, err := storage.NewManager(&cfg.Storage, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Initialize i18n
	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Start metrics server if enabled
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

	srv := server.New(cfg, clf, router, extractor, cacheService, storageManager, rateLimiter, localizer, metrics, log)

	if err := srv.Run(); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}

	log.Info("Server stopped")
}
