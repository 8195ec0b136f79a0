package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-tracker/internal/api/http"
	"github.com/i474232898/weather-tracker/internal/config"
	"github.com/i474232898/weather-tracker/internal/cycle"
	"github.com/i474232898/weather-tracker/internal/publish"
	"github.com/i474232898/weather-tracker/internal/scheduler"
	"github.com/i474232898/weather-tracker/internal/store"
	"github.com/i474232898/weather-tracker/internal/weather"
	"github.com/i474232898/weather-tracker/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Settings file with the user-editable collection snapshot.
	settingsFile := config.NewSettingsFile(cfg.SettingsFile)
	if err := settingsFile.EnsureExists(config.DefaultSettings()); err != nil {
		log.Fatalf("failed to prepare settings file: %v", err)
	}
	settings, err := settingsFile.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Providers with resilience (circuit breaker, optional backoff).
	provs, err := providers.Build(cfg.Providers, providers.Options{
		Client:     httpClient,
		MaxRetries: cfg.HTTPMaxRetries,
	})
	if err != nil {
		log.Fatalf("failed to build providers: %v", err)
	}
	agg := weather.NewAggregator(provs, weather.AggregatorOptions{
		Timeout:     cfg.ProviderTimeout,
		Parallelism: cfg.ProviderParallelism,
	})
	log.Printf("INFO: providers: %v", agg.Providers())

	// File-backed history tables.
	st := store.New(cfg.Location)

	// Optional MQTT fan-out of appended batches.
	opts := cycle.Options{}
	if cfg.MQTTBroker != "" {
		pub, err := publish.Connect(publish.Config{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		})
		if err != nil {
			log.Printf("ERROR: MQTT publishing disabled: %v", err)
		} else {
			defer pub.Close()
			opts.Publisher = pub
		}
	}

	collection := cycle.New(settingsFile, st, agg, opts)

	// Scheduler that periodically runs the collection cycle.
	sched := scheduler.New(collection.RunLogged, settings.Interval(), cfg.Location)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-tracker",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-tracker",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Settings:  settingsFile,
		Store:     st,
		Cycle:     collection,
		Scheduler: sched,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
