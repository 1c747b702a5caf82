package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nexgo-app/nexgo-engine/internal/config"
	"github.com/nexgo-app/nexgo-engine/internal/database"
	"github.com/nexgo-app/nexgo-engine/internal/handlers"
	"github.com/nexgo-app/nexgo-engine/internal/payments"
	"github.com/nexgo-app/nexgo-engine/internal/routes"
)

func main() {
	cfg := config.Load()

	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	db, err := database.Open(cfg.DBDSN)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	if cfg.KorapaySecretKey == "" || cfg.WebhookSecret == "" {
		logrus.Fatal("KORAPAY_SECRET_KEY and WEBHOOK_SECRET must be set")
	}

	app := &handlers.Handlers{
		DB:       db,
		RDB:      rdb,
		Cfg:      cfg,
		Payments: payments.NewClient(cfg.KorapaySecretKey, cfg.WebhookSecret),
	}

	// Hourly sweep of expired delivery codes.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		logrus.Info("Background worker started: sweeping expired delivery codes")

		for range ticker.C {
			app.SweepExpiredOTPs()
		}
	}()

	router := routes.SetupRouter(app)

	logrus.Infof("Starting NexGo engine on port %s...", cfg.AppPort)
	if err := router.Run(":" + cfg.AppPort); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}
