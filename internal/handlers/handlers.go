package handlers

import (
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/nexgo-app/nexgo-engine/internal/config"
	"github.com/nexgo-app/nexgo-engine/internal/payments"
)

// Handlers holds all dependencies for the engine's request handlers.
type Handlers struct {
	DB       *sql.DB
	RDB      *redis.Client
	Cfg      *config.Config
	Payments *payments.Client
}
