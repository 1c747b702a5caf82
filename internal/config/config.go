package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting the engine reads. Nothing outside
// this struct affects core behaviour.
type Config struct {
	AppPort          string
	DBDSN            string
	RedisAddr        string
	RedisPass        string
	RedisDB          int
	JWTSecret        string
	KorapaySecretKey string // provider API key for initialize-charge calls
	WebhookSecret    string // shared secret for webhook HMAC verification
	IsProd           bool
}

// Load reads configuration from the environment, loading a .env file first
// if one is present.
func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	cfg := &Config{
		AppPort:          os.Getenv("APP_PORT"),
		DBDSN:            os.Getenv("DB_DSN"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPass:        os.Getenv("REDIS_PASS"),
		RedisDB:          redisDB,
		JWTSecret:        os.Getenv("JWT_SECRET"),
		KorapaySecretKey: os.Getenv("KORAPAY_SECRET_KEY"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		IsProd:           os.Getenv("IS_PROD") == "true",
	}

	if cfg.AppPort == "" {
		cfg.AppPort = "8080"
	}

	return cfg
}
