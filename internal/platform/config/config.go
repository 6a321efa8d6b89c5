package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process-level configuration for the consent service.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string

	// Webhook delivery tuning.
	WebhookTimeout   time.Duration
	WebhookQueueSize int
	WebhookWorkers   int

	// Expiry sweep cadence.
	ExpirySweepInterval time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() Server {
	_ = godotenv.Load()

	cfg := Server{
		Addr:                ":8080",
		WebhookTimeout:      10 * time.Second,
		WebhookQueueSize:    256,
		WebhookWorkers:      4,
		ExpirySweepInterval: time.Hour,
	}

	if addr := os.Getenv("CONSENTD_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.DatabaseURL = os.Getenv("CONSENTD_DATABASE_URL")

	cfg.JWTSigningKey = os.Getenv("CONSENTD_JWT_SIGNING_KEY")
	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	if v := os.Getenv("CONSENTD_WEBHOOK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.WebhookTimeout = d
		}
	}
	if v := os.Getenv("CONSENTD_WEBHOOK_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WebhookQueueSize = n
		}
	}
	if v := os.Getenv("CONSENTD_WEBHOOK_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WebhookWorkers = n
		}
	}
	if v := os.Getenv("CONSENTD_EXPIRY_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ExpirySweepInterval = d
		}
	}

	return cfg
}
