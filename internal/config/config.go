package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// Database
	// ----------------------------
	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	MigrationsURL string `envconfig:"MIGRATIONS_URL" default:"file://migrations"`

	// ----------------------------
	// Delivery provider
	// ----------------------------
	Provider      string `envconfig:"EMAIL_PROVIDER" default:"resend"` // resend | smtp
	FromAddress   string `envconfig:"EMAIL_FROM" default:"TMT Next Gen Partners <onboarding@resend.dev>"`
	ResendAPIKey  string `envconfig:"RESEND_API_KEY" default:""`
	ResendBaseURL string `envconfig:"RESEND_BASE_URL" default:""`
	SMTPHost      string `envconfig:"SMTP_HOST" default:""`
	SMTPPort      int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser      string `envconfig:"SMTP_USER" default:""`
	SMTPPassword  string `envconfig:"SMTP_PASSWORD" default:""`

	// ----------------------------
	// Queue processing
	// ----------------------------
	BatchLimit       int           `envconfig:"QUEUE_BATCH_LIMIT" default:"50"`
	RateLimit        int           `envconfig:"RATE_LIMIT" default:"10"`
	StaleAfter       time.Duration `envconfig:"STALE_PROCESSING_AFTER" default:"10m"`
	EnrollmentWindow time.Duration `envconfig:"ENROLLMENT_WINDOW" default:"24h"`

	// ----------------------------
	// HTTP
	// ----------------------------
	APIPort     string `envconfig:"API_PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
}

func Load() (*Config, error) {
	// A missing .env file is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}
