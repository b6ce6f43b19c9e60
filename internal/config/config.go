package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort       string        `env:"HTTP_PORT" envDefault:"8080"`
	WebhookURL     string        `env:"WEBHOOK_URL,required,notEmpty"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"30s"`
	SessionSecret  string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	// Sesiones nuevas por IP dentro de SessionIssueWindow.
	SessionIssueLimit   int           `env:"SESSION_ISSUE_LIMIT" envDefault:"3"`
	SessionIssueWindow  time.Duration `env:"SESSION_ISSUE_WINDOW" envDefault:"24h"`
	ConversationIdleTTL time.Duration `env:"CONVERSATION_IDLE_TTL" envDefault:"2h"`
	// RateLimitStore elige donde persisten los contadores: memory, redis o postgres.
	RateLimitStore string `env:"RATE_LIMIT_STORE" envDefault:"memory"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPass       string `env:"SMTP_PASS"`
	SMTPFrom       string `env:"SMTP_FROM"`
	SMTPFromName   string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS     bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	ContactTo      string `env:"CONTACT_TO"`
	LogFile        string `env:"LOG_FILE"`
	TelemetryDir   string `env:"TELEMETRY_DIR"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
