package configs

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `envconfig:"SERVER"`
	Database  DatabaseConfig  `envconfig:"DATABASE"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	JWT       JWTConfig       `envconfig:"JWT"`
	Telegram  TelegramConfig  `envconfig:"TELEGRAM"`
	Limits    LimitsConfig    `envconfig:"LIMITS"`
	Log       LogConfig       `envconfig:"LOG"`
	Bootstrap BootstrapConfig `envconfig:"BOOTSTRAP"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    string `envconfig:"PORT" default:"8080"`
	OpsPort string `envconfig:"OPS_PORT" default:"9090"`
	Env     string `envconfig:"ENV" default:"development"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string `envconfig:"URL"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL string `envconfig:"URL"`
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret        string        `envconfig:"SECRET" required:"true"`
	TTL           time.Duration `envconfig:"TTL" default:"24h"`
	RefreshWindow time.Duration `envconfig:"REFRESH_WINDOW" default:"12h"`
	CookieSecure  bool          `envconfig:"COOKIE_SECURE" default:"false"`
}

// TelegramConfig holds the notification transport configuration
type TelegramConfig struct {
	BotToken string        `envconfig:"BOT_TOKEN"`
	ChatID   string        `envconfig:"CHAT_ID"`
	APIURL   string        `envconfig:"API_URL" default:"https://api.telegram.org"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"10s"`
	Timezone string        `envconfig:"TIMEZONE" default:"Asia/Jakarta"`
}

// LimitsConfig holds request rate limits
type LimitsConfig struct {
	WebhookPerMinute int `envconfig:"WEBHOOK_PER_MINUTE" default:"120"`
	AuthPerMinute    int `envconfig:"AUTH_PER_MINUTE" default:"20"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"text"`
}

// BootstrapConfig names an existing account to promote to superadmin on startup
type BootstrapConfig struct {
	SuperadminEmail string `envconfig:"SUPERADMIN_EMAIL"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if len(cfg.JWT.Secret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}
	if cfg.JWT.RefreshWindow >= cfg.JWT.TTL {
		return nil, errors.New("JWT_REFRESH_WINDOW must be shorter than JWT_TTL")
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c != nil && c.Server.Env == "production"
}
