package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string   `env:"PORT" envDefault:"5200"`
	DatabaseURL    string   `env:"DATABASE_URL,required,notEmpty"`
	ServiceToken   string   `env:"STUDY_SERVICE_TOKEN,required,notEmpty"` // bearer token the gateway presents
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`

	// Day boundary for users whose profile carries no timezone.
	DefaultTimezone string        `env:"DEFAULT_TIMEZONE" envDefault:"UTC"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	StreakDecayInterval time.Duration `env:"STREAK_DECAY_INTERVAL" envDefault:"1h"`

	Sync SyncConfig
	R2   R2Config
}

// SyncConfig points at the upstream profile service. The sync worker is
// disabled when URL is empty.
type SyncConfig struct {
	URL      string        `env:"SYNC_SERVICE_URL"`
	Path     string        `env:"SYNC_SERVICE_PATH" envDefault:"/api/v1/public/profiles"`
	Interval time.Duration `env:"SYNC_INTERVAL" envDefault:"1m"`
}

// R2Config holds Cloudflare R2 credentials for badge artwork.
type R2Config struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
}

func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.Bucket != ""
}

// Location resolves DefaultTimezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.DefaultTimezone)
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; variables may come straight from the environment.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", cfg.DefaultTimezone, err)
	}
	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("STORE_TIMEOUT must be positive, got %s", cfg.StoreTimeout)
	}
	return &cfg, nil
}
