package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config carries everything the server needs at startup. Values come from
// the environment (optionally a .env file); command-line flags may override
// the basics afterwards.
type Config struct {
	DBPath     string
	Addr       string
	UploadsDir string
	LogPath    string

	// Stock flag thresholds for reports and urgency triage.
	LowStockThreshold float64
	ExpiryWindowDays  int

	// Token accepted by the sync import/export endpoints. Empty disables them.
	SyncToken string

	// Outbound sync target for push/pull runs.
	SyncRemoteURL string

	// SMTP relay for decision notices. Empty host means log-only notices.
	SMTPAddr string
	SMTPFrom string
	SMTPUser string
	SMTPPass string
}

// Load reads .env if present, then the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	} else {
		log.Debug().Msg("loaded .env file")
	}

	cfg := &Config{
		DBPath:            envStr("PANTRY_DB", "pantry.sqlite3"),
		Addr:              envStr("PANTRY_ADDR", ":8080"),
		UploadsDir:        envStr("PANTRY_UPLOADS_DIR", "uploads"),
		LogPath:           envStr("PANTRY_LOG", ""),
		LowStockThreshold: envFloat("PANTRY_LOW_STOCK_THRESHOLD", 5),
		ExpiryWindowDays:  envInt("PANTRY_EXPIRY_WINDOW_DAYS", 14),
		SyncToken:         envStr("PANTRY_SYNC_TOKEN", ""),
		SyncRemoteURL:     envStr("PANTRY_SYNC_REMOTE_URL", ""),
		SMTPAddr:          envStr("PANTRY_SMTP_ADDR", ""),
		SMTPFrom:          envStr("PANTRY_SMTP_FROM", "pantry@localhost"),
		SMTPUser:          envStr("PANTRY_SMTP_USER", ""),
		SMTPPass:          envStr("PANTRY_SMTP_PASS", ""),
	}

	if cfg.LowStockThreshold < 0 {
		return nil, fmt.Errorf("PANTRY_LOW_STOCK_THRESHOLD must not be negative")
	}
	if cfg.ExpiryWindowDays < 0 {
		return nil, fmt.Errorf("PANTRY_EXPIRY_WINDOW_DAYS must not be negative")
	}
	return cfg, nil
}

// ExpiryWindow returns the expiring-soon horizon as a duration.
func (c *Config) ExpiryWindow() time.Duration {
	return time.Duration(c.ExpiryWindowDays) * 24 * time.Hour
}

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("not an integer, using default")
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("not a number, using default")
		return def
	}
	return f
}
