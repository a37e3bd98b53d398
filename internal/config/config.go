// Package config loads runtime configuration from the environment, with an
// optional .env file for local runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath            string
	ListenAddr        string
	WebhookURL        string
	OracleURL         string
	OracleTimeout     time.Duration
	PollInterval      time.Duration
	NotifyConcurrency int
	StaleClaimAfter   time.Duration
	Timezone          string
	AuditLogPath      string
	UnhealthyAfter    int
}

func Default() Config {
	return Config{
		DBPath:            "reminders.db",
		ListenAddr:        ":8791",
		OracleTimeout:     15 * time.Second,
		PollInterval:      30 * time.Second,
		NotifyConcurrency: 3,
		StaleClaimAfter:   5 * time.Minute,
		Timezone:          "Asia/Tokyo",
		AuditLogPath:      "logs/oracle_fallback.log",
		UnhealthyAfter:    5,
	}
}

// Load reads the .env file when present, then applies REMINDD_* environment
// overrides on top of the defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if v, ok := getEnvStr("REMINDD_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := getEnvStr("REMINDD_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := getEnvStr("REMINDD_WEBHOOK_URL"); ok {
		cfg.WebhookURL = v
	}
	if v, ok := getEnvStr("REMINDD_ORACLE_URL"); ok {
		cfg.OracleURL = v
	}
	if v, ok := getEnvDuration("REMINDD_ORACLE_TIMEOUT"); ok {
		cfg.OracleTimeout = v
	}
	if v, ok := getEnvDuration("REMINDD_POLL_INTERVAL"); ok {
		cfg.PollInterval = v
	}
	if v, ok := getEnvInt("REMINDD_NOTIFY_CONCURRENCY"); ok && v > 0 {
		cfg.NotifyConcurrency = v
	}
	if v, ok := getEnvDuration("REMINDD_STALE_CLAIM_AFTER"); ok {
		cfg.StaleClaimAfter = v
	}
	if v, ok := getEnvStr("REMINDD_TIMEZONE"); ok {
		cfg.Timezone = v
	}
	if v, ok := getEnvStr("REMINDD_AUDIT_LOG_PATH"); ok {
		cfg.AuditLogPath = v
	}
	if v, ok := getEnvInt("REMINDD_UNHEALTHY_AFTER"); ok && v > 0 {
		cfg.UnhealthyAfter = v
	}

	if cfg.WebhookURL == "" {
		return Config{}, errors.New("config: REMINDD_WEBHOOK_URL is required")
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, fmt.Errorf("config: invalid timezone %q: %w", cfg.Timezone, err)
	}
	return cfg, nil
}

// Location resolves the single fixed timezone the system operates in.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func getEnvStr(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", false
	}
	return raw, true
}

func getEnvInt(name string) (int, bool) {
	raw, ok := getEnvStr(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func getEnvDuration(name string) (time.Duration, bool) {
	raw, ok := getEnvStr(name)
	if !ok {
		return 0, false
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
