package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REMINDD_WEBHOOK_URL", "http://hook.local/notify")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WebhookURL != "http://hook.local/notify" {
		t.Fatalf("webhook: %q", cfg.WebhookURL)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("poll interval: %s", cfg.PollInterval)
	}
	if cfg.NotifyConcurrency != 3 {
		t.Fatalf("concurrency: %d", cfg.NotifyConcurrency)
	}
	if cfg.Timezone != "Asia/Tokyo" {
		t.Fatalf("timezone: %q", cfg.Timezone)
	}
	if _, err := cfg.Location(); err != nil {
		t.Fatalf("location: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REMINDD_WEBHOOK_URL", "http://hook.local/notify")
	t.Setenv("REMINDD_DB_PATH", "/tmp/test.db")
	t.Setenv("REMINDD_POLL_INTERVAL", "10s")
	t.Setenv("REMINDD_NOTIFY_CONCURRENCY", "5")
	t.Setenv("REMINDD_STALE_CLAIM_AFTER", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Fatalf("db path: %q", cfg.DBPath)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Fatalf("poll interval: %s", cfg.PollInterval)
	}
	if cfg.NotifyConcurrency != 5 {
		t.Fatalf("concurrency: %d", cfg.NotifyConcurrency)
	}
	if cfg.StaleClaimAfter != 2*time.Minute {
		t.Fatalf("stale claim: %s", cfg.StaleClaimAfter)
	}
}

func TestLoadRequiresWebhook(t *testing.T) {
	t.Setenv("REMINDD_WEBHOOK_URL", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "REMINDD_WEBHOOK_URL") {
		t.Fatalf("expected webhook requirement, got %v", err)
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	t.Setenv("REMINDD_WEBHOOK_URL", "http://hook.local/notify")
	t.Setenv("REMINDD_TIMEZONE", "Mars/Olympus")

	if _, err := Load(); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestIgnoredMalformedOverrides(t *testing.T) {
	t.Setenv("REMINDD_WEBHOOK_URL", "http://hook.local/notify")
	t.Setenv("REMINDD_POLL_INTERVAL", "soon")
	t.Setenv("REMINDD_NOTIFY_CONCURRENCY", "-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval != 30*time.Second || cfg.NotifyConcurrency != 3 {
		t.Fatalf("defaults not kept: %+v", cfg)
	}
}
