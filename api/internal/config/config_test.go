package config

import (
	"os"
	"testing"
	"time"
)

func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestParseDefaults(t *testing.T) {
	unset(t, "ARTVISION_API_BASE_URL", "API_BASE_URL", "ARTVISION_REQUEST_TIMEOUT", "REQUEST_TIMEOUT",
		"ARTVISION_LEGACY_ROUTES", "LEGACY_ROUTES", "ARTVISION_MAX_IMAGE_PIXELS", "MAX_IMAGE_PIXELS", "PORT")

	c, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.APIBaseURL != "http://127.0.0.1:8000" {
		t.Errorf("APIBaseURL = %q", c.APIBaseURL)
	}
	if c.RequestTimeout != 60*time.Second {
		t.Errorf("RequestTimeout = %s", c.RequestTimeout)
	}
	if c.LegacyRoutes {
		t.Error("LegacyRoutes should default to false")
	}
	if c.MaxImagePixels != 18_000_000 {
		t.Errorf("MaxImagePixels = %d", c.MaxImagePixels)
	}
	if c.Port != "8080" {
		t.Errorf("Port = %q", c.Port)
	}
}

func TestParseRejectsEmptyBaseURL(t *testing.T) {
	t.Setenv("ARTVISION_API_BASE_URL", "  ")
	if _, err := Parse(); err == nil {
		t.Fatal("expected empty base url to be rejected")
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("ARTVISION_API_BASE_URL", " https://artvision.example.com/ ")
	t.Setenv("ARTVISION_REQUEST_TIMEOUT", "15s")
	t.Setenv("ARTVISION_LEGACY_ROUTES", "true")
	t.Setenv("ARTVISION_MAX_IMAGE_PIXELS", "-5")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("PORT", "9090")

	c, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.APIBaseURL != "https://artvision.example.com" {
		t.Errorf("APIBaseURL = %q", c.APIBaseURL)
	}
	if c.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %s", c.RequestTimeout)
	}
	if !c.LegacyRoutes {
		t.Error("LegacyRoutes = false")
	}
	if c.MaxImagePixels != 0 {
		t.Errorf("MaxImagePixels = %d, want clamp to 0", c.MaxImagePixels)
	}
	if c.TelegramBotToken != "123:abc" || c.Port != "9090" {
		t.Errorf("bot settings = %q %q", c.TelegramBotToken, c.Port)
	}
	if c.LogLevel != "info" || c.AuditRetention != 2160*time.Hour {
		t.Errorf("defaults not applied: %q %s", c.LogLevel, c.AuditRetention)
	}
}

func TestParseRejectsNegativeTimeout(t *testing.T) {
	t.Setenv("ARTVISION_API_BASE_URL", "http://localhost:8000")
	t.Setenv("ARTVISION_REQUEST_TIMEOUT", "-1s")
	if _, err := Parse(); err == nil {
		t.Fatal("expected error")
	}
}
