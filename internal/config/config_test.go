package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GEMINI_API_KEY", "key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("logLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.AlbumDebounce != 1200*time.Millisecond {
		t.Errorf("albumDebounce = %v", cfg.AlbumDebounce)
	}
	if cfg.MaxConcurrent != 4 {
		t.Errorf("maxConcurrent = %d", cfg.MaxConcurrent)
	}
	if cfg.GeminiBaseURL != "https://generativelanguage.googleapis.com" {
		t.Errorf("geminiBaseURL = %q", cfg.GeminiBaseURL)
	}
	if cfg.DefaultLanguage != "en" {
		t.Errorf("defaultLanguage = %q, want en", cfg.DefaultLanguage)
	}
}

func TestLoadRequiredVars(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("GEMINI_API_KEY", "key")
	if _, err := Load(); err == nil {
		t.Error("missing telegram token should fail")
	}

	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Error("missing gemini key should fail")
	}
}

func TestLoadClampsAndOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_CONCURRENT", "0")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "-5")
	t.Setenv("DEFAULT_LANGUAGE", "AR")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MaxConcurrent != 1 {
		t.Errorf("maxConcurrent = %d, want clamped to 1", cfg.MaxConcurrent)
	}
	if cfg.RequestTimeout != 180*time.Second {
		t.Errorf("requestTimeout = %v, want default restored", cfg.RequestTimeout)
	}
	if cfg.DefaultLanguage != "ar" {
		t.Errorf("defaultLanguage = %q, want ar", cfg.DefaultLanguage)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("logLevel = %q, want lowercased", cfg.LogLevel)
	}
}

func TestLoadRejectsUnknownLanguage(t *testing.T) {
	setRequired(t)
	t.Setenv("DEFAULT_LANGUAGE", "fr")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultLanguage != "en" {
		t.Errorf("defaultLanguage = %q, want fallback to en", cfg.DefaultLanguage)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("X_INT", "not a number")
	if got := getEnvInt("X_INT", 7); got != 7 {
		t.Errorf("getEnvInt = %d, want fallback", got)
	}

	t.Setenv("X_BOOL", "yes please")
	if got := getEnvBool("X_BOOL", true); got != true {
		t.Errorf("getEnvBool = %v, want fallback", got)
	}

	t.Setenv("X_STR", "   ")
	if got := getEnv("X_STR", "fallback"); got != "fallback" {
		t.Errorf("getEnv = %q, want fallback on blank", got)
	}
}
