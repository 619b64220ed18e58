package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsAndRequired(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	unsetEnv(t, KeyAPIBaseURL)
	unsetEnv(t, KeyAPITimeout)
	unsetEnv(t, KeyAPIRetries)
	unsetEnv(t, KeyAPIBackoff)
	unsetEnv(t, KeyShutdownTimeout)
	unsetEnv(t, KeyAdminChatID)
	unsetEnv(t, KeyHTTPPort)
	unsetEnv(t, KeyLogLevel)
	unsetEnv(t, KeyLogDir)
	unsetEnv(t, KeyLogFile)

	t.Setenv(KeyTelegramToken, "token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if cfg.AppEnv != DefaultAppEnv {
		t.Fatalf("expected app env %s, got %s", DefaultAppEnv, cfg.AppEnv)
	}

	if cfg.APIBaseURL != DefaultAPIBaseURL {
		t.Fatalf("expected default api base url %s, got %s", DefaultAPIBaseURL, cfg.APIBaseURL)
	}

	if cfg.APITimeout != DefaultAPITimeoutSec*time.Second {
		t.Fatalf("expected default api timeout, got %s", cfg.APITimeout)
	}

	if cfg.APIRetries != DefaultAPIRetries {
		t.Fatalf("expected default retry count %d, got %d", DefaultAPIRetries, cfg.APIRetries)
	}

	if cfg.APIBackoff != 300*time.Millisecond {
		t.Fatalf("expected default backoff 300ms, got %s", cfg.APIBackoff)
	}

	if cfg.ShutdownTimeout != DefaultShutdownSec*time.Second {
		t.Fatalf("expected default shutdown timeout, got %s", cfg.ShutdownTimeout)
	}

	if cfg.AdminChatID != 0 {
		t.Fatalf("expected admin chat id to stay unset, got %d", cfg.AdminChatID)
	}

	if cfg.HTTPPort != DefaultHTTPPort {
		t.Fatalf("expected default http port %d, got %d", DefaultHTTPPort, cfg.HTTPPort)
	}

	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %s, got %s", DefaultLogLevel, cfg.LogLevel)
	}

	if cfg.LogFile != "" {
		t.Fatalf("expected no log file by default, got %s", cfg.LogFile)
	}
}

func TestLoadFailsOnMissingToken(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	unsetEnv(t, KeyTelegramToken)

	_, err := Load()
	if err == nil {
		t.Fatalf("expected missing required env to error")
	}

	if !strings.Contains(err.Error(), KeyTelegramToken) {
		t.Fatalf("expected error to mention missing %s, got %v", KeyTelegramToken, err)
	}
}

func TestLoadValidatesNumericOptions(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{KeyAPITimeout, "abc"},
		{KeyAPITimeout, "0"},
		{KeyAPIRetries, "-1"},
		{KeyAPIBackoff, "fast"},
		{KeyAPIBackoff, "-0.5"},
		{KeyShutdownTimeout, "-3"},
		{KeyAdminChatID, "not-a-number"},
		{KeyHTTPPort, "-1"},
	}

	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			unsetEnv(t, KeyAppEnv)
			t.Setenv(KeyTelegramToken, "token")
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}

			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("expected error to mention %s, got %v", tc.key, err)
			}
		})
	}
}

func TestLoadResolvesLogFileFromDir(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	unsetEnv(t, KeyLogFile)
	t.Setenv(KeyTelegramToken, "token")
	t.Setenv(KeyLogDir, "/var/log/bot")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	expected := filepath.Join("/var/log/bot", DefaultLogFileBasename)
	if cfg.LogFile != expected {
		t.Fatalf("expected log file %s, got %s", expected, cfg.LogFile)
	}
}

func TestLoadLogFileOverridesLogDir(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	t.Setenv(KeyTelegramToken, "token")
	t.Setenv(KeyLogDir, "/var/log/bot")
	t.Setenv(KeyLogFile, "/tmp/custom.log")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if cfg.LogFile != "/tmp/custom.log" {
		t.Fatalf("expected explicit log file to win, got %s", cfg.LogFile)
	}
}

func TestLoadUsesDotEnvInDevelopment(t *testing.T) {
	tmpDir := t.TempDir()
	dotenvContent := []byte(`
APP_ENV=development
TELEGRAM_TOKEN=dotenv-token
API_BASE_URL=http://api.internal:8000
API_TIMEOUT=7
API_RETRIES=1
API_BACKOFF=0.5
SHUTDOWN_TIMEOUT=20
ADMIN_CHAT_ID=77
HTTP_PORT=9091
LOG_LEVEL=debug
`)

	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), dotenvContent, 0o644); err != nil {
		t.Fatalf("failed to write dotenv: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}

	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})

	unsetEnv(t, KeyAppEnv)
	unsetEnv(t, KeyTelegramToken)
	unsetEnv(t, KeyAPIBaseURL)
	unsetEnv(t, KeyAPITimeout)
	unsetEnv(t, KeyAPIRetries)
	unsetEnv(t, KeyAPIBackoff)
	unsetEnv(t, KeyShutdownTimeout)
	unsetEnv(t, KeyAdminChatID)
	unsetEnv(t, KeyHTTPPort)
	unsetEnv(t, KeyLogLevel)
	unsetEnv(t, KeyLogDir)
	unsetEnv(t, KeyLogFile)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected dotenv-backed config to load, got error: %v", err)
	}

	if cfg.AppEnv != EnvDevelopment {
		t.Fatalf("expected development env from dotenv, got %s", cfg.AppEnv)
	}

	if cfg.TelegramToken != "dotenv-token" {
		t.Fatalf("expected token from dotenv, got %s", cfg.TelegramToken)
	}

	if cfg.APIBaseURL != "http://api.internal:8000" {
		t.Fatalf("expected api base url from dotenv, got %s", cfg.APIBaseURL)
	}

	if cfg.APITimeout != 7*time.Second {
		t.Fatalf("expected api timeout from dotenv, got %s", cfg.APITimeout)
	}

	if cfg.APIRetries != 1 {
		t.Fatalf("expected retry count from dotenv, got %d", cfg.APIRetries)
	}

	if cfg.APIBackoff != 500*time.Millisecond {
		t.Fatalf("expected backoff from dotenv, got %s", cfg.APIBackoff)
	}

	if cfg.ShutdownTimeout != 20*time.Second {
		t.Fatalf("expected shutdown timeout from dotenv, got %s", cfg.ShutdownTimeout)
	}

	if cfg.AdminChatID != 77 {
		t.Fatalf("expected admin chat id 77 from dotenv, got %d", cfg.AdminChatID)
	}

	if cfg.HTTPPort != 9091 {
		t.Fatalf("expected http port from dotenv, got %d", cfg.HTTPPort)
	}

	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level from dotenv, got %s", cfg.LogLevel)
	}
}

func TestFormatRedactedMasksToken(t *testing.T) {
	cfg := Config{
		TelegramToken:   "abcd1234secret",
		APIBaseURL:      DefaultAPIBaseURL,
		APITimeout:      DefaultAPITimeoutSec * time.Second,
		APIRetries:      DefaultAPIRetries,
		APIBackoff:      300 * time.Millisecond,
		ShutdownTimeout: DefaultShutdownSec * time.Second,
		AppEnv:          EnvDevelopment,
		LogLevel:        "debug",
		HTTPPort:        9000,
	}

	summary := FormatRedacted(cfg)

	if strings.Contains(summary, "1234secret") {
		t.Fatalf("expected telegram token to be redacted, got %s", summary)
	}

	if !strings.Contains(summary, KeyTelegramToken+"=abcd...redacted") {
		t.Fatalf("expected telegram token to show masked prefix, got %s", summary)
	}

	if !strings.Contains(summary, KeyAPIBaseURL+"="+DefaultAPIBaseURL) {
		t.Fatalf("expected api base url in summary, got %s", summary)
	}

	if !strings.Contains(summary, KeyLogFile+"=(stdout only)") {
		t.Fatalf("expected stdout-only log marker, got %s", summary)
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}
