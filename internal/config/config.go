// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken   = "TELEGRAM_TOKEN"
	KeyAPIBaseURL      = "API_BASE_URL"
	KeyAPITimeout      = "API_TIMEOUT"
	KeyAPIRetries      = "API_RETRIES"
	KeyAPIBackoff      = "API_BACKOFF"
	KeyShutdownTimeout = "SHUTDOWN_TIMEOUT"
	KeyAdminChatID     = "ADMIN_CHAT_ID"
	KeyAppEnv          = "APP_ENV"
	KeyLogLevel        = "LOG_LEVEL"
	KeyLogDir          = "LOG_DIR"
	KeyLogFile         = "LOG_FILE"
	KeyHTTPPort        = "HTTP_PORT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv          = EnvProduction
	DefaultLogLevel        = "info"
	DefaultAPIBaseURL      = "http://localhost:8000"
	DefaultAPITimeoutSec   = 5
	DefaultAPIRetries      = 3
	DefaultAPIBackoffSec   = 0.3
	DefaultShutdownSec     = 10
	DefaultHTTPPort        = 8080
	DefaultLogFileBasename = "bot.log"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyAPIBaseURL,
		Example:     DefaultAPIBaseURL,
		Default:     DefaultAPIBaseURL,
		Description: "Base address of the admin backend API.",
	},
	{
		Key:         KeyAPITimeout,
		Example:     strconv.Itoa(DefaultAPITimeoutSec),
		Default:     strconv.Itoa(DefaultAPITimeoutSec),
		Description: "Per-call timeout for backend API requests, in seconds.",
	},
	{
		Key:         KeyAPIRetries,
		Example:     strconv.Itoa(DefaultAPIRetries),
		Default:     strconv.Itoa(DefaultAPIRetries),
		Description: "How many times a failed backend call is retried before giving up.",
	},
	{
		Key:         KeyAPIBackoff,
		Example:     "0.3",
		Default:     "0.3",
		Description: "Backoff factor between retries, in seconds; delay doubles per attempt.",
	},
	{
		Key:         KeyShutdownTimeout,
		Example:     strconv.Itoa(DefaultShutdownSec),
		Default:     strconv.Itoa(DefaultShutdownSec),
		Description: "Grace period for in-flight handlers during shutdown, in seconds.",
	},
	{
		Key:         KeyAdminChatID,
		Example:     "123456789",
		Description: "Optional admin chat ID override for diagnostics.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyLogDir,
		Example:     "/var/log/bot",
		Description: "Optional directory for rotated log files; file name defaults to " + DefaultLogFileBasename + ".",
	},
	{
		Key:         KeyLogFile,
		Example:     "/var/log/bot/bot.log",
		Description: "Optional explicit log file path; takes precedence over " + KeyLogDir + ".",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken   string
	APIBaseURL      string
	APITimeout      time.Duration
	APIRetries      int
	APIBackoff      time.Duration
	ShutdownTimeout time.Duration
	AdminChatID     int64
	AppEnv          string
	LogLevel        string
	LogFile         string
	HTTPPort        int
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:          firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:   strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		APIBaseURL:      firstNonEmpty(strings.TrimSpace(os.Getenv(KeyAPIBaseURL)), DefaultAPIBaseURL),
		APITimeout:      DefaultAPITimeoutSec * time.Second,
		APIRetries:      DefaultAPIRetries,
		APIBackoff:      time.Duration(DefaultAPIBackoffSec * float64(time.Second)),
		ShutdownTimeout: DefaultShutdownSec * time.Second,
		LogLevel:        firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:        DefaultHTTPPort,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	if cfg.TelegramToken == "" {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", KeyTelegramToken)
	}

	if err := applySeconds(KeyAPITimeout, &cfg.APITimeout); err != nil {
		return Config{}, err
	}
	if err := applySeconds(KeyShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}

	if raw := strings.TrimSpace(os.Getenv(KeyAPIRetries)); raw != "" {
		retries, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyAPIRetries, parseErr)
		}
		if retries < 0 {
			return Config{}, fmt.Errorf("%s must not be negative", KeyAPIRetries)
		}
		cfg.APIRetries = retries
	}

	if raw := strings.TrimSpace(os.Getenv(KeyAPIBackoff)); raw != "" {
		backoff, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyAPIBackoff, parseErr)
		}
		if backoff < 0 {
			return Config{}, fmt.Errorf("%s must not be negative", KeyAPIBackoff)
		}
		cfg.APIBackoff = time.Duration(backoff * float64(time.Second))
	}

	if raw := strings.TrimSpace(os.Getenv(KeyAdminChatID)); raw != "" {
		adminID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyAdminChatID, parseErr)
		}
		cfg.AdminChatID = adminID
	}

	cfg.LogFile = resolveLogFile()

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	return cfg, nil
}

// FormatRedacted renders the resolved configuration with the token masked,
// suitable for startup diagnostics.
func FormatRedacted(c Config) string {
	token := "(unset)"
	if c.TelegramToken != "" {
		token = redactToken(c.TelegramToken)
	}

	logFile := c.LogFile
	if logFile == "" {
		logFile = "(stdout only)"
	}

	return strings.Join([]string{
		fmt.Sprintf("%s=%s", KeyTelegramToken, token),
		fmt.Sprintf("%s=%s", KeyAPIBaseURL, c.APIBaseURL),
		fmt.Sprintf("%s=%s", KeyAPITimeout, c.APITimeout),
		fmt.Sprintf("%s=%d", KeyAPIRetries, c.APIRetries),
		fmt.Sprintf("%s=%s", KeyAPIBackoff, c.APIBackoff),
		fmt.Sprintf("%s=%s", KeyShutdownTimeout, c.ShutdownTimeout),
		fmt.Sprintf("%s=%s", KeyAppEnv, c.AppEnv),
		fmt.Sprintf("%s=%s", KeyLogLevel, c.LogLevel),
		fmt.Sprintf("%s=%s", KeyLogFile, logFile),
		fmt.Sprintf("%s=%d", KeyHTTPPort, c.HTTPPort),
	}, "\n")
}

func redactToken(token string) string {
	if len(token) <= 4 {
		return "...redacted"
	}
	return token[:4] + "...redacted"
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

func applySeconds(key string, target *time.Duration) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if seconds <= 0 {
		return fmt.Errorf("%s must be greater than 0", key)
	}

	*target = time.Duration(seconds) * time.Second
	return nil
}

func resolveLogFile() string {
	if file := strings.TrimSpace(os.Getenv(KeyLogFile)); file != "" {
		return file
	}

	if dir := strings.TrimSpace(os.Getenv(KeyLogDir)); dir != "" {
		return filepath.Join(dir, DefaultLogFileBasename)
	}

	return ""
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
