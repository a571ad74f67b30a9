package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectID         string
	Port              string
	RedisAddr         string
	SessionKey        []byte
	CSRFKey           []byte
	CookieSecure      bool
	SessionTimeout    time.Duration
	SessionWarning    time.Duration
	DiscordWebhookURL string
	PublicBaseURL     string
	GeminiAPIKey      string
	GeminiModel       string
	ImportSources     []string
	ImportSchedule    string
	ExpirySchedule    string
	MaxStoredDeals    int
	AllowedDomains    []string
	LogLevel          slog.Level
	LogFile           string
	LogMaxSizeMB      int
	LogMaxBackups     int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required but not set")
	}

	discordWebhookURL := os.Getenv("DISCORD_WEBHOOK_URL")
	if discordWebhookURL == "" {
		slog.Warn("DISCORD_WEBHOOK_URL not set, moderation notifications will be skipped")
	}

	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	if geminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, imported deals will not be categorized")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	sessionKey, err := keyFromEnv("SESSION_KEY", 32)
	if err != nil {
		return nil, err
	}
	csrfKey, err := keyFromEnv("CSRF_KEY", 32)
	if err != nil {
		return nil, err
	}

	sessionTimeout, err := durationFromEnv("SESSION_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	sessionWarning, err := durationFromEnv("SESSION_WARNING", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	if sessionWarning >= sessionTimeout {
		return nil, fmt.Errorf("SESSION_WARNING (%s) must be shorter than SESSION_TIMEOUT (%s)", sessionWarning, sessionTimeout)
	}

	maxStoredDeals, err := intFromEnv("MAX_STORED_DEALS", 2000)
	if err != nil {
		return nil, err
	}
	logMaxSize, err := intFromEnv("LOG_MAX_SIZE_MB", 10)
	if err != nil {
		return nil, err
	}
	logMaxBackups, err := intFromEnv("LOG_MAX_BACKUPS", 3)
	if err != nil {
		return nil, err
	}

	var logLevel slog.Level
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}

	allowedDomains := listFromEnv("ALLOWED_IMPORT_DOMAINS")
	importSources := listFromEnv("IMPORT_SOURCES")
	if len(importSources) == 0 {
		slog.Warn("IMPORT_SOURCES not set, partner import is disabled")
	}

	return &Config{
		ProjectID:         projectID,
		Port:              port,
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		SessionKey:        sessionKey,
		CSRFKey:           csrfKey,
		CookieSecure:      os.Getenv("COOKIE_SECURE") == "true",
		SessionTimeout:    sessionTimeout,
		SessionWarning:    sessionWarning,
		DiscordWebhookURL: discordWebhookURL,
		PublicBaseURL:     strings.TrimSuffix(os.Getenv("PUBLIC_BASE_URL"), "/"),
		GeminiAPIKey:      geminiAPIKey,
		GeminiModel:       stringFromEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		ImportSources:     importSources,
		ImportSchedule:    stringFromEnv("IMPORT_SCHEDULE", "@every 1h"),
		ExpirySchedule:    stringFromEnv("EXPIRY_SCHEDULE", "@every 15m"),
		MaxStoredDeals:    maxStoredDeals,
		AllowedDomains:    allowedDomains,
		LogLevel:          logLevel,
		LogFile:           os.Getenv("LOG_FILE"),
		LogMaxSizeMB:      logMaxSize,
		LogMaxBackups:     logMaxBackups,
	}, nil
}

func stringFromEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}

func intFromEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func listFromEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// keyFromEnv decodes a base64 key. Without one, a random key is generated,
// which invalidates cookies on every restart.
func keyFromEnv(key string, size int) ([]byte, error) {
	v := os.Getenv(key)
	if v == "" {
		slog.Warn("Key not set, generating an ephemeral one", "key", key)
		b := make([]byte, size)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", key, err)
		}
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("invalid %s: want %d bytes, got %d", key, size, len(b))
	}
	return b, nil
}
