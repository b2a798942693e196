package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string
	DocumentKey string

	// Store backends. Postgres is selected whenever DatabaseURL is
	// set; it mirrors the original trip_data table and uses
	// LISTEN/NOTIFY for the change feed. Redis is the default.
	RedisURL    string
	DatabaseURL string

	// Gating. PassphraseHash, when set, is a bcrypt hash checked
	// instead of the plain passphrase.
	Passphrase     string
	PassphraseHash string
	SessionSecret  string
	SessionTTL     time.Duration

	// Autosave timing.
	Debounce      time.Duration
	EchoWindow    time.Duration
	WriteCooldown time.Duration
	WriteTimeout  time.Duration

	CORSOrigin string

	// Search - empty URL disables Meilisearch, leaving the in-memory
	// fallback.
	MeiliURL       string
	MeiliMasterKey string

	// Revision archive - empty disables it.
	ArchiveDir string

	// SMTP - empty host disables announcement notifications.
	SMTPHost       string
	SMTPPort       string
	SMTPUsername   string
	SMTPPassword   string
	SMTPFrom       string
	SMTPFromName   string
	SMTPRecipients string
}

func Load() Config {
	return Config{
		Addr:        getenv("API_ADDR", ":8790"),
		DocumentKey: getenv("TRIPBOARD_DOCUMENT_KEY", "disney-family-trip-2026"),

		RedisURL:    getenv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		Passphrase:     getenv("TRIPBOARD_PASSPHRASE", "Disney2026"),
		PassphraseHash: getenv("TRIPBOARD_PASSPHRASE_HASH", ""),
		SessionSecret:  getenv("TRIPBOARD_SESSION_SECRET", "tripboard-dev-secret"),
		SessionTTL:     time.Duration(getenvInt("TRIPBOARD_SESSION_TTL_SECONDS", 2592000)) * time.Second,

		Debounce:      time.Duration(getenvInt("TRIPBOARD_DEBOUNCE_MS", 1500)) * time.Millisecond,
		EchoWindow:    time.Duration(getenvInt("TRIPBOARD_ECHO_WINDOW_MS", 500)) * time.Millisecond,
		WriteCooldown: time.Duration(getenvInt("TRIPBOARD_WRITE_COOLDOWN_MS", 1000)) * time.Millisecond,
		WriteTimeout:  time.Duration(getenvInt("TRIPBOARD_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,

		CORSOrigin: getenv("TRIPBOARD_CORS_ORIGIN", "*"),

		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),

		ArchiveDir: getenv("TRIPBOARD_ARCHIVE_DIR", ""),

		// SMTP - empty by default, notifications disabled if not configured
		SMTPHost:       getenv("SMTP_HOST", ""),
		SMTPPort:       getenv("SMTP_PORT", "587"),
		SMTPUsername:   getenv("SMTP_USERNAME", ""),
		SMTPPassword:   getenv("SMTP_PASSWORD", ""),
		SMTPFrom:       getenv("SMTP_FROM", ""),
		SMTPFromName:   getenv("SMTP_FROM_NAME", "Tripboard"),
		SMTPRecipients: getenv("SMTP_RECIPIENTS", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
