package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPPort        int
	SMTPPort        int
	SMTPEnabled     bool
	DBPath          string
	AuthSecret      string
	SMTPAuthEnabled bool
	SMTPUsername    string
	SMTPPassword    string
	MaxUploadBytes  int64
	ExportFormats   []string
	DocTitle        string
	DocBrand        string
	LogLevel        slog.Level
}

func Load() Config {
	return Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 3030),
		SMTPPort:        getEnvInt("SMTP_PORT", 2030),
		SMTPEnabled:     getEnvBool("SMTP_ENABLED", true),
		DBPath:          getEnvString("DB_PATH", ""),
		AuthSecret:      getEnvString("AUTH_SECRET", ""),
		SMTPAuthEnabled: getEnvBool("SMTP_AUTH_ENABLED", false),
		SMTPUsername:    getEnvString("SMTP_USERNAME", "emlconvert"),
		SMTPPassword:    getEnvString("SMTP_PASSWORD", "emlconvert"),
		MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_BYTES", 25<<20)),
		ExportFormats:   getEnvList("EXPORT_FORMATS", []string{"xlsx", "pdf"}),
		DocTitle:        getEnvString("DOC_TITLE", "Email Export"),
		DocBrand:        getEnvString("DOC_BRAND", "emlconvert"),
		LogLevel:        getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
