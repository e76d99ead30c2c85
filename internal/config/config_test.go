package config

import (
	"log/slog"
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_PORT", "SMTP_PORT", "SMTP_ENABLED", "EXPORT_FORMATS", "LOG_LEVEL", "MAX_UPLOAD_BYTES"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.HTTPPort != 3030 || cfg.SMTPPort != 2030 || !cfg.SMTPEnabled {
		t.Errorf("ports = %d/%d enabled=%v", cfg.HTTPPort, cfg.SMTPPort, cfg.SMTPEnabled)
	}
	if cfg.MaxUploadBytes != 25<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if !reflect.DeepEqual(cfg.ExportFormats, []string{"xlsx", "pdf"}) {
		t.Errorf("ExportFormats = %v", cfg.ExportFormats)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", " 8080 ")
	t.Setenv("SMTP_ENABLED", "false")
	t.Setenv("EXPORT_FORMATS", "csv, ,pdf")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DOC_TITLE", "Case 42")
	cfg := Load()
	if cfg.HTTPPort != 8080 || cfg.SMTPEnabled {
		t.Errorf("HTTPPort = %d SMTPEnabled = %v", cfg.HTTPPort, cfg.SMTPEnabled)
	}
	if !reflect.DeepEqual(cfg.ExportFormats, []string{"csv", "pdf"}) {
		t.Errorf("ExportFormats = %v", cfg.ExportFormats)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.DocTitle != "Case 42" {
		t.Errorf("DocTitle = %q", cfg.DocTitle)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SMTP_PORT", "abc")
	t.Setenv("LOG_LEVEL", "chatty")
	cfg := Load()
	if cfg.SMTPPort != 2030 {
		t.Errorf("SMTPPort = %d", cfg.SMTPPort)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}
