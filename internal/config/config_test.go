package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear any existing env vars
	os.Unsetenv("PORT")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("ENV")
	os.Unsetenv("API_KEY")
	os.Unsetenv("SMTP_PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}

	if cfg.IngestPort != 0 {
		t.Errorf("expected ingest listener disabled, got %d", cfg.IngestPort)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.LogLevel)
	}

	if cfg.Env != "development" {
		t.Errorf("expected env 'development', got %s", cfg.Env)
	}

	if cfg.APIKey != "" {
		t.Errorf("expected no shared secret by default, got %q", cfg.APIKey)
	}

	if cfg.SMTPPort != 587 {
		t.Errorf("expected SMTP port 587, got %d", cfg.SMTPPort)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("PORT", "9000")
	os.Setenv("INGEST_PORT", "8181")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("ENV", "production")
	os.Setenv("API_KEY", "s3cret")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("INGEST_PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("ENV")
		os.Unsetenv("API_KEY")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}

	if cfg.IngestPort != 8181 {
		t.Errorf("expected ingest port 8181, got %d", cfg.IngestPort)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}

	if cfg.Env != "production" {
		t.Errorf("expected env 'production', got %s", cfg.Env)
	}

	if cfg.APIKey != "s3cret" {
		t.Errorf("expected shared secret 's3cret', got %s", cfg.APIKey)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	os.Setenv("PORT", "not-a-number")
	defer os.Unsetenv("PORT")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid PORT")
	}
}

func TestLoad_RecipientList(t *testing.T) {
	os.Setenv("SMTP_TO", "ops@example.com, alerts@example.com ,,")
	defer os.Unsetenv("SMTP_TO")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	want := []string{"ops@example.com", "alerts@example.com"}
	if len(cfg.SMTPTo) != len(want) {
		t.Fatalf("expected %d recipients, got %d", len(want), len(cfg.SMTPTo))
	}
	for i := range want {
		if cfg.SMTPTo[i] != want[i] {
			t.Errorf("recipient %d: expected %q, got %q", i, want[i], cfg.SMTPTo[i])
		}
	}
}
