package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(NewViper())
	if err != nil {
		t.Fatalf("FromViper failed: %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:5000/api" {
		t.Errorf("Unexpected base URL %q", cfg.APIBaseURL)
	}
	if cfg.APITimeout != 15*time.Second {
		t.Errorf("Unexpected timeout %v", cfg.APITimeout)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "./data/paytrack.db" {
		t.Errorf("Unexpected db path %q", cfg.DBPath)
	}
	if cfg.Location == nil || cfg.Location.String() != "Asia/Tashkent" {
		t.Errorf("Unexpected location %v", cfg.Location)
	}
	if cfg.FakeAPI {
		t.Error("Expected fake API to be off by default")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PAYTRACK_API_BASE_URL", "https://api.example.com/api/")
	t.Setenv("PAYTRACK_API_TIMEOUT", "3s")
	t.Setenv("PAYTRACK_HTTP_ADDR", ":9999")
	t.Setenv("PAYTRACK_TIMEZONE", "UTC")

	cfg, err := FromViper(NewViper())
	if err != nil {
		t.Fatalf("FromViper failed: %v", err)
	}

	if cfg.APIBaseURL != "https://api.example.com/api" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.APITimeout != 3*time.Second {
		t.Errorf("Unexpected timeout %v", cfg.APITimeout)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("Unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.Location != time.UTC {
		t.Errorf("Expected UTC, got %v", cfg.Location)
	}
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"relative base url", "PAYTRACK_API_BASE_URL", "/api"},
		{"zero timeout", "PAYTRACK_API_TIMEOUT", "0s"},
		{"unknown timezone", "PAYTRACK_TIMEZONE", "Mars/Olympus"},
		{"short csrf key", "PAYTRACK_HTTP_CSRF_KEY", "too-short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := FromViper(NewViper()); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PAYTRACK_DB_PATH=/tmp/from-dotenv.db\n"), 0o600); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	// godotenv does not override variables that are already set; t.Setenv
	// restores the original state when the test ends.
	t.Setenv("PAYTRACK_DB_PATH", "")
	os.Unsetenv("PAYTRACK_DB_PATH")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/from-dotenv.db" {
		t.Errorf("Expected db path from .env, got %q", cfg.DBPath)
	}
}

func TestLoadMissingDotEnv(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("Expected missing .env to be ignored, got %v", err)
	}
}
