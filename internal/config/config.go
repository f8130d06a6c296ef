// Package config loads console settings from defaults, an optional .env file
// and PAYTRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Tashkent must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. PAYTRACK_API_BASE_URL.
const EnvPrefix = "PAYTRACK"

// Config holds the resolved settings.
type Config struct {
	// APIBaseURL is the root of the remote API, used for login and every other call.
	APIBaseURL string

	// APITimeout bounds each API round trip.
	APITimeout time.Duration

	// HTTPAddr is the listen address of the web console.
	HTTPAddr string

	// CSRFKey signs the web console's CSRF cookie. It must be 32 bytes when set.
	CSRFKey string

	// SecureCookies marks cookies Secure, for consoles served over TLS.
	SecureCookies bool

	// DBPath is the sqlite file holding the token and the delivery log.
	DBPath string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// Location is used to render payment dates.
	Location *time.Location

	// FakeAPI starts an in-memory API instead of calling APIBaseURL.
	FakeAPI bool

	// FakeAdminUser and FakeAdminPassword are the fake API's credentials.
	FakeAdminUser     string
	FakeAdminPassword string
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("api.base_url", "http://localhost:5000/api")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.fake", false)
	v.SetDefault("api.fake_admin_user", "admin")
	v.SetDefault("api.fake_admin_password", "admin12345")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.csrf_key", "")
	v.SetDefault("http.secure_cookies", false)
	v.SetDefault("db.path", "./data/paytrack.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("timezone", "Asia/Tashkent")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads dotEnvPath if it exists, then resolves the configuration.
// An empty dotEnvPath means ".env".
func Load(dotEnvPath string) (*Config, error) {
	if dotEnvPath == "" {
		dotEnvPath = ".env"
	}

	// load .env if it exists (ignore if it does not)
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", dotEnvPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", dotEnvPath, err)
	}

	return FromViper(NewViper())
}

// FromViper resolves and checks the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		APIBaseURL:        strings.TrimRight(strings.TrimSpace(v.GetString("api.base_url")), "/"),
		APITimeout:        v.GetDuration("api.timeout"),
		HTTPAddr:          v.GetString("http.addr"),
		CSRFKey:           v.GetString("http.csrf_key"),
		SecureCookies:     v.GetBool("http.secure_cookies"),
		DBPath:            v.GetString("db.path"),
		LogLevel:          v.GetString("log.level"),
		FakeAPI:           v.GetBool("api.fake"),
		FakeAdminUser:     v.GetString("api.fake_admin_user"),
		FakeAdminPassword: v.GetString("api.fake_admin_password"),
	}

	if !cfg.FakeAPI {
		u, err := url.Parse(cfg.APIBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid api.base_url %q", cfg.APIBaseURL)
		}
	}
	if cfg.APITimeout <= 0 {
		return nil, fmt.Errorf("api.timeout must be positive, got %v", cfg.APITimeout)
	}
	if cfg.CSRFKey != "" && len(cfg.CSRFKey) != 32 {
		return nil, fmt.Errorf("http.csrf_key must be 32 bytes, got %d", len(cfg.CSRFKey))
	}
	if cfg.DBPath == "" {
		return nil, errors.New("db.path is required")
	}

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	cfg.Location = loc

	return cfg, nil
}
