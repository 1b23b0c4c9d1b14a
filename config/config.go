// ABOUTME: Runtime configuration for the sdr binary
// ABOUTME: Merges defaults, an optional TOML file, .env and environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"

	"github.com/mb2470/onsite-affiliate-sdr-agent/mail"
)

// ErrMissingCredentials marks a command that needs a collaborator nobody configured.
var ErrMissingCredentials = errors.New("missing credentials")

const (
	DefaultTimezone           = "America/New_York"
	DefaultServeSchedule      = "*/15 * * * *"
	DefaultListenAddr         = ":9090"
	DefaultBounceLookbackDays = 7
)

type Config struct {
	DBPath    string          `toml:"db_path"`
	Timezone  string          `toml:"timezone"`
	Logging   LoggingConfig   `toml:"logging"`
	Anthropic AnthropicConfig `toml:"anthropic"`
	Gmail     GmailConfig     `toml:"gmail"`
	Serve     ServeConfig     `toml:"serve"`

	// BounceLookbackDays bounds how far back check-bounces and auto look for failure notices.
	BounceLookbackDays int `toml:"bounce_lookback_days"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

type AnthropicConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type GmailConfig struct {
	// OAuthCredentials is the raw JSON credential blob (token, refresh_token, token_uri, client_id, client_secret, scopes).
	OAuthCredentials string `toml:"oauth_credentials"`
	FromEmail        string `toml:"from_email"`
	FromName         string `toml:"from_name"`
	ClientID         string `toml:"client_id"`
	ClientSecret     string `toml:"client_secret"`
}

type ServeConfig struct {
	Schedule   string `toml:"schedule"`
	ListenAddr string `toml:"listen_addr"`
}

// DefaultPath returns $XDG_CONFIG_HOME/sdr/config.toml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "sdr", "config.toml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Timezone: DefaultTimezone,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Serve: ServeConfig{
			Schedule:   DefaultServeSchedule,
			ListenAddr: DefaultListenAddr,
		},
		BounceLookbackDays: DefaultBounceLookbackDays,
	}
}

// Load builds the configuration. An empty path falls back to DefaultPath,
// which may be absent; an explicit path must exist. A .env file in the
// working directory is loaded first and never overrides variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SDR_DB_PATH":             &cfg.DBPath,
		"SDR_TIMEZONE":            &cfg.Timezone,
		"SDR_LOG_LEVEL":           &cfg.Logging.Level,
		"SDR_LOG_FORMAT":          &cfg.Logging.Format,
		"SDR_LOG_OUTPUT":          &cfg.Logging.Output,
		"SDR_SERVE_SCHEDULE":      &cfg.Serve.Schedule,
		"SDR_LISTEN_ADDR":         &cfg.Serve.ListenAddr,
		"ANTHROPIC_API_KEY":       &cfg.Anthropic.APIKey,
		"ANTHROPIC_MODEL":         &cfg.Anthropic.Model,
		"GMAIL_OAUTH_CREDENTIALS": &cfg.Gmail.OAuthCredentials,
		"GMAIL_FROM_EMAIL":        &cfg.Gmail.FromEmail,
		"GMAIL_FROM_NAME":         &cfg.Gmail.FromName,
		"GOOGLE_CLIENT_ID":        &cfg.Gmail.ClientID,
		"GOOGLE_CLIENT_SECRET":    &cfg.Gmail.ClientSecret,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("SDR_BOUNCE_LOOKBACK_DAYS"); ok && v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SDR_BOUNCE_LOOKBACK_DAYS %q: %w", v, err)
		}
		cfg.BounceLookbackDays = days
	}
	return nil
}

func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Timezone == "" {
		cfg.Timezone = d.Timezone
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = d.Logging.Output
	}
	if cfg.Serve.Schedule == "" {
		cfg.Serve.Schedule = d.Serve.Schedule
	}
	if cfg.Serve.ListenAddr == "" {
		cfg.Serve.ListenAddr = d.Serve.ListenAddr
	}
	if cfg.BounceLookbackDays == 0 {
		cfg.BounceLookbackDays = d.BounceLookbackDays
	}
}

// Validate returns every problem found in the configuration.
func (c *Config) Validate() []error {
	var errs []error

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}

	if c.BounceLookbackDays < 1 {
		errs = append(errs, fmt.Errorf("bounce_lookback_days must be >= 1 (got %d)", c.BounceLookbackDays))
	}

	if c.Gmail.OAuthCredentials != "" {
		if _, err := mail.ParseCredentials(c.Gmail.OAuthCredentials); err != nil {
			errs = append(errs, fmt.Errorf("invalid GMAIL_OAUTH_CREDENTIALS: %w", err))
		}
	}

	return errs
}

// Location resolves the reference timezone for send windows.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// RequireGenerator fails unless an Anthropic API key is configured.
func (c *Config) RequireGenerator() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ErrMissingCredentials)
	}
	return nil
}

// GmailCredentials returns credentials from GMAIL_OAUTH_CREDENTIALS, or the
// token saved by `sdr auth` when the variable is unset.
func (c *Config) GmailCredentials() (*mail.Credentials, error) {
	if c.Gmail.OAuthCredentials != "" {
		creds, err := mail.ParseCredentials(c.Gmail.OAuthCredentials)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
		}
		return creds, nil
	}

	creds, err := mail.LoadCredentials(mail.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("%w: GMAIL_OAUTH_CREDENTIALS is not set and no saved token was found (run 'sdr auth')", ErrMissingCredentials)
	}
	return creds, nil
}

// RequireTransport fails unless Gmail credentials and a sender address are available.
func (c *Config) RequireTransport() error {
	if _, err := c.GmailCredentials(); err != nil {
		return err
	}
	if c.Gmail.FromEmail == "" {
		return fmt.Errorf("%w: GMAIL_FROM_EMAIL is not set", ErrMissingCredentials)
	}
	return nil
}
