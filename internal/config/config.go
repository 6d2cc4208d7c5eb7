package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/imkarma/logiri/internal/errors"
)

// Config is the root configuration for a logiri workspace. It is built once
// at process start and passed to every component.
type Config struct {
	Version   int       `yaml:"version" mapstructure:"version"`
	DataDir   string    `yaml:"data_dir" mapstructure:"data_dir"`
	Database  string    `yaml:"database" mapstructure:"database"`
	RulesFile string    `yaml:"rules_file" mapstructure:"rules_file"`
	Site      Site      `yaml:"site" mapstructure:"site"`
	Google    Google    `yaml:"google" mapstructure:"google"`
	GA4       GA4       `yaml:"ga4" mapstructure:"ga4"`
	GSC       GSC       `yaml:"gsc" mapstructure:"gsc"`
	Ads       Ads       `yaml:"ads" mapstructure:"ads"`
	Semrush   Semrush   `yaml:"semrush" mapstructure:"semrush"`
	Assistant Assistant `yaml:"assistant" mapstructure:"assistant"`
	Ingest    Ingest    `yaml:"ingest" mapstructure:"ingest"`
	HTTP      HTTP      `yaml:"http" mapstructure:"http"`
	Log       Log       `yaml:"log" mapstructure:"log"`
	Team      []Member  `yaml:"team" mapstructure:"team"`
}

// Site describes the property being analysed.
type Site struct {
	Name      string `yaml:"name" mapstructure:"name"`
	URL       string `yaml:"url" mapstructure:"url"`
	Domain    string `yaml:"domain" mapstructure:"domain"`
	BrandTerm string `yaml:"brand_term" mapstructure:"brand_term"` // GSC branded segment filter
}

// Google holds the OAuth client used for GA4, GSC and Ads.
type Google struct {
	ClientID     string `yaml:"client_id,omitempty" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret,omitempty" mapstructure:"client_secret"`
	RefreshToken string `yaml:"refresh_token,omitempty" mapstructure:"refresh_token"`
	TokenURL     string `yaml:"token_url,omitempty" mapstructure:"token_url"` // empty = Google's endpoint
}

type GA4 struct {
	PropertyID string `yaml:"property_id,omitempty" mapstructure:"property_id"`
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

type GSC struct {
	SiteURL string `yaml:"site_url,omitempty" mapstructure:"site_url"`
	BaseURL string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

type Ads struct {
	DeveloperToken  string `yaml:"developer_token,omitempty" mapstructure:"developer_token"`
	CustomerID      string `yaml:"customer_id,omitempty" mapstructure:"customer_id"`
	LoginCustomerID string `yaml:"login_customer_id,omitempty" mapstructure:"login_customer_id"`
	APIVersion      string `yaml:"api_version" mapstructure:"api_version"`
	BaseURL         string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

type Semrush struct {
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Database string `yaml:"database" mapstructure:"database"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// Assistant selects and configures the LLM provider.
type Assistant struct {
	Name       string `yaml:"name" mapstructure:"name"`
	Provider   string `yaml:"provider" mapstructure:"provider"` // anthropic, google, openai
	Model      string `yaml:"model" mapstructure:"model"`
	APIKeyEnv  string `yaml:"api_key_env" mapstructure:"api_key_env"` // env var holding the key
	MaxTokens  int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSec int    `yaml:"timeout_sec,omitempty" mapstructure:"timeout_sec"`
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// DefaultTimeout returns the effective assistant timeout.
func (a Assistant) DefaultTimeout() time.Duration {
	if a.TimeoutSec > 0 {
		return time.Duration(a.TimeoutSec) * time.Second
	}
	return 60 * time.Second
}

// APIKey reads the key from the configured environment variable.
func (a Assistant) APIKey() string {
	if a.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(a.APIKeyEnv)
}

type Ingest struct {
	Parallel int           `yaml:"parallel" mapstructure:"parallel"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"` // per upstream HTTP call
}

type HTTP struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

type Log struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// Member is one person on the team roster used for workload and assignment.
type Member struct {
	Name  string `yaml:"name" mapstructure:"name"`
	Role  string `yaml:"role" mapstructure:"role"`
	Email string `yaml:"email,omitempty" mapstructure:"email"`
}

// DefaultConfig returns a starter config for a fresh workspace.
func DefaultConfig() *Config {
	return &Config{
		Version:   1,
		DataDir:   ".logiri",
		Database:  filepath.Join(".logiri", "logiri.db"),
		RulesFile: "system-prompt.txt",
		Site: Site{
			Name:      "Double D Trailers",
			URL:       "https://www.doubledtrailers.com/",
			Domain:    "doubledtrailers.com",
			BrandTerm: "double d",
		},
		Ads:     Ads{APIVersion: "v23"},
		Semrush: Semrush{Database: "us"},
		Assistant: Assistant{
			Name:      "Logiri",
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-6",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			MaxTokens: 2048,
		},
		Ingest: Ingest{Parallel: 4, Timeout: 30 * time.Second},
		HTTP: HTTP{
			Addr:         "127.0.0.1:8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Log: Log{
			Level:      "info",
			File:       filepath.Join(".logiri", "logs", "logiri.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Team: []Member{},
	}
}

// Save writes the config to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks the structural settings. Credentials are not required
// here; each source checks its own before doing network work.
func Validate(c *Config) error {
	if c == nil {
		return errors.ErrConfigNil
	}
	if c.Database == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "database path is required")
	}
	switch c.Assistant.Provider {
	case "anthropic", "google", "openai":
	default:
		return errors.Wrapf(errors.ErrConfigInvalid, "assistant.provider must be anthropic, google or openai, got %q", c.Assistant.Provider)
	}
	if c.Assistant.MaxTokens < 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "assistant.max_tokens must not be negative")
	}
	if c.Ingest.Parallel < 1 {
		return errors.Wrap(errors.ErrConfigInvalid, "ingest.parallel must be at least 1")
	}
	seen := map[string]bool{}
	for i, m := range c.Team {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return errors.Wrapf(errors.ErrConfigInvalid, "team[%d]: name is required", i)
		}
		if seen[name] {
			return errors.Wrapf(errors.ErrConfigInvalid, "team: duplicate member %q", name)
		}
		seen[name] = true
	}
	return nil
}

// Member returns the roster entry with the given name.
func (c *Config) Member(name string) (Member, bool) {
	for _, m := range c.Team {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// RosterNames lists team member names in roster order.
func (c *Config) RosterNames() []string {
	names := make([]string, 0, len(c.Team))
	for _, m := range c.Team {
		names = append(names, m.Name)
	}
	return names
}
