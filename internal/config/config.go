// Package config loads the exporter's runtime configuration from an optional
// YAML file with environment variable overrides. Environment always wins, so
// deployments can keep credentials out of the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formexport/pkg/render"
)

// Config holds all application configuration.
type Config struct {
	Auth     AuthConfig     `yaml:"auth"`
	API      APIConfig      `yaml:"api"`
	Export   ExportConfig   `yaml:"export"`
	Branding BrandingConfig `yaml:"branding"`
}

// AuthConfig carries the credentials used against the remote platform. The
// access token is required; the refresh callback URL is optional and only
// used by three-legged flows.
type AuthConfig struct {
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// APIConfig tunes the remote API client.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	RateBurst      int           `yaml:"rate_burst"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// ExportConfig tunes the export pipeline.
type ExportConfig struct {
	Concurrency          int    `yaml:"concurrency"`
	OutputDir            string `yaml:"output_dir"`
	IncludeRelationships bool   `yaml:"include_relationships"`
	IncludeAssets        bool   `yaml:"include_assets"`
	EnginePath           string `yaml:"engine_path"`
}

// BrandingConfig is the file representation of the PDF branding settings.
// LogoPath is resolved to bytes at load time.
type BrandingConfig struct {
	LogoPath     string `yaml:"logo_path"`
	LogoPosition string `yaml:"logo_position"`
	LogoSize     string `yaml:"logo_size"`
	Orientation  string `yaml:"orientation"`
	Margin       string `yaml:"margin"`
	PageNumbers  *bool  `yaml:"page_numbers"`
	Timestamp    *bool  `yaml:"timestamp"`
	Theme        string `yaml:"theme"`
	Variant      string `yaml:"variant"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Timeout:        30 * time.Second,
			RatePerSecond:  5,
			RateBurst:      10,
			RetryAttempts:  3,
			RetryBaseDelay: 500 * time.Millisecond,
		},
		Export: ExportConfig{
			Concurrency:          4,
			OutputDir:            ".",
			IncludeRelationships: true,
			IncludeAssets:        true,
		},
	}
}

// Load reads configuration with the following precedence, lowest first:
// built-in defaults, the YAML file at path (skipped when path is empty or
// the file does not exist), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file is fine, env and defaults still apply.
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Auth.AccessToken = getEnv("ACC_ACCESS_TOKEN", c.Auth.AccessToken)
	c.Auth.RefreshToken = getEnv("ACC_REFRESH_TOKEN", c.Auth.RefreshToken)
	c.Auth.ClientID = getEnv("ACC_CLIENT_ID", c.Auth.ClientID)
	c.Auth.ClientSecret = getEnv("ACC_CLIENT_SECRET", c.Auth.ClientSecret)

	c.API.BaseURL = getEnv("ACC_BASE_URL", c.API.BaseURL)
	c.API.Timeout = getEnvAsDuration("ACC_TIMEOUT", c.API.Timeout)
	c.API.RetryAttempts = getEnvAsInt("ACC_RETRY_ATTEMPTS", c.API.RetryAttempts)

	c.Export.Concurrency = getEnvAsInt("EXPORT_CONCURRENCY", c.Export.Concurrency)
	c.Export.OutputDir = getEnv("EXPORT_OUTPUT_DIR", c.Export.OutputDir)
	c.Export.EnginePath = getEnv(render.EnginePathEnv, c.Export.EnginePath)
}

// Validate reports configuration the exporter cannot start with.
func (c *Config) Validate() error {
	if c.Auth.AccessToken == "" {
		return fmt.Errorf("config: access token is required (set ACC_ACCESS_TOKEN)")
	}
	if c.Export.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1, got %d", c.Export.Concurrency)
	}
	return nil
}

// RenderBranding materialises the file settings into the renderer's branding
// value, reading the logo file when configured.
func (c *Config) RenderBranding() (render.Branding, error) {
	branding := render.DefaultBranding()

	b := c.Branding
	if b.LogoPath != "" {
		logo, err := os.ReadFile(b.LogoPath)
		if err != nil {
			return render.Branding{}, fmt.Errorf("config: read logo %s: %w", b.LogoPath, err)
		}
		branding.Logo = logo
	}
	if b.LogoPosition != "" {
		branding.LogoPosition = render.LogoPosition(b.LogoPosition)
	}
	if b.LogoSize != "" {
		branding.LogoSize = render.LogoSize(b.LogoSize)
	}
	if b.Orientation != "" {
		branding.Orientation = render.Orientation(b.Orientation)
	}
	if b.Margin != "" {
		branding.Margin = render.Margin(b.Margin)
	}
	if b.PageNumbers != nil {
		branding.PageNumbers = *b.PageNumbers
	}
	if b.Timestamp != nil {
		branding.Timestamp = *b.Timestamp
	}
	branding.Theme = b.Theme
	branding.Variant = b.Variant
	return branding, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
