// Package server composes the studio HTTP API: the authoring endpoints,
// the GitHub sync endpoints, the async job API, and the public hosted
// catalog, behind shared identity, CORS, and caching middleware.
package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	// Type is sqlite, postgres, or mysql.
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// AuthConfig selects how request identities are established.
type AuthConfig struct {
	// Mode is "header" (X-Remote-User, for development and trusted
	// proxies) or "jwt".
	Mode string `yaml:"mode"`

	// JWT settings, used when Mode is "jwt".
	UserClaim     string `yaml:"userClaim"`
	PublicKeyPath string `yaml:"publicKeyPath"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
}

// GithubConfig configures the GitHub sync client.
type GithubConfig struct {
	Token  string `yaml:"token"`
	APIURL string `yaml:"apiUrl"`
	Branch string `yaml:"branch"`
}

// Config is the top-level server configuration, loaded from YAML with
// environment variable overrides for secrets.
type Config struct {
	Listen string `yaml:"listen"`

	// PublicBaseURL is the externally visible base URL of this server,
	// used for hosted catalog links. No trailing slash.
	PublicBaseURL string `yaml:"publicBaseUrl"`

	// CORSAllowedOrigins lists origins allowed to call the API. Empty
	// disables CORS headers.
	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`

	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Github   GithubConfig   `yaml:"github"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen: ":8080",
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "studio.db",
		},
		Auth: AuthConfig{
			Mode:      "header",
			UserClaim: "sub",
		},
		Github: GithubConfig{
			Branch: "main",
		},
	}
}

// LoadConfig reads configuration from a YAML file, overlaying defaults.
// An empty path returns the defaults. GITHUB_TOKEN and DATABASE_DSN
// environment variables override their file counterparts so secrets can
// stay out of config files.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.Github.Token = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	switch cfg.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("unknown database type %q (expected sqlite, postgres, or mysql)", cfg.Database.Type)
	}
	switch cfg.Auth.Mode {
	case "header", "jwt":
	default:
		return nil, fmt.Errorf("unknown auth mode %q (expected header or jwt)", cfg.Auth.Mode)
	}

	return cfg, nil
}
