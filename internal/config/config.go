// Package config handles errand configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/errand/config.yaml, /etc/errand/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "errand", "config.yaml"))
	}

	paths = append(paths, "/etc/errand/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all errand configuration.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	ToolSvc  ToolSvcConfig  `yaml:"tool_service"`
	GitHub   GitHubConfig   `yaml:"github"`
	Gmail    GmailConfig    `yaml:"gmail"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	DataDir  string         `yaml:"data_dir"`
	LogLevel string         `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// GeminiConfig defines the model service settings.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API. Resolved once at
	// startup and injected into the orchestrator; the core never reads
	// the environment itself.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier (default: gemini-2.0-flash).
	Model string `yaml:"model"`
}

// ToolSvcConfig defines where the tool executor service listens and how
// the dispatcher reaches it.
type ToolSvcConfig struct {
	// URL is the executor endpoint used by the dispatcher. When empty,
	// the in-process executor mounted on the main listener is used.
	URL string `yaml:"url"`

	// InvokeTimeout bounds a single tool invocation (default: 30s).
	InvokeTimeout time.Duration `yaml:"invoke_timeout"`
}

// GitHubConfig defines the GitHub connector settings.
type GitHubConfig struct {
	// Token is a static API token. Takes precedence over a token stored
	// by the OAuth flow.
	Token string `yaml:"token"`

	// Owner is the default repository owner for unqualified repo references.
	Owner string `yaml:"owner"`

	// URL is the API base URL (defaults to https://api.github.com).
	URL string `yaml:"url"`
}

// GmailConfig defines the mail connector settings.
type GmailConfig struct {
	// From is the sender address (e.g., "Name <addr@gmail.com>").
	From string `yaml:"from"`

	// Username and Password authenticate against the SMTP server.
	// For Gmail this is an app password, not the account password.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Host and Port identify the SMTP server (default: smtp.gmail.com:587).
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// StartTLS selects STARTTLS over implicit TLS (port 465). Forced on
	// for port 587, which only speaks STARTTLS.
	StartTLS bool `yaml:"starttls"`
}

// OAuthConfig holds client credentials for the connector OAuth flows.
type OAuthConfig struct {
	GitHub OAuthClient `yaml:"github"`
	Google OAuthClient `yaml:"google"`

	// RedirectBase is the externally visible base URL for callbacks
	// (e.g., "https://errand.example.com").
	RedirectBase string `yaml:"redirect_base"`
}

// OAuthClient is one provider's client credential pair.
type OAuthClient struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Configured reports whether the client credentials are present.
func (c OAuthClient) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Port: 8080},
		Gemini:  GeminiConfig{Model: "gemini-2.0-flash"},
		DataDir: "data",
	}
}

// ApplyDefaults fills in missing optional fields with sensible values.
func (c *Config) ApplyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.ToolSvc.InvokeTimeout <= 0 {
		c.ToolSvc.InvokeTimeout = 30 * time.Second
	}
	if c.GitHub.URL == "" {
		c.GitHub.URL = "https://api.github.com"
	}
	if c.Gmail.Host == "" {
		c.Gmail.Host = "smtp.gmail.com"
	}
	if c.Gmail.Port == 0 {
		c.Gmail.Port = 587
	}
	// 587 is the submission port and always speaks STARTTLS; implicit
	// TLS on it would hang at dial.
	if c.Gmail.Port == 587 {
		c.Gmail.StartTLS = true
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
}
