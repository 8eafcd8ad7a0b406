// ABOUTME: Configuration loading and parsing for dxchart
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves a field empty
const (
	DefaultTokenTTL  = 168 * time.Hour // 7 days
	DefaultOpTimeout = 5 * time.Second
)

// Config represents the complete dxchart configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Admin    AdminConfig    `yaml:"admin"`
	Notify   NotifyConfig   `yaml:"notify"`
	TextGen  TextGenConfig  `yaml:"textgen"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr       string   `yaml:"http_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`

	OpTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	OpTimeoutRaw string `yaml:"op_timeout"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`

	TokenTTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TokenTTLRaw string `yaml:"token_ttl"`
}

// AdminConfig holds the provisioned administrator account.
// The account is created (pre-approved, elevated role) at startup if absent.
type AdminConfig struct {
	BootstrapUsername string `yaml:"bootstrap_username"`
	BootstrapPassword string `yaml:"bootstrap_password"`
}

// NotifyConfig holds registration notification configuration
type NotifyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	EmailFrom string `yaml:"email_from"`
	EmailTo   string `yaml:"email_to"`
	SMSTo     string `yaml:"sms_to"`
}

// TextGenConfig holds the text generation backend configuration
type TextGenConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	// A bootstrap admin needs both halves of the credential
	if c.Admin.BootstrapUsername != "" && c.Admin.BootstrapPassword == "" {
		return fmt.Errorf("admin.bootstrap_password is required when admin.bootstrap_username is set")
	}

	if c.Notify.Enabled && c.Notify.BaseURL == "" {
		return fmt.Errorf("notify.base_url is required when notify is enabled")
	}

	if c.TextGen.Enabled {
		if c.TextGen.BaseURL == "" {
			return fmt.Errorf("textgen.base_url is required when textgen is enabled")
		}
		if c.TextGen.Model == "" {
			return fmt.Errorf("textgen.model is required when textgen is enabled")
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Database.OpTimeoutRaw != "" {
		cfg.Database.OpTimeout, err = time.ParseDuration(cfg.Database.OpTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing op_timeout %q: %w", cfg.Database.OpTimeoutRaw, err)
		}
	}

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	if cfg.TextGen.TimeoutRaw != "" {
		cfg.TextGen.Timeout, err = time.ParseDuration(cfg.TextGen.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing textgen timeout %q: %w", cfg.TextGen.TimeoutRaw, err)
		}
	}

	return nil
}

// applyDefaults fills in zero-valued optional fields
func applyDefaults(cfg *Config) {
	if cfg.Database.OpTimeout == 0 {
		cfg.Database.OpTimeout = DefaultOpTimeout
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = DefaultTokenTTL
	}
	if cfg.TextGen.Timeout == 0 {
		cfg.TextGen.Timeout = 30 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
