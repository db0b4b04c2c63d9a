// ABOUTME: Configuration loading and parsing for support-gateway
// ABOUTME: Supports YAML files with environment variable expansion and validation

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the complete support-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Twilio   TwilioConfig   `yaml:"twilio"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TwilioConfig holds Twilio account credentials and sender configuration.
// Credentials are normally injected via ${TWILIO_ACCOUNT_SID} style
// environment references in the config file.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"` // e.g. "whatsapp:+14155238886"

	// BaseURL overrides the Twilio API endpoint (used in tests)
	BaseURL string `yaml:"base_url"`

	// ValidateSignatures enables X-Twilio-Signature verification on
	// inbound webhooks. Requires PublicURL to be set to the externally
	// visible webhook URL prefix.
	ValidateSignatures bool   `yaml:"validate_signatures"`
	PublicURL          string `yaml:"public_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
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

	if c.Twilio.AccountSID == "" {
		return fmt.Errorf("twilio.account_sid is required")
	}
	if c.Twilio.AuthToken == "" {
		return fmt.Errorf("twilio.auth_token is required")
	}
	if c.Twilio.From == "" {
		return fmt.Errorf("twilio.from is required")
	}

	if c.Twilio.ValidateSignatures && c.Twilio.PublicURL == "" {
		return fmt.Errorf("twilio.public_url is required when validate_signatures is enabled")
	}

	return nil
}
