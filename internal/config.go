package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "24h" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Badger   BadgerConfig      `yaml:"badger"`
	Sessions SessionsConfig    `yaml:"sessions"`
	Auth     AuthConfig        `yaml:"auth"`
	Web      WebConfig         `yaml:"web"`
	Sweep    SweepConfig       `yaml:"sweep"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Badger.Validate(); err != nil {
		return err
	}
	if err := c.Sessions.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Sweep.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// BadgerConfig holds the path to the Badger store that backs posts and images.
type BadgerConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the Badger configuration.
func (c *BadgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SessionsConfig holds the session database configuration.
type SessionsConfig struct {
	Path string   `yaml:"path"`
	TTL  Duration `yaml:"ttl"`
}

// Validate validates the sessions configuration.
func (c *SessionsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	); err != nil {
		return err
	}
	if c.TTL <= 0 {
		return fmt.Errorf("sessions: ttl must be positive")
	}
	return nil
}

// AuthConfig holds the admin credential. Sessions are only issued against
// this password; possession of a cookie alone never authenticates.
type AuthConfig struct {
	Password string `yaml:"password"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Password, validation.Required),
	)
}

// WebConfig holds presentation settings. An empty TemplatesPath serves the
// embedded templates; a directory enables on-disk templates with hot reload.
type WebConfig struct {
	TemplatesPath string `yaml:"templates_path"`
}

// SweepConfig controls the orphaned-image reconciliation loop.
type SweepConfig struct {
	Interval Duration `yaml:"interval"`
	Grace    Duration `yaml:"grace"`
}

// Validate validates the sweep configuration.
func (c *SweepConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("sweep: interval must be positive")
	}
	if c.Grace <= 0 {
		return fmt.Errorf("sweep: grace must be positive")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
// The admin password has no default; it must come from the config file or
// environment expansion.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Badger: BadgerConfig{
			Path: "./data/posts",
		},
		Sessions: SessionsConfig{
			Path: "./perch.db",
			TTL:  Duration(24 * time.Hour),
		},
		Sweep: SweepConfig{
			Interval: Duration(time.Hour),
			Grace:    Duration(24 * time.Hour),
		},
	}
}
