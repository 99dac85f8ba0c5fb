package internal

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Auth.Password = "secret"
	return cfg
}

func TestDefaultConfigValidatesOncePasswordIsSet(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("config without a password must not validate")
	}

	cfg.Auth.Password = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.App.HTTP.Port = 0 }},
		{"port too large", func(c *Config) { c.App.HTTP.Port = 70000 }},
		{"empty badger path", func(c *Config) { c.Badger.Path = "" }},
		{"empty sessions path", func(c *Config) { c.Sessions.Path = "" }},
		{"zero session ttl", func(c *Config) { c.Sessions.TTL = 0 }},
		{"zero sweep interval", func(c *Config) { c.Sweep.Interval = 0 }},
		{"zero sweep grace", func(c *Config) { c.Sweep.Grace = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestHTTPAddress(t *testing.T) {
	cfg := HTTPConfig{Port: 9090}
	if got := cfg.Address(); got != ":9090" {
		t.Errorf("address = %q", got)
	}
}

func TestDurationUnmarshalYAML(t *testing.T) {
	var d Duration
	if err := yaml.Unmarshal([]byte("24h"), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Std() != 24*time.Hour {
		t.Errorf("duration = %v", d.Std())
	}

	if err := yaml.Unmarshal([]byte("not-a-duration"), &d); err == nil {
		t.Error("expected an error for an unparseable duration")
	}
}

func TestConfigUnmarshalFromYAML(t *testing.T) {
	raw := `
app:
  log_level: DEBUG
  http:
    port: 3000
badger:
  path: /tmp/posts
sessions:
  path: /tmp/sessions.db
  ttl: 12h
auth:
  password: hunter2
web:
  templates_path: ./tmpl
sweep:
  interval: 30m
  grace: 2h
`
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal([]byte(raw), cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.App.HTTP.Port != 3000 {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}
	if cfg.Sessions.TTL.Std() != 12*time.Hour {
		t.Errorf("ttl = %v", cfg.Sessions.TTL.Std())
	}
	if cfg.Sweep.Interval.Std() != 30*time.Minute || cfg.Sweep.Grace.Std() != 2*time.Hour {
		t.Errorf("sweep = %+v", cfg.Sweep)
	}
	if cfg.Auth.Password != "hunter2" {
		t.Errorf("password = %q", cfg.Auth.Password)
	}
	if cfg.Web.TemplatesPath != "./tmpl" {
		t.Errorf("templates path = %q", cfg.Web.TemplatesPath)
	}
}
