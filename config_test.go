/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		port:          8080,
		store:         "memory://",
		tokenEndpoint: "http://localhost:9000/token",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"client credentials", func(c *Config) { c.tokenEndpoint, c.clientID, c.clientSecret = "", "id", "secret" }, true},
		{"port too low", func(c *Config) { c.port = 0 }, false},
		{"port too high", func(c *Config) { c.port = 70000 }, false},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, false},
		{"unknown store", func(c *Config) { c.store = "mysql://db" }, false},
		{"id without secret", func(c *Config) { c.clientID = "id" }, false},
		{"no credentials", func(c *Config) { c.tokenEndpoint = "" }, false},
		{"negative timeout", func(c *Config) { c.sessionTimeout = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("WHOSWHO_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("WHOSWHO_TEST_DOTENV") })

	if err := loadDotEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("WHOSWHO_TEST_DOTENV"); got != "loaded" {
		t.Fatalf("WHOSWHO_TEST_DOTENV = %q", got)
	}
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("WHOSWHO_PORT", "9123")
	t.Setenv("WHOSWHO_STORE", "memory://")

	cfg := &Config{}
	newCmd(cfg)

	if cfg.port != 9123 || cfg.store != "memory://" {
		t.Fatalf("port=%d store=%q", cfg.port, cfg.store)
	}
}

func TestHumanReadableSize(t *testing.T) {
	for n, want := range map[int64]string{
		0:       "0 B",
		999:     "999 B",
		1000:    "1.0 kB",
		1536000: "1.5 MB",
	} {
		if got := humanReadableSize(n); got != want {
			t.Fatalf("humanReadableSize(%d) = %q, want %q", n, got, want)
		}
	}
}
