package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds CLI configuration. Values are resolved in order: built-in
// defaults, the YAML config file, TBANK_* environment variables, then flags.
type Config struct {
	ServerURL  string
	AdminPIN   string
	Output     string
	Verbose    bool
	ConfigFile string

	// Local wallet storage
	Store    string
	DBPath   string
	RedisURL string
}

// fileConfig is the on-disk shape of the config file
type fileConfig struct {
	Server   string `yaml:"server"`
	AdminPIN string `yaml:"admin_pin"`
	Output   string `yaml:"output"`
	Store    string `yaml:"store"`
	DB       string `yaml:"db"`
	RedisURL string `yaml:"redis_url"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:  "http://localhost:8080",
		Output:     "text",
		ConfigFile: getEnvOrDefault("TBANK_CONFIG", filepath.Join(defaultDir(), "config.yaml")),
		Store:      "sqlite",
		DBPath:     filepath.Join(defaultDir(), "wallet.db"),
		RedisURL:   "redis://localhost:6379",
	}
}

// Resolve layers the config file and environment under any flags the user
// set explicitly. changed reports whether a flag was given on the command line.
func (c *Config) Resolve(changed func(flag string) bool) error {
	fc, err := readConfigFile(c.ConfigFile)
	if err != nil {
		return err
	}

	fields := []struct {
		flag   string
		env    string
		file   string
		target *string
	}{
		{"server", "TBANK_SERVER", fc.Server, &c.ServerURL},
		{"pin", "TBANK_ADMIN_PIN", fc.AdminPIN, &c.AdminPIN},
		{"output", "TBANK_OUTPUT", fc.Output, &c.Output},
		{"store", "TBANK_STORE", fc.Store, &c.Store},
		{"db", "TBANK_DB", fc.DB, &c.DBPath},
		{"redis-url", "TBANK_REDIS_URL", fc.RedisURL, &c.RedisURL},
	}
	for _, f := range fields {
		if changed(f.flag) {
			continue
		}
		if f.file != "" {
			*f.target = f.file
		}
		if v := os.Getenv(f.env); v != "" {
			*f.target = v
		}
	}

	if c.Output != "text" && c.Output != "json" {
		return fmt.Errorf("invalid output format %q: must be text or json", c.Output)
	}
	return nil
}

func readConfigFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fc, nil // No config file is fine
		}
		return fc, err
	}

	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tbank"
	}
	return filepath.Join(home, ".tbank")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
