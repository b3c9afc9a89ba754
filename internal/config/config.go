package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the proxy.
type Config struct {
	// ListenAddr is the TCP address the frame server binds to.
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`

	// Database holds the backend graph database connection settings.
	Database DatabaseConfig `yaml:"database"`

	// SealKeyEnv is the environment variable consulted first for the
	// deterministic-encryption key before falling back to OS keychain
	// storage.
	SealKeyEnv string `yaml:"seal_key_env" mapstructure:"seal_key_env"`

	// MaxFrameBytes is the largest wire frame body the server accepts,
	// checked against the 8-byte length prefix before the body is read.
	MaxFrameBytes int64 `yaml:"max_frame_bytes" mapstructure:"max_frame_bytes"`
}

// DatabaseConfig holds the backend graph database connection settings.
type DatabaseConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Default returns the baseline configuration before environment
// variables or a config file are applied.
func Default() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:8080",
		Database: DatabaseConfig{
			Name: "neo4j",
		},
		SealKeyEnv:    "PROXY_SEAL_KEY",
		MaxFrameBytes: 16 * 1024 * 1024,
	}
}

// Load builds a Config by layering, in increasing precedence: built-in
// defaults, an optional YAML file, then environment variables (loaded
// from .env files first, then the process environment).
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("database", cfg.Database)
	v.SetDefault("seal_key_env", cfg.SealKeyEnv)
	v.SetDefault("max_frame_bytes", cfg.MaxFrameBytes)

	v.SetEnvPrefix("PROXY")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(expandPath(path))
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/graphproxy")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence, ignoring ones
// that don't exist.
func loadEnvFiles() {
	envFiles := []string{".env.local", ".env"}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}
}

// applyEnvOverrides applies the literal environment variables the
// backend connection is documented to read, so a plain `DATABASE_URI=...
// ./graphproxy` invocation works without a config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URI"); v != "" {
		cfg.Database.URI = v
	}
	if v := os.Getenv("DATABASE_USERNAME"); v != "" {
		cfg.Database.Username = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DATABASE_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PROXY_MAX_FRAME_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxFrameBytes = n
		}
	}
}

// Validate reports a configuration error for any setting the server
// cannot start without.
func (c *Config) Validate() error {
	if c.Database.URI == "" {
		return fmt.Errorf("config: database.uri (or DATABASE_URI) is required")
	}
	if c.Database.Username == "" {
		return fmt.Errorf("config: database.username (or DATABASE_USERNAME) is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("config: database.password (or DATABASE_PASSWORD) is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr is required")
	}
	if c.MaxFrameBytes <= 0 {
		return fmt.Errorf("config: max_frame_bytes must be positive")
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[1:])
}
