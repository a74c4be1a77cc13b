package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds client preferences
type Config struct {
	APIURL         string        `yaml:"api_url" json:"api_url"`                 // Backend API root
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"` // Per-request timeout

	// Session storage
	Storage       string `yaml:"storage" json:"storage"`               // file, sqlite, redis or memory
	StoragePath   string `yaml:"storage_path" json:"storage_path"`     // Directory (file) or database file (sqlite); empty means under ~/.topia
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`         // host:port for the redis backend
	RedisPassword string `yaml:"redis_password" json:"redis_password"` // Optional
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	SessionKey    string `yaml:"session_key" json:"session_key"` // Storage key of the identity

	RoutesFile        string `yaml:"routes_file" json:"routes_file"`                 // Optional route table override
	RegisterAutoLogin bool   `yaml:"register_auto_login" json:"register_auto_login"` // Log in right after registering

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging
}

// Dir returns ~/.topia
func Dir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		return ".topia"
	}
	return filepath.Join(home, ".topia")
}

// DefaultPath returns ~/.topia/config.yaml
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		APIURL:         "http://localhost:5000/api",
		RequestTimeout: 30 * time.Second,
		Storage:        "file",
		RedisAddr:      "localhost:6379",
		SessionKey:     "userInfo",
		LogLevel:       "INFO",
		LogFile:        filepath.Join(dir, "logs", "topia.log"),
	}
}

// applyEnv overrides settings from TOPIA_* variables
func (c *Config) applyEnv() {
	c.APIURL = getEnv("TOPIA_API_URL", c.APIURL)
	c.Storage = getEnv("TOPIA_STORAGE", c.Storage)
	c.StoragePath = getEnv("TOPIA_STORAGE_PATH", c.StoragePath)
	c.RedisAddr = getEnv("TOPIA_REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("TOPIA_REDIS_PASSWORD", c.RedisPassword)
	c.RoutesFile = getEnv("TOPIA_ROUTES_FILE", c.RoutesFile)
	c.LogLevel = getEnv("TOPIA_LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("TOPIA_LOG_FILE", c.LogFile)

	if v := os.Getenv("TOPIA_LOG_CONSOLE"); v != "" {
		c.LogConsole = v == "true"
	}
	if v := os.Getenv("TOPIA_REGISTER_AUTO_LOGIN"); v != "" {
		c.RegisterAutoLogin = v == "true"
	}
	if v := os.Getenv("TOPIA_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := os.Getenv("TOPIA_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = d
		}
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Load loads config from ~/.topia/config.yaml
func Load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom loads config from path, falling back to defaults when the file
// does not exist. Environment overrides apply last.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save saves config to ~/.topia/config.yaml
func (c *Config) Save() error {
	return c.SaveTo(DefaultPath())
}

// SaveTo writes config to path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// May hold a redis password
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
