package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Endpoint       string `yaml:"endpoint" mapstructure:"endpoint"`
	DefaultModel   string `yaml:"default_model" mapstructure:"default_model"`
	Theme          string `yaml:"theme" mapstructure:"theme"`
	RefreshSeconds int    `yaml:"refresh_seconds" mapstructure:"refresh_seconds"`
	RequestTimeout int    `yaml:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
}

var envVarRe = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)

func expandEnv(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "$")
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

func DefaultConfig() *Config {
	return &Config{
		Endpoint:       "http://localhost:11434",
		DefaultModel:   "llama3.2",
		Theme:          "green",
		RefreshSeconds: 5,
		RequestTimeout: 30,
	}
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "modeldeck")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "modeldeck")
}

// Path returns the location of the config file, whether or not it exists.
func Path() string {
	return filepath.Join(configDir(), "config.yaml")
}

func Load() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Search paths
	viper.AddConfigPath(".")
	viper.AddConfigPath(configDir())

	// Environment variables (MODELDECK_ENDPOINT, etc.)
	viper.SetEnvPrefix("MODELDECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error produced
			return nil, err
		}
		// Config file not found; ignore and use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	cfg.Endpoint = expandEnv(cfg.Endpoint)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors and floors nonsense values.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("config: endpoint is required")
	}
	if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		return fmt.Errorf("config: endpoint %q must be an http(s) URL", c.Endpoint)
	}
	if c.RefreshSeconds < 1 {
		c.RefreshSeconds = 5
	}
	if c.RequestTimeout < 1 {
		c.RequestTimeout = 30
	}
	return nil
}

// Write saves the config to the default path, creating the directory if
// needed. Used by `modeldeck config init`.
func (c *Config) Write() (string, error) {
	dir := configDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	path := Path()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
