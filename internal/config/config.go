// Package config manages xlpipe configuration from ~/.xlpipe/config.yaml,
// an optional .env file and XLPIPE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: XLPIPE_LOG_LEVEL sets
// log.level.
const EnvPrefix = "XLPIPE"

// Config holds the application configuration.
type Config struct {
	Input struct {
		Dir   string `mapstructure:"dir" json:"dir"`
		Sheet string `mapstructure:"sheet" json:"sheet"`
	} `mapstructure:"input" json:"input"`
	Sample struct {
		Seed     int64 `mapstructure:"seed" json:"seed"`
		Fallback bool  `mapstructure:"fallback" json:"fallback"`
	} `mapstructure:"sample" json:"sample"`
	Store struct {
		Path string `mapstructure:"path" json:"path"`
		Keep bool   `mapstructure:"keep" json:"keep"`
	} `mapstructure:"store" json:"store"`
	Output struct {
		Dir   string `mapstructure:"dir" json:"dir"`
		Color bool   `mapstructure:"color" json:"color"`
	} `mapstructure:"output" json:"output"`
	Log struct {
		Level  string `mapstructure:"level" json:"level"`
		Format string `mapstructure:"format" json:"format"`
	} `mapstructure:"log" json:"log"`
	Audit struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Path    string `mapstructure:"path" json:"path"`
	} `mapstructure:"audit" json:"audit"`
}

// Defaults are the values used for keys that no file or variable sets.
func Defaults() map[string]any {
	return map[string]any{
		"input.dir":       ".",
		"input.sheet":     "",
		"sample.seed":     42,
		"sample.fallback": true,
		"store.path":      "",
		"store.keep":      false,
		"output.dir":      ".",
		"output.color":    true,
		"log.level":       "warn",
		"log.format":      "text",
		"audit.enabled":   true,
		"audit.path":      filepath.Join(configDir(), "runs.jsonl"),
	}
}

// Load reads .env from the working directory, then ~/.xlpipe/config.yaml,
// then XLPIPE_ environment variables, later sources winning.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not read .env: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir())

	for k, v := range Defaults() {
		viper.SetDefault(k, v)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; a broken one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read %s: %w", ConfigPath(), err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".xlpipe"
	}
	return filepath.Join(home, ".xlpipe")
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}
