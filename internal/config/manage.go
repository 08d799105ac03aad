package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/klytics/xlpipe/internal/logging"
)

// Issue is one finding of Validate.
type Issue struct {
	Key      string `json:"key"`
	Severity string `json:"severity"` // "error", "warning", "info"
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Validate checks the loaded configuration.
func Validate() []Issue {
	var issues []Issue

	if lvl := viper.GetString("log.level"); !slices.Contains(logging.Levels, strings.ToLower(lvl)) {
		issues = append(issues, Issue{
			Key:      "log.level",
			Severity: "error",
			Message:  fmt.Sprintf("log.level is %q, want one of %s", lvl, strings.Join(logging.Levels, ", ")),
			Fix:      "xlpipe config set log.level warn",
		})
	}
	if f := viper.GetString("log.format"); !slices.Contains(logging.Formats, strings.ToLower(f)) {
		issues = append(issues, Issue{
			Key:      "log.format",
			Severity: "error",
			Message:  fmt.Sprintf("log.format is %q, want text or json", f),
			Fix:      "xlpipe config set log.format text",
		})
	}

	if dir := viper.GetString("input.dir"); dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			issues = append(issues, Issue{
				Key:      "input.dir",
				Severity: "warning",
				Message:  fmt.Sprintf("input directory %s does not exist", dir),
				Fix:      "xlpipe config set input.dir <directory>",
			})
		}
	}
	if dir := viper.GetString("output.dir"); dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			issues = append(issues, Issue{
				Key:      "output.dir",
				Severity: "info",
				Message:  fmt.Sprintf("output directory %s will be created on first write", dir),
			})
		}
	}

	if viper.GetBool("store.keep") && viper.GetString("store.path") == "" {
		issues = append(issues, Issue{
			Key:      "store.keep",
			Severity: "error",
			Message:  "store.keep is set but store.path is empty, so there is nothing to keep",
			Fix:      "xlpipe config set store.path analysis.db",
		})
	}

	if viper.GetBool("audit.enabled") {
		issues = append(issues, Issue{
			Key:      "audit.path",
			Severity: "info",
			Message:  "run history is written to " + viper.GetString("audit.path"),
		})
	}
	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == "error" {
			return true
		}
	}
	return false
}

// ToEnv returns every known key as the XLPIPE_ variable that overrides it.
func ToEnv() map[string]string {
	env := make(map[string]string)
	for k := range Defaults() {
		env[EnvName(k)] = viper.GetString(k)
	}
	return env
}

// EnvName maps a config key to its environment variable.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Set sets a config value and saves to disk.
func Set(key, value string) error {
	if _, ok := Defaults()[key]; !ok {
		return fmt.Errorf("unknown config key %q (see xlpipe config show)", key)
	}
	viper.Set(key, value)
	return SaveConfig()
}

// Get retrieves a config value.
func Get(key string) string {
	return viper.GetString(key)
}

// Init writes a config file holding the defaults, unless one exists.
func Init() (bool, error) {
	if _, err := os.Stat(ConfigPath()); err == nil {
		return false, nil
	}
	for k, v := range Defaults() {
		viper.Set(k, v)
	}
	return true, SaveConfig()
}

// ResetConfig deletes the config file and restores defaults in memory.
func ResetConfig() error {
	if err := os.Remove(ConfigPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete config: %w", err)
	}
	for k, v := range Defaults() {
		viper.Set(k, v)
	}
	return nil
}

// SaveConfig writes the current config to ~/.xlpipe/config.yaml.
func SaveConfig() error {
	dir := configDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// ShowConfig returns the effective configuration, one key per line.
func ShowConfig() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Config: %s\n\n", ConfigPath())

	keys := make([]string, 0, len(Defaults()))
	for k := range Defaults() {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	section := ""
	for _, k := range keys {
		group, name, _ := strings.Cut(k, ".")
		if group != section {
			if section != "" {
				sb.WriteString("\n")
			}
			sb.WriteString(group + "\n")
			section = group
		}
		v := viper.GetString(k)
		if v == "" {
			v = "(not set)"
		}
		fmt.Fprintf(&sb, "  %-10s %s\n", name+":", v)
	}
	return sb.String()
}
