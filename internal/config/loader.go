package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for lurekit.yaml/.yml in
// standard locations. The search requires an explicit YAML extension so the
// lurekit binary itself is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file in any standard location. Set name/type without
		// search paths so ReadInConfig returns ConfigFileNotFoundError,
		// which LoadConfig treats as env-vars-only mode.
		viper.SetConfigName("lurekit")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: LUREKIT_SERVER_ADDR overrides server.addr
	viper.SetEnvPrefix("LUREKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a lurekit config file with
// an explicit .yaml or .yml extension.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".lurekit"),
		"/etc/lurekit",
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths returns the first lurekit.yaml or lurekit.yml found
// in the given directories, or "" when none exists.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "lurekit"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all nested config keys so they can be overridden
// via environment variables, e.g. LUREKIT_SESSION_REFRESH_LEAD.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.addr")
	_ = viper.BindEnv("server.timeout")
	_ = viper.BindEnv("server.cache_ttl")

	_ = viper.BindEnv("session.refresh_lead")
	_ = viper.BindEnv("session.token_file")

	_ = viper.BindEnv("status.enabled")
	_ = viper.BindEnv("status.addr")

	_ = viper.BindEnv("log_level")
}

// LoadConfig reads the configuration file, applies environment overrides and
// defaults, validates, and returns the Config. A missing config file is not
// an error; env vars alone can carry the full configuration.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path of the loaded configuration file, or ""
// when running on environment variables alone.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
