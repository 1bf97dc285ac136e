// Package config provides configuration types and loading for LureKit.
package config

import "time"

// Config is the top-level configuration for the lurekit CLI and agent.
type Config struct {
	// Server configures the platform API endpoint.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Session configures token refresh and persistence.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Status configures the agent's local health/metrics listener.
	Status StatusConfig `yaml:"status" mapstructure:"status"`

	// LogLevel sets the minimum log level: debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// ServerConfig configures how the client reaches the platform API.
type ServerConfig struct {
	// Addr is the base URL of the platform API, e.g. "https://admin.example.com/api".
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required,url"`

	// Timeout bounds every API request round trip (e.g. "15s").
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`

	// CacheTTL bounds how long campaign reads are served from cache
	// (e.g. "30s"). "0" disables the cache.
	CacheTTL string `yaml:"cache_ttl" mapstructure:"cache_ttl" validate:"omitempty,duration"`
}

// SessionConfig configures session persistence and the refresh schedule.
type SessionConfig struct {
	// RefreshLead is how long before token expiry a refresh fires (e.g. "5m").
	RefreshLead string `yaml:"refresh_lead" mapstructure:"refresh_lead" validate:"omitempty,duration"`

	// TokenFile overrides where the bearer token is persisted.
	// Empty means the default $HOME/.lurekit/token. Must be absolute when set.
	TokenFile string `yaml:"token_file" mapstructure:"token_file" validate:"omitempty,abs_path"`
}

// StatusConfig configures the agent's local status endpoint.
type StatusConfig struct {
	// Enabled controls whether the agent serves /healthz and /metrics.
	// Default: false (opt-in).
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Addr is the listen address for the status server.
	// Default: "127.0.0.1:9464".
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// Defaults applied by SetDefaults for optional fields.
const (
	DefaultTimeout     = "15s"
	DefaultCacheTTL    = "30s"
	DefaultRefreshLead = "5m"
	DefaultStatusAddr  = "127.0.0.1:9464"
	DefaultLogLevel    = "info"
)

// SetDefaults applies default values to unset optional fields.
// Call before Validate.
func (c *Config) SetDefaults() {
	if c.Server.Timeout == "" {
		c.Server.Timeout = DefaultTimeout
	}
	if c.Server.CacheTTL == "" {
		c.Server.CacheTTL = DefaultCacheTTL
	}
	if c.Session.RefreshLead == "" {
		c.Session.RefreshLead = DefaultRefreshLead
	}
	if c.Status.Addr == "" {
		c.Status.Addr = DefaultStatusAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// RequestTimeout returns the parsed server timeout.
// Valid after SetDefaults and Validate.
func (c *Config) RequestTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.Timeout)
	return d
}

// CampaignCacheTTL returns the parsed campaign cache TTL.
func (c *Config) CampaignCacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Server.CacheTTL)
	return d
}

// RefreshLead returns the parsed refresh lead window.
func (c *Config) RefreshLead() time.Duration {
	d, _ := time.ParseDuration(c.Session.RefreshLead)
	return d
}
