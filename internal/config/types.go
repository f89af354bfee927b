package config

// Config is the root configuration structure for forumrelay.
// Serialised to ~/.forumrelay/config.json.
type Config struct {
	NapCat   NapCatConfig   `mapstructure:"napcat"   json:"napcat"   yaml:"napcat"`
	Server   ServerConfig   `mapstructure:"server"   json:"server"   yaml:"server"`
	Security SecurityConfig `mapstructure:"security" json:"security" yaml:"security"`
	Probe    ProbeConfig    `mapstructure:"probe"    json:"probe"    yaml:"probe"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  json:"metrics"  yaml:"metrics"`
}

// NapCatConfig points at the OneBot v11 HTTP API that owns the QQ account.
type NapCatConfig struct {
	// URL is the API base, e.g. http://127.0.0.1:3001 (env: NAPCAT_URL).
	URL string `mapstructure:"url"      json:"url"      yaml:"url"`
	// GroupID is the destination QQ group (env: QQ_GROUP_ID or NAPCAT_GROUP_ID).
	GroupID string `mapstructure:"group_id" json:"group_id" yaml:"group_id"`
	// AccessToken is sent as a Bearer token when NapCat has one configured.
	AccessToken    string `mapstructure:"access_token"    json:"access_token"    yaml:"access_token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ServerConfig controls the inbound webhook listener.
type ServerConfig struct {
	Host string `mapstructure:"host" json:"host" yaml:"host"`
	// Port defaults to 3000 (env: PORT).
	Port int `mapstructure:"port" json:"port" yaml:"port"`
	// Environment is "development" or "production" (env: NODE_ENV). Development
	// mode includes internal error messages in 500 responses.
	Environment    string `mapstructure:"environment"      json:"environment"      yaml:"environment"`
	BodyLimitBytes int64  `mapstructure:"body_limit_bytes" json:"body_limit_bytes" yaml:"body_limit_bytes"`
	// LogDir, when set, receives a copy of the service log.
	LogDir string `mapstructure:"log_dir" json:"log_dir" yaml:"log_dir"`
}

// SecurityConfig holds the path token and per-route request budgets.
type SecurityConfig struct {
	// WebhookToken is embedded in every webhook URL (env: WEBHOOK_TOKEN).
	// A random token is generated at startup when empty.
	WebhookToken string          `mapstructure:"webhook_token" json:"webhook_token" yaml:"webhook_token"`
	RateLimits   RateLimitConfig `mapstructure:"rate_limits"   json:"rate_limits"   yaml:"rate_limits"`
}

// RateLimitConfig is the number of requests allowed per client IP per window.
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds" json:"window_seconds" yaml:"window_seconds"`
	User          int `mapstructure:"user"           json:"user"           yaml:"user"`
	Admin         int `mapstructure:"admin"          json:"admin"          yaml:"admin"`
	Reply         int `mapstructure:"reply"          json:"reply"          yaml:"reply"`
	Generic       int `mapstructure:"generic"        json:"generic"        yaml:"generic"`
}

// ProbeConfig schedules a periodic NapCat connection test.
type ProbeConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	// Schedule is a cron expression ("0 9 * * *") or descriptor ("@every 6h").
	Schedule string `mapstructure:"schedule" json:"schedule" yaml:"schedule"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    json:"path"    yaml:"path"`
}
