package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	DefaultConfigDir  = ".forumrelay"
	DefaultConfigFile = "config.json"
	DefaultEnvFile    = ".env"
	DefaultPort       = 3000
)

// legacyEnv maps config keys to the environment variable names used by
// existing deployments. They are checked in order after the derived name.
var legacyEnv = map[string][]string{
	"napcat.url":             {"NAPCAT_URL"},
	"napcat.group_id":        {"NAPCAT_GROUP_ID", "QQ_GROUP_ID"},
	"napcat.access_token":    {"NAPCAT_ACCESS_TOKEN", "NAPCAT_TOKEN"},
	"server.port":            {"SERVER_PORT", "PORT"},
	"server.environment":     {"SERVER_ENVIRONMENT", "NODE_ENV"},
	"security.webhook_token": {"SECURITY_WEBHOOK_TOKEN", "WEBHOOK_TOKEN"},
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error; the
// returned bool reports whether the file was read.
func LoadEnvFile(path string) (bool, error) {
	if path == "" {
		path = DefaultEnvFile
	}
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("loading env file %s: %w", path, err)
	}
	return true, nil
}

// Load reads the config file (if present), applies environment overrides and
// defaults, and returns a populated Config. configPath may override the
// default location.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
		}
		v.AddConfigPath(".")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			// Config file exists but is malformed.
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file; env and defaults only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	normalize(&cfg)
	return &cfg, nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	p, err := ConfigPath(configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}
	return os.WriteFile(p, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Missing returns the required settings that are empty. The service still
// starts without them; every dispatch fails until they are set.
func (c *Config) Missing() []string {
	var missing []string
	if strings.TrimSpace(c.NapCat.URL) == "" {
		missing = append(missing, "NAPCAT_URL")
	}
	if strings.TrimSpace(c.NapCat.GroupID) == "" {
		missing = append(missing, "QQ_GROUP_ID")
	}
	return missing
}

// IsDevelopment reports whether verbose error details may be returned to callers.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, "development")
}

// EnsureWebhookToken fills in a random token when none is configured and
// reports whether it did so.
func EnsureWebhookToken(cfg *Config) (bool, error) {
	if strings.TrimSpace(cfg.Security.WebhookToken) != "" {
		return false, nil
	}
	tok, err := GenerateToken()
	if err != nil {
		return false, err
	}
	cfg.Security.WebhookToken = tok
	return true, nil
}

// GenerateToken returns 16 random bytes as lowercase hex.
func GenerateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating webhook token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// setDefaults populates viper with out-of-the-box values. Every key must be
// registered here so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("napcat.url", "")
	v.SetDefault("napcat.group_id", "")
	v.SetDefault("napcat.access_token", "")
	v.SetDefault("napcat.timeout_seconds", 10)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.body_limit_bytes", 10<<20)
	v.SetDefault("server.log_dir", "")

	v.SetDefault("security.webhook_token", "")
	v.SetDefault("security.rate_limits.window_seconds", 60)
	v.SetDefault("security.rate_limits.user", 20)
	v.SetDefault("security.rate_limits.admin", 20)
	v.SetDefault("security.rate_limits.reply", 50)
	v.SetDefault("security.rate_limits.generic", 50)

	v.SetDefault("probe.enabled", false)
	v.SetDefault("probe.schedule", "@every 6h")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func normalize(cfg *Config) {
	cfg.NapCat.URL = strings.TrimRight(strings.TrimSpace(cfg.NapCat.URL), "/")
	cfg.NapCat.GroupID = strings.TrimSpace(cfg.NapCat.GroupID)
	if cfg.NapCat.TimeoutSeconds <= 0 {
		cfg.NapCat.TimeoutSeconds = 10
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.BodyLimitBytes <= 0 {
		cfg.Server.BodyLimitBytes = 10 << 20
	}
	if cfg.Security.RateLimits.WindowSeconds <= 0 {
		cfg.Security.RateLimits.WindowSeconds = 60
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
