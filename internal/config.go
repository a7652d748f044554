package internal

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the client configuration, read from config.yaml in the data
// directory and overridden by RAG_CLIENT_* environment variables.
type Config struct {
	Region           string        `mapstructure:"region"`
	ClientID         string        `mapstructure:"client_id"`
	APIURL           string        `mapstructure:"api_url"`
	IdentityEndpoint string        `mapstructure:"identity_endpoint"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	Render           string        `mapstructure:"render"`
	LogLevel         string        `mapstructure:"log_level"`
}

var configDefaults = map[string]any{
	"region":            "us-east-1",
	"client_id":         "",
	"api_url":           "",
	"identity_endpoint": "",
	"http_timeout":      "0s",
	"render":            RenderAuto,
	"log_level":         "warn",
}

// ConfigKeys lists the settable keys in display order
func ConfigKeys() []string {
	keys := make([]string, 0, len(configDefaults))
	for k := range configDefaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultDataDir returns ~/.rag-client
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".rag-client"), nil
}

// ConfigPath returns the config file location inside dataDir
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// LoadConfig reads the configuration. A missing file means all defaults.
func LoadConfig(dataDir string) (*Config, error) {
	v := viper.New()
	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("RAG_CLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := ConfigPath(dataDir)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigError{Key: path, Reason: err.Error()}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Key: path, Reason: err.Error()}
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.IdentityEndpoint == "" {
		cfg.IdentityEndpoint = IdentityEndpoint(cfg.Region)
	}
	if !ValidRenderMode(cfg.Render) {
		return nil, &ConfigError{Key: "render", Reason: fmt.Sprintf("unknown mode %q", cfg.Render)}
	}
	if _, ok := ParseLogLevel(cfg.LogLevel); !ok {
		return nil, &ConfigError{Key: "log_level", Reason: fmt.Sprintf("unknown level %q", cfg.LogLevel)}
	}
	return &cfg, nil
}

// Validate checks the settings every network operation needs
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return &ConfigError{Key: "client_id", Reason: "not set (run `rag-client config set client_id <id>`)"}
	}
	if c.APIURL == "" {
		return &ConfigError{Key: "api_url", Reason: "not set (run `rag-client config set api_url <url>`)"}
	}
	return nil
}

// HTTPClient returns the client shared by the identity and resource clients
func (c *Config) HTTPClient() *http.Client {
	return &http.Client{Timeout: c.HTTPTimeout}
}

// Values returns every setting as displayed by `config show`
func (c *Config) Values() map[string]string {
	return map[string]string{
		"region":            c.Region,
		"client_id":         c.ClientID,
		"api_url":           c.APIURL,
		"identity_endpoint": c.IdentityEndpoint,
		"http_timeout":      c.HTTPTimeout.String(),
		"render":            c.Render,
		"log_level":         c.LogLevel,
	}
}

func validateConfigValue(key, value string) error {
	switch key {
	case "http_timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return &ConfigError{Key: key, Reason: fmt.Sprintf("%q is not a non-negative duration", value)}
		}
	case "render":
		if !ValidRenderMode(value) {
			return &ConfigError{Key: key, Reason: fmt.Sprintf("must be one of %s, %s, %s", RenderAuto, RenderMarkdown, RenderPlain)}
		}
	case "log_level":
		if _, ok := ParseLogLevel(value); !ok {
			return &ConfigError{Key: key, Reason: "must be one of error, warn, info, debug"}
		}
	case "api_url", "identity_endpoint":
		if value == "" {
			return nil
		}
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ConfigError{Key: key, Reason: fmt.Sprintf("%q is not an http(s) URL", value)}
		}
	case "region", "client_id":
	default:
		return &ConfigError{Key: key, Reason: "unknown setting"}
	}
	return nil
}

// SetConfigValue validates and writes one setting into config.yaml,
// keeping any other keys already in the file.
func SetConfigValue(dataDir, key, value string) error {
	if err := validateConfigValue(key, value); err != nil {
		return err
	}

	path := ConfigPath(dataDir)
	values := map[string]string{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &values); err != nil {
			return &ConfigError{Key: path, Reason: err.Error()}
		}
		if values == nil {
			values = map[string]string{}
		}
	case !errors.Is(err, os.ErrNotExist):
		return &StorageError{Path: path, Op: "read", Err: err}
	}

	values[key] = value
	out, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return &StorageError{Path: dataDir, Op: "write", Err: err}
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return &StorageError{Path: path, Op: "write", Err: err}
	}
	LogDebug("Set %s in %s", key, path)
	return nil
}
