// Package config loads the process configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/auth"
)

// EnvPrefix is prepended to every environment variable, e.g. GITLAB_AUTH_MODE.
const EnvPrefix = "GITLAB"

// ErrInvalidConfig is matched by every ConfigurationError.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigurationError reports a configuration that must prevent startup.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is reports ErrInvalidConfig as a match.
func (e *ConfigurationError) Is(target error) bool { return target == ErrInvalidConfig }

// Config is immutable after Load returns.
type Config struct {
	URL               string           `mapstructure:"url"                 validate:"required,url"`
	SharedAccessToken string           `mapstructure:"shared_access_token"`
	AuthMode          string           `mapstructure:"auth_mode"           validate:"required,oneof=shared per-user hybrid"`
	MaxPageSize       int              `mapstructure:"max_page_size"       validate:"gte=1,lte=100"`
	TimeoutMS         int              `mapstructure:"timeout_ms"          validate:"gte=1000"`
	LogLevel          string           `mapstructure:"log_level"           validate:"oneof=debug info warn error"`
	Kubernetes        KubernetesConfig `mapstructure:"kubernetes"`
}

// KubernetesConfig points at a Secret holding the shared token. It is only
// consulted when SharedAccessToken is empty and SecretName is set.
type KubernetesConfig struct {
	Namespace  string `mapstructure:"namespace"`
	SecretName string `mapstructure:"secret_name"`
	SecretKey  string `mapstructure:"secret_key" validate:"required_with=SecretName"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("url", "https://gitlab.com")
	v.SetDefault("shared_access_token", "")
	v.SetDefault("auth_mode", string(auth.ModeHybrid))
	v.SetDefault("max_page_size", 50)
	v.SetDefault("timeout_ms", 30000)
	v.SetDefault("log_level", "info")
	v.SetDefault("kubernetes.namespace", "default")
	v.SetDefault("kubernetes.secret_name", "")
	v.SetDefault("kubernetes.secret_key", "token")
}

// New returns a viper instance wired for GITLAB_* environment variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the optional config file at path into v and validates the result.
// Pass an empty path to rely on defaults and environment variables only.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, &ConfigurationError{Err: fmt.Errorf("failed to read config file: %w", err)}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to unmarshal config: %w", err)}
	}
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field and returns a *ConfigurationError on failure.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &ConfigurationError{Err: err}
	}
	if _, err := auth.ParseMode(c.AuthMode); err != nil {
		return &ConfigurationError{Err: err}
	}
	return nil
}

// Mode returns the parsed auth mode. Validate guarantees it is known.
func (c *Config) Mode() auth.Mode {
	m, _ := auth.ParseMode(c.AuthMode)
	return m
}

// GraphQLEndpoint is the default GraphQL URL derived from URL.
func (c *Config) GraphQLEndpoint() string {
	return auth.GraphQLEndpoint(c.URL)
}

// RequestTimeout bounds each GraphQL exchange.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// HasSharedToken reports whether a shared credential is configured.
func (c *Config) HasSharedToken() bool {
	return strings.TrimSpace(c.SharedAccessToken) != ""
}

// Warnings lists configuration combinations that are valid but unlikely to
// be intended.
func (c *Config) Warnings() []string {
	var out []string
	switch c.Mode() {
	case auth.ModeShared:
		if !c.HasSharedToken() {
			out = append(out, "auth mode is shared but no shared access token is configured; every call will be rejected")
		}
	case auth.ModeHybrid:
		if !c.HasSharedToken() {
			out = append(out, "auth mode is hybrid but no shared access token is configured; reads will require user credentials")
		}
	case auth.ModePerUser:
		if c.HasSharedToken() {
			out = append(out, "auth mode is per-user; the shared access token will be ignored")
		}
	}
	return out
}
