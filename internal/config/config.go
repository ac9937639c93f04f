package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "COFFEESHOP"
	defaultHTTPAddress      = "0.0.0.0:5000"
	defaultDatabasePath     = "coffeeshop.db"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultJWKSCacheTTLMins = 10
	defaultAllowedOrigin    = "*"
	defaultResetOnStart     = true
	defaultSeedMenu         = false
	defaultShutdownTimeoutS = 10
	minimumJWKSCacheTTLMins = 1
	minimumShutdownTimeoutS = 1
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	ResetOnStart    bool
	SeedMenu        bool
	LogLevel        string
	LogFormat       string
	Auth0Domain     string
	Auth0Audience   string
	Auth0JWKSURL    string
	Auth0Issuer     string
	JWKSCacheTTL    time.Duration
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.shutdown_timeout_seconds", defaultShutdownTimeoutS)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.reset_on_start", defaultResetOnStart)
	configViper.SetDefault("database.seed_menu", defaultSeedMenu)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("auth0.jwks_cache_ttl_minutes", defaultJWKSCacheTTLMins)
	configViper.SetDefault("cors.allowed_origins", []string{defaultAllowedOrigin})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		ResetOnStart:    configViper.GetBool("database.reset_on_start"),
		SeedMenu:        configViper.GetBool("database.seed_menu"),
		LogLevel:        configViper.GetString("log.level"),
		LogFormat:       configViper.GetString("log.format"),
		Auth0Domain:     strings.TrimSpace(configViper.GetString("auth0.domain")),
		Auth0Audience:   strings.TrimSpace(configViper.GetString("auth0.audience")),
		Auth0JWKSURL:    strings.TrimSpace(configViper.GetString("auth0.jwks_url")),
		Auth0Issuer:     strings.TrimSpace(configViper.GetString("auth0.issuer")),
		JWKSCacheTTL:    time.Duration(configViper.GetInt("auth0.jwks_cache_ttl_minutes")) * time.Minute,
		AllowedOrigins:  splitOrigins(configViper.GetStringSlice("cors.allowed_origins")),
		ShutdownTimeout: time.Duration(configViper.GetInt("http.shutdown_timeout_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth0Domain == "" && (c.Auth0JWKSURL == "" || c.Auth0Issuer == "") {
		return fmt.Errorf("auth0.domain is required unless auth0.jwks_url and auth0.issuer are set")
	}
	if c.Auth0Audience == "" {
		return fmt.Errorf("auth0.audience is required")
	}
	if c.JWKSCacheTTL < minimumJWKSCacheTTLMins*time.Minute {
		return fmt.Errorf("auth0.jwks_cache_ttl_minutes must be at least %d", minimumJWKSCacheTTLMins)
	}
	if c.ShutdownTimeout < minimumShutdownTimeoutS*time.Second {
		return fmt.Errorf("http.shutdown_timeout_seconds must be at least %d", minimumShutdownTimeoutS)
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("cors.allowed_origins must not be empty")
	}
	return nil
}

// splitOrigins accepts both list values and comma separated env values.
func splitOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		for _, origin := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
