package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	BaseURL        string   `mapstructure:"BASE_URL"`
	ClientsFile    string   `mapstructure:"CLIENTS_FILE"`
	HTTPTimeoutSec int      `mapstructure:"HTTP_TIMEOUT_SEC"`
	SessionTTLMin  int      `mapstructure:"SESSION_TTL_MIN"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "4567")
	v.SetDefault("ENV", "development")
	v.SetDefault("BASE_URL", "http://localhost:4567")
	v.SetDefault("CLIENTS_FILE", "clients.yml")
	v.SetDefault("HTTP_TIMEOUT_SEC", 30)
	v.SetDefault("SESSION_TTL_MIN", 15)
	v.SetDefault("CORS_ORIGINS", "*")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("BASE_URL")
	v.BindEnv("CLIENTS_FILE")
	v.BindEnv("HTTP_TIMEOUT_SEC")
	v.BindEnv("SESSION_TTL_MIN")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BASE_URL is required")
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// RedirectURI is the fixed OAuth2 redirect target registered with every
// EHR authorization server.
func (c *Config) RedirectURI() string {
	return c.BaseURL + "/app"
}

// HTTPTimeout bounds every outbound call to an authorization server or
// FHIR server; both are untrusted third parties.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// SessionTTL is how long an unconsumed launch session is kept before it
// expires.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

// ClientRegistration maps an EHR issuer to the OAuth2 client identity
// this app was registered under at that EHR.
type ClientRegistration struct {
	IssuerContains string `mapstructure:"issuer_contains"`
	ClientID       string `mapstructure:"client_id"`
	Scopes         string `mapstructure:"scopes"`
}

// LoadClients reads the issuer-to-client registration file once at
// startup. File order is preserved: resolution is first-substring-match,
// not most-specific-match. The returned slice is treated as read-only
// for the process lifetime.
func LoadClients(path string) ([]ClientRegistration, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read clients file %s: %w", path, err)
	}

	var regs []ClientRegistration
	if err := v.UnmarshalKey("clients", &regs); err != nil {
		return nil, fmt.Errorf("unmarshal clients file %s: %w", path, err)
	}
	if len(regs) == 0 {
		return nil, fmt.Errorf("clients file %s defines no clients", path)
	}
	for i, r := range regs {
		if r.IssuerContains == "" {
			return nil, fmt.Errorf("clients file %s: entry %d has no issuer_contains", path, i)
		}
		if r.ClientID == "" {
			return nil, fmt.Errorf("clients file %s: entry %d has no client_id", path, i)
		}
	}
	return regs, nil
}
