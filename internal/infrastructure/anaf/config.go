package anaf

import (
	"errors"
	"time"

	appconfig "github.com/tradeco/backoffice/internal/infrastructure/config"
)

// Config holds the settings needed to talk to the e-Factura REST API.
// Either StaticToken or the full OAuth2 credential set must be present.
type Config struct {
	BaseURL      string
	TokenURL     string
	CIF          string
	ClientID     string
	ClientSecret string
	RefreshToken string
	StaticToken  string
	Timeout      time.Duration
}

// NewConfig builds an adapter config from the application configuration
func NewConfig(cfg appconfig.AnafConfig) *Config {
	return &Config{
		BaseURL:      cfg.BaseURL,
		TokenURL:     cfg.TokenURL,
		CIF:          cfg.CIF,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: cfg.RefreshToken,
		StaticToken:  cfg.StaticToken,
		Timeout:      cfg.Timeout,
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("anaf: base URL is required")
	}
	if c.CIF == "" {
		return errors.New("anaf: company CIF is required")
	}
	if c.StaticToken == "" {
		if c.TokenURL == "" {
			return errors.New("anaf: token URL is required when no static token is set")
		}
		if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
			return errors.New("anaf: client credentials and refresh token are required when no static token is set")
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}
