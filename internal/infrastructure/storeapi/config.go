package storeapi

import (
	"errors"
	"net/url"
	"time"
)

// Configuration validation errors
var (
	ErrConfigMissingBaseURL = errors.New("storeapi: base URL is required")
	ErrConfigInvalidBaseURL = errors.New("storeapi: base URL is not a valid URL")
)

// Config holds the store backend connection settings.
type Config struct {
	// BaseURL is the root of the store REST API, e.g. "https://api.jerseyarena.example".
	BaseURL string

	// Timeout is the per-request timeout. Defaults to 30s.
	Timeout time.Duration

	// UserAgent is sent on every request. Defaults to "jerseyarena-storefront/1.0".
	UserAgent string
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrConfigInvalidBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "jerseyarena-storefront/1.0"
	}
	return nil
}
