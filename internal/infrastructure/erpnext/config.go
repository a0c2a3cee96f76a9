package erpnext

import (
	"errors"
	"net/http"
	"net/url"
	"time"
)

// defaultMaxResponseSize bounds upstream bodies, print PDFs included (20MB)
const defaultMaxResponseSize = 20 << 20

// Config holds the client settings
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	Retry              RetryConfig
	RateLimitQPS       float64 // <= 0 disables throttling
	RateLimitBurst     int
	InsecureSkipVerify bool
	MaxResponseSize    int64
}

// RetryConfig controls retries of idempotent (GET) calls
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// ShouldRetry decides on a finished attempt; resp is nil on transport errors.
	ShouldRetry func(resp *http.Response, err error) bool
}

// DefaultRetryConfig retries transport errors, 429 and 5xx three times
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelay: 200 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2.0,
		ShouldRetry: func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		},
	}
}

// Validate checks the configuration and fills defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("erpnext: base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("erpnext: base URL must be absolute")
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxResponseSize <= 0 {
		c.MaxResponseSize = defaultMaxResponseSize
	}
	def := DefaultRetryConfig()
	if c.Retry.MaxRetries < 0 {
		return errors.New("erpnext: max retries cannot be negative")
	}
	if c.Retry.RetryDelay <= 0 {
		c.Retry.RetryDelay = def.RetryDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = def.MaxDelay
	}
	if c.Retry.Multiplier < 1 {
		c.Retry.Multiplier = def.Multiplier
	}
	if c.Retry.ShouldRetry == nil {
		c.Retry.ShouldRetry = def.ShouldRetry
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 1
	}
	return nil
}
