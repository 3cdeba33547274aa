package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// SecurityConfig holds security-related configuration for the HTTP API
type SecurityConfig struct {
	// APIToken, when set, is required as a bearer token on /api routes
	APIToken       string `env:"FRIDAY_API_TOKEN" yaml:"-"`
	MaxRequestSize int64  `env:"MAX_REQUEST_SIZE" yaml:"max_request_size" default:"1048576"` // 1MB default

	// Chat messages per second per client, each one may cost a model call
	ChatRateLimit float64 `env:"CHAT_RATE_LIMIT" yaml:"chat_rate_limit" default:"1"`
	ChatBurst     int     `env:"CHAT_BURST" yaml:"chat_burst" default:"5"`
}

// Validate checks SecurityConfig
func (c SecurityConfig) Validate() error {
	var result error
	if c.MaxRequestSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("max_request_size must be greater than 0"))
	}
	if c.ChatRateLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("chat_rate_limit must not be negative, got %g", c.ChatRateLimit))
	}
	if c.ChatBurst < 0 {
		result = multierror.Append(result, fmt.Errorf("chat_burst must not be negative, got %d", c.ChatBurst))
	}
	return result
}
