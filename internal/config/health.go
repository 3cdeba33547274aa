package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// HealthConfig holds health check configuration. Probes are served on the
// HTTP API listener.
type HealthConfig struct {
	Enabled          bool          `env:"HEALTH_ENABLED" yaml:"enabled" default:"true"`
	LivenessPath     string        `env:"HEALTH_LIVENESS_PATH" yaml:"liveness_path" default:"/health/live"`
	ReadinessPath    string        `env:"HEALTH_READINESS_PATH" yaml:"readiness_path" default:"/health/ready"`
	Timeout          time.Duration `env:"HEALTH_TIMEOUT" yaml:"timeout" default:"5s"`
	FailureThreshold int           `env:"HEALTH_FAILURE_THRESHOLD" yaml:"failure_threshold" default:"3"`
}

// Validate checks HealthConfig
func (c HealthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	var result error
	for _, p := range []string{c.LivenessPath, c.ReadinessPath} {
		if !strings.HasPrefix(p, "/") {
			result = multierror.Append(result, fmt.Errorf("health path %q must start with /", p))
		}
	}
	if c.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("health timeout must be greater than 0"))
	}
	if c.FailureThreshold < 1 {
		result = multierror.Append(result, fmt.Errorf("health failure_threshold must be at least 1"))
	}
	return result
}
