package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
)

// DigestConfig controls the nightly daily-summary job
type DigestConfig struct {
	Enabled  bool   `env:"DIGEST_ENABLED" yaml:"enabled" default:"true"`
	Schedule string `env:"DIGEST_SCHEDULE" yaml:"schedule" default:"55 23 * * *"`
	// CatchUp summarizes yesterday on startup when it was missed
	CatchUp    bool          `env:"DIGEST_CATCH_UP" yaml:"catch_up" default:"true"`
	RunTimeout time.Duration `env:"DIGEST_RUN_TIMEOUT" yaml:"run_timeout" default:"2m"`
}

// Validate checks the cron expression when the digest is enabled
func (c DigestConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	var result error
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid digest schedule %q: %w", c.Schedule, err))
	}
	if c.RunTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("digest run_timeout must be greater than 0"))
	}
	return result
}
