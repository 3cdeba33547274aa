package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// WorkerConfig sizes the background write pool
type WorkerConfig struct {
	Workers         int           `env:"WORKER_COUNT" yaml:"workers" default:"2"`
	QueueSize       int           `env:"WORKER_QUEUE_SIZE" yaml:"queue_size" default:"64"`
	TaskTimeout     time.Duration `env:"WORKER_TASK_TIMEOUT" yaml:"task_timeout" default:"30s"`
	ShutdownTimeout time.Duration `env:"WORKER_SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" default:"10s"`
}

// Validate checks WorkerConfig
func (c WorkerConfig) Validate() error {
	var result error
	if c.Workers < 1 {
		result = multierror.Append(result, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.QueueSize < 1 {
		result = multierror.Append(result, fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize))
	}
	if c.TaskTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("task_timeout must be greater than 0"))
	}
	return result
}
