package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// MetricsConfig controls the Prometheus collectors and where they are served.
// By default the registry is mounted on the API listener; ExposeMetrics moves
// it to a dedicated listener, bound to loopback unless Host says otherwise,
// since the assistant usually runs on a personal machine.
type MetricsConfig struct {
	// EnableHTTPMetrics counts API responses by status and times them
	EnableHTTPMetrics bool `env:"METRICS_ENABLE_HTTP" yaml:"enable_http_metrics" default:"true"`

	// EnableJobMetrics counts background writes (total, success, failed, killed, dropped)
	EnableJobMetrics bool `env:"METRICS_ENABLE_JOB" yaml:"enable_job_metrics" default:"true"`

	// Path is where the registry is served, on either listener
	Path string `env:"METRICS_PATH" yaml:"metrics_path" default:"/metrics"`

	ExposeMetrics bool   `env:"METRICS_EXPOSE" yaml:"expose_metrics" default:"false"`
	Host          string `env:"METRICS_HOST" yaml:"metrics_host" default:"127.0.0.1"`
	Port          int    `env:"METRICS_PORT" yaml:"metrics_port" default:"9464"`
}

// Validate checks the path, and the port when the dedicated listener is on.
func (m MetricsConfig) Validate() error {
	var result error
	if !strings.HasPrefix(m.Path, "/") {
		result = multierror.Append(result, fmt.Errorf("metrics path must start with /, got %q", m.Path))
	}
	if m.ExposeMetrics && (m.Port < 1 || m.Port > 65535) {
		result = multierror.Append(result, fmt.Errorf("metrics port must be between 1-65535, got %d", m.Port))
	}
	return result
}

// Addr returns host:port for the dedicated listener.
func (m MetricsConfig) Addr() string {
	return net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
}
