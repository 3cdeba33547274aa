// Package httpmiddleware assembles the chi middleware stack for the API.
package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/lewisedginton/friday_assistant/pkg/logger"
	"github.com/lewisedginton/friday_assistant/pkg/metrics"
)

// Config holds configuration for HTTP middleware application.
// Use DefaultConfig() for sensible defaults, then customize as needed.
type Config struct {
	Logger   logger.Logger    // Required for logging and recovery logs
	Metrics  *metrics.Metrics // Optional Prometheus HTTP counters
	CORS     *CORSConfig
	Security *secure.Options // nil uses the secure package defaults
	Timeout  time.Duration
	// MaxBodyBytes caps request bodies; zero disables the cap
	MaxBodyBytes int64

	EnableCorrelationID bool
	EnableLogging       bool // requires Logger
	EnableRecovery      bool
	EnableCORS          bool
	EnableSecurity      bool
	EnableCompression   bool
	EnableHeartbeat     bool // serves /ping
	EnableRealIP        bool
	// EnableTimeout should stay off on routers that serve websockets
	EnableTimeout bool
}

// DefaultConfig returns a production-ready middleware configuration.
// Logging is disabled by default - set Logger and EnableLogging=true to enable.
func DefaultConfig() Config {
	corsConfig := DefaultCORSConfig()
	return Config{
		CORS:         &corsConfig,
		Timeout:      60 * time.Second,
		MaxBodyBytes: 1 << 20,

		EnableCorrelationID: true,
		EnableRecovery:      true,
		EnableCORS:          true,
		EnableSecurity:      true,
		EnableCompression:   true,
		EnableHeartbeat:     true,
		EnableRealIP:        true,
		EnableTimeout:       true,
	}
}

// ApplyToRouter applies the configured middleware to a chi router.
// First applied is the outermost layer:
//
//	correlation ID, security headers, real IP, metrics, logging, recovery,
//	CORS, body limit, timeout, compression, heartbeat
func ApplyToRouter(router chi.Router, config Config) {
	for _, mw := range Stack(config) {
		router.Use(mw)
	}
}

// WithLogger applies DefaultConfig with logging enabled.
func WithLogger(router chi.Router, log logger.Logger) {
	config := DefaultConfig()
	config.Logger = log
	config.EnableLogging = true
	ApplyToRouter(router, config)
}

// Stack returns the configured middleware in execution order.
func Stack(config Config) []func(http.Handler) http.Handler {
	var stack []func(http.Handler) http.Handler

	if config.EnableCorrelationID {
		stack = append(stack, CorrelationID())
	}
	if config.EnableSecurity {
		stack = append(stack, Security(config.Security))
	}
	if config.EnableRealIP {
		stack = append(stack, middleware.RealIP)
	}
	if config.Metrics != nil {
		stack = append(stack, config.Metrics.HTTPMiddleware())
	}
	if config.EnableLogging && config.Logger != nil {
		stack = append(stack, logger.HTTPMiddleware(config.Logger))
	}
	if config.EnableRecovery {
		rc := DefaultRecoveryConfig()
		rc.Logger = config.Logger
		stack = append(stack, Recovery(rc))
	}
	if config.EnableCORS && config.CORS != nil {
		stack = append(stack, CORS(*config.CORS))
	}
	if config.MaxBodyBytes > 0 {
		stack = append(stack, middleware.RequestSize(config.MaxBodyBytes))
	}
	if config.EnableTimeout && config.Timeout > 0 {
		stack = append(stack, middleware.Timeout(config.Timeout))
	}
	if config.EnableCompression {
		stack = append(stack, middleware.Compress(5, "application/json", "text/plain"))
	}
	if config.EnableHeartbeat {
		stack = append(stack, middleware.Heartbeat("/ping"))
	}
	return stack
}
