package httpmiddleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// RecoveryConfig holds configuration for the recovery middleware
type RecoveryConfig struct {
	Logger              logger.Logger
	EnableStackTrace    bool
	ResponseMessage     string
	ResponseContentType string
}

// DefaultRecoveryConfig returns a JSON 500 response with stack traces logged
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		EnableStackTrace:    true,
		ResponseMessage:     `{"error":"internal server error"}`,
		ResponseContentType: "application/json",
	}
}

// Recovery returns a middleware that recovers from panics and logs them.
// http.ErrAbortHandler is re-raised so the server can abort the response.
func Recovery(config RecoveryConfig) func(http.Handler) http.Handler {
	log := config.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared as a panic value
					panic(rec)
				}
				logPanic(r, rec, config, log)

				w.Header().Set("Content-Type", config.ResponseContentType)
				w.Header().Set("Connection", "close")
				w.WriteHeader(http.StatusInternalServerError)
				if config.ResponseMessage != "" {
					_, _ = w.Write([]byte(config.ResponseMessage))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func logPanic(r *http.Request, rec any, config RecoveryConfig, log logger.Logger) {
	fields := []logger.LogField{
		logger.StringField("panic_error", fmt.Sprintf("%v", rec)),
		logger.StringField("http_method", r.Method),
		logger.StringField("http_path", r.URL.Path),
		logger.StringField("client_ip", r.RemoteAddr),
		logger.StringField("user_agent", r.UserAgent()),
	}
	if config.EnableStackTrace {
		fields = append(fields, logger.StringField("stack_trace", string(debug.Stack())))
	}
	if r.URL.RawQuery != "" {
		fields = append(fields, logger.StringField("query_params", r.URL.RawQuery))
	}

	logger.GetLoggerFromContext(r.Context(), log).Error("HTTP request panic recovered", fields...)
}
