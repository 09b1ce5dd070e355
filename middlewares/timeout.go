package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout is the default request timeout.
const DefaultTimeout = 30 * time.Second

type timeoutConfig struct {
	logger *slog.Logger
}

// TimeoutOption configures the Timeout middleware.
type TimeoutOption func(*timeoutConfig)

// WithTimeoutLogger sets the logger used to report timed-out requests.
func WithTimeoutLogger(l *slog.Logger) TimeoutOption {
	return func(cfg *timeoutConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// Timeout returns chi-compatible middleware that bounds request context
// lifetime. Handlers that call a provider through internal/dispatch inherit
// this deadline via r.Context(), which the dispatcher intersects with its
// own per-request timeout (min(request.timeout, remaining_job_deadline) per
// SPEC_FULL.md §5) so a slow edge client can never hold a provider
// rate-limit slot open indefinitely.
//
// Note: the handler goroutine keeps running after the deadline fires; only
// its context is cancelled. Handlers must observe ctx.Done() to stop early.
func Timeout(timeout time.Duration, opts ...TimeoutOption) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cfg := &timeoutConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(w, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					cfg.logger.WarnContext(ctx, "request timeout",
						"timeout", timeout.String(),
						"request_id", GetRequestID(ctx),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					_, _ = w.Write([]byte(`{"error":{"code":"TIMEOUT","message":"request timeout"}}`))
				}
				<-done
			}
		})
	}
}
