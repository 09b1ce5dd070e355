// Package middlewares provides standard net/http (chi-compatible) middleware
// for the enrichment edge in cmd/server.
//
// # Request ID
//
// RequestID assigns a unique ID to each request for tracing and debugging.
// It checks incoming headers for existing IDs or generates new ULIDs.
//
//	r := chi.NewRouter()
//	r.Use(middlewares.RequestID())
//
// Pair with RequestIDExtractor() and pkg/logger.New to put "request_id" on
// every log line written during that request:
//
//	log := logger.New(middlewares.RequestIDExtractor())
//
// # Recover
//
// Recover catches panics from a handler — e.g. a malformed provider payload
// tripping a nil-pointer deref deep in a provider adapter — and responds 500
// instead of dropping the connection for every other in-flight tenant.
//
//	r.Use(middlewares.Recover(middlewares.WithRecoverLogger(log)))
//
// # Timeout
//
// Timeout bounds the request context lifetime. Handlers that call through
// internal/dispatch inherit this deadline, which the dispatcher intersects
// with its own per-request timeout.
//
//	r.Use(middlewares.Timeout(30 * time.Second))
//
// # CORS
//
// CORS handles Cross-Origin Resource Sharing for the submit/job-status
// endpoints.
//
//	r.Use(middlewares.CORS(middlewares.WithAllowOrigins("https://app.example.com")))
//
// # Recommended order
//
//	r.Use(
//	    middlewares.CORS(),
//	    middlewares.RequestID(),
//	    middlewares.Recover(middlewares.WithRecoverLogger(log)),
//	    middlewares.Timeout(30*time.Second),
//	)
package middlewares
