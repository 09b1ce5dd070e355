package provider

import (
	"errors"
	"net"
	"net/http"

	"github.com/enrichloop/core/internal/enrichment"
)

// MapStatus applies the standard HTTP status → normalized error code
// mapping rules from §4.2. Every provider adapter funnels its HTTP
// responses through this so the taxonomy stays centralized.
func MapStatus(status int, message string) *enrichment.Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return enrichment.NewError(enrichment.CodeAuth, message)
	case status == http.StatusNotFound:
		return enrichment.NewError(enrichment.CodeNotFound, message)
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return enrichment.NewError(enrichment.CodeInvalidInput, message)
	case status == http.StatusTooManyRequests:
		return enrichment.NewError(enrichment.CodeRateLimit, message)
	case status >= 500:
		return enrichment.NewError(enrichment.CodeProviderUnavailable, message)
	default:
		return enrichment.NewError(enrichment.CodeInternal, message)
	}
}

// MapTransportError maps a network/DNS-layer error (no HTTP response at
// all) to TIMEOUT when it is a net.Error timeout and to
// PROVIDER_UNAVAILABLE otherwise, per §4.2.
func MapTransportError(err error) *enrichment.Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return enrichment.NewError(enrichment.CodeTimeout, "request timed out")
	}
	return enrichment.NewError(enrichment.CodeProviderUnavailable, err.Error())
}
