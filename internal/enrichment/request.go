package enrichment

import "time"

// Options carries per-request overrides.
type Options struct {
	Timeout    time.Duration `json:"timeout,omitempty"`
	Retries    int           `json:"retries,omitempty"`
	WebhookURL string        `json:"webhook_url,omitempty"`
}

// Request is the normalized shape every provider adapter receives.
// Params holds operation-specific input as a loosely-typed map so the
// dispatcher and worker never need to know a provider's wire schema.
type Request struct {
	Operation Operation      `json:"operation"`
	Params    map[string]any `json:"params"`
	Options   Options        `json:"options,omitempty"`
}

// Metadata is always populated on a Response, regardless of outcome.
type Metadata struct {
	Provider        string `json:"provider"`
	Operation       string `json:"operation"`
	CreditsUsed     int    `json:"credits_used"`
	ResponseTimeMs  int64  `json:"response_time_ms"`
	RequestID       string `json:"request_id"`
}

// Response is the normalized shape every provider adapter returns.
// Exactly one of Data/Err is populated.
type Response struct {
	Success  bool     `json:"success"`
	Data     any      `json:"data,omitempty"`
	Err      *Error   `json:"error,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// Failure builds a terminal failure Response carrying the given normalized
// error and metadata already stamped by the dispatcher.
func Failure(err *Error, meta Metadata) *Response {
	return &Response{Success: false, Err: err, Metadata: meta}
}

// SuccessResponse builds a terminal success Response.
func SuccessResponse(data any, meta Metadata) *Response {
	return &Response{Success: true, Data: data, Metadata: meta}
}
