// Package betterenrich adapts the BetterEnrich ai-research API to the
// Provider contract. BetterEnrich operations are asynchronous: Execute
// returns an enrichment-id and PENDING status, and the dispatcher's async
// poller (C8) drives Poll until a terminal state is reached.
package betterenrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/provider"
)

const defaultBaseURL = "https://api.betterenrich.ai/v1"

var supportedOps = []enrichment.Operation{
	enrichment.OpEnrichPerson,
	enrichment.OpEnrichCompany,
}

// Provider is the BetterEnrich adapter. It implements provider.AsyncPoller.
type Provider struct {
	desc   provider.Descriptor
	tenant string
	creds  provider.CredentialSource
	apiKey string
	client *http.Client
}

// New is a provider.Factory for BetterEnrich.
func New(desc provider.Descriptor, tenant string, creds provider.CredentialSource) (provider.Provider, error) {
	if desc.BaseURL == "" {
		desc.BaseURL = defaultBaseURL
	}
	return &Provider{desc: desc, tenant: tenant, creds: creds, client: http.DefaultClient}, nil
}

func (p *Provider) ValidateConfig() error {
	if p.desc.BaseURL == "" {
		return enrichment.NewError(enrichment.CodeInternal, "betterenrich: missing base url")
	}
	return nil
}

func (p *Provider) SupportedOperations() []enrichment.Operation { return supportedOps }

func (p *Provider) Authenticate(ctx context.Context, tenant string) error {
	key, err := p.creds.ActiveSecret(ctx, tenant, p.desc.ID)
	if err != nil {
		return enrichment.NewError(enrichment.CodeAuth, "betterenrich: no active credential")
	}
	p.apiKey = key
	return nil
}

func (p *Provider) CalculateCredits(op enrichment.Operation) int { return 2 }

func (p *Provider) HealthCheck(ctx context.Context) (provider.HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.desc.BaseURL+"/status", nil)
	if err != nil {
		return provider.HealthStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return provider.HealthStatus{OK: false, Message: err.Error()}, nil
	}
	defer resp.Body.Close()
	return provider.HealthStatus{OK: resp.StatusCode < 500}, nil
}

type submitResponse struct {
	EnrichmentID string `json:"enrichment_id"`
	Status       string `json:"status"`
}

// Execute submits the enrichment job and returns the initial
// {enrichment_id, status} pair as response data. The dispatcher recognizes
// this provider as an AsyncPoller and continues polling before returning
// a final response to the caller.
func (p *Provider) Execute(ctx context.Context, req *enrichment.Request) (*enrichment.Response, error) {
	start := time.Now()

	var path string
	switch req.Operation {
	case enrichment.OpEnrichPerson:
		path = "/enrich/person"
	case enrichment.OpEnrichCompany:
		path = "/enrich/company"
	default:
		return nil, enrichment.NewError(enrichment.CodeOperationUnsupported,
			fmt.Sprintf("betterenrich: unsupported operation %q", req.Operation))
	}

	body, err := json.Marshal(req.Params)
	if err != nil {
		return nil, enrichment.NewError(enrichment.CodeInvalidInput, "betterenrich: marshal params: "+err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.desc.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, enrichment.NewError(enrichment.CodeInternal, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, provider.MapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, provider.MapStatus(resp.StatusCode, "betterenrich: submit failed")
	}

	var sub submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, enrichment.NewError(enrichment.CodeInternal, "betterenrich: decode response: "+err.Error())
	}

	meta := enrichment.Metadata{
		Provider:       p.desc.ID,
		Operation:      string(req.Operation),
		CreditsUsed:    p.CalculateCredits(req.Operation),
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
	return enrichment.SuccessResponse(map[string]any{
		"enrichment_id": sub.EnrichmentID,
		"status":        sub.Status,
	}, meta), nil
}

type pollResponse struct {
	Status  string         `json:"status"`
	Payload map[string]any `json:"payload"`
}

// Poll fetches the current state of an in-flight enrichment.
func (p *Provider) Poll(ctx context.Context, enrichmentID string) (provider.PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.desc.BaseURL+"/enrich/"+enrichmentID, nil)
	if err != nil {
		return provider.PollResult{}, enrichment.NewError(enrichment.CodeInternal, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return provider.PollResult{}, provider.MapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return provider.PollResult{}, provider.MapStatus(resp.StatusCode, "betterenrich: poll failed")
	}

	var payload pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return provider.PollResult{}, enrichment.NewError(enrichment.CodeInternal, "betterenrich: decode poll: "+err.Error())
	}

	return provider.PollResult{
		Status: provider.PollStatus(payload.Status),
		Data:   payload.Payload,
	}, nil
}
