// Package apollo adapts the Apollo.io major-database API to the Provider
// contract, authenticating with a static API key.
package apollo

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

const defaultBaseURL = "https://api.apollo.io/v1"

var supportedOps = []enrichment.Operation{
	enrichment.OpEnrichPerson,
	enrichment.OpEnrichCompany,
	enrichment.OpSearchPeople,
	enrichment.OpSearchCompanies,
}

// Provider is the Apollo adapter.
type Provider struct {
	desc   provider.Descriptor
	tenant string
	creds  provider.CredentialSource
	apiKey string
	client *http.Client
}

// New is a provider.Factory for Apollo.
func New(desc provider.Descriptor, tenant string, creds provider.CredentialSource) (provider.Provider, error) {
	if desc.BaseURL == "" {
		desc.BaseURL = defaultBaseURL
	}
	return &Provider{desc: desc, tenant: tenant, creds: creds, client: http.DefaultClient}, nil
}

func (p *Provider) ValidateConfig() error {
	if p.desc.BaseURL == "" {
		return enrichment.NewError(enrichment.CodeInternal, "apollo: missing base url")
	}
	return nil
}

func (p *Provider) SupportedOperations() []enrichment.Operation { return supportedOps }

func (p *Provider) Authenticate(ctx context.Context, tenant string) error {
	key, err := p.creds.ActiveSecret(ctx, tenant, p.desc.ID)
	if err != nil {
		return enrichment.NewError(enrichment.CodeAuth, "apollo: no active credential")
	}
	p.apiKey = key
	return nil
}

func (p *Provider) CalculateCredits(op enrichment.Operation) int {
	switch op {
	case enrichment.OpSearchPeople, enrichment.OpSearchCompanies:
		return 3
	default:
		return 1
	}
}

func (p *Provider) HealthCheck(ctx context.Context) (provider.HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.desc.BaseURL+"/auth/health", nil)
	if err != nil {
		return provider.HealthStatus{}, err
	}
	req.Header.Set("X-Api-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return provider.HealthStatus{OK: false, Message: err.Error()}, nil
	}
	defer resp.Body.Close()
	return provider.HealthStatus{OK: resp.StatusCode < 500}, nil
}

func (p *Provider) Execute(ctx context.Context, req *enrichment.Request) (*enrichment.Response, error) {
	start := time.Now()

	var path string
	switch req.Operation {
	case enrichment.OpEnrichPerson:
		path = "/people/match"
	case enrichment.OpEnrichCompany:
		path = "/organizations/enrich"
	case enrichment.OpSearchPeople:
		path = "/people/search"
	case enrichment.OpSearchCompanies:
		path = "/organizations/search"
	default:
		return nil, enrichment.NewError(enrichment.CodeOperationUnsupported,
			fmt.Sprintf("apollo: unsupported operation %q", req.Operation))
	}

	body, err := json.Marshal(req.Params)
	if err != nil {
		return nil, enrichment.NewError(enrichment.CodeInvalidInput, "apollo: marshal params: "+err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.desc.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, enrichment.NewError(enrichment.CodeInternal, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, provider.MapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, provider.MapStatus(resp.StatusCode, "apollo: request failed")
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, enrichment.NewError(enrichment.CodeInternal, "apollo: decode response: "+err.Error())
	}

	meta := enrichment.Metadata{
		Provider:       p.desc.ID,
		Operation:      string(req.Operation),
		CreditsUsed:    p.CalculateCredits(req.Operation),
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
	return enrichment.SuccessResponse(payload, meta), nil
}
