// Package surfe adapts the Surfe major-database API to the Provider
// contract. Surfe authenticates via OAuth2 client-credentials, so this is
// the one adapter in the pack that exercises golang.org/x/oauth2.
package surfe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/provider"
)

const defaultBaseURL = "https://api.surfe.com/v2"

var supportedOps = []enrichment.Operation{
	enrichment.OpEnrichPerson,
	enrichment.OpEnrichCompany,
	enrichment.OpSearchPeople,
	enrichment.OpSearchCompanies,
	enrichment.OpFindLookalike,
}

// Provider is the Surfe adapter.
type Provider struct {
	desc   provider.Descriptor
	tenant string
	creds  provider.CredentialSource
	client *http.Client
}

// New is a provider.Factory for Surfe.
func New(desc provider.Descriptor, tenant string, creds provider.CredentialSource) (provider.Provider, error) {
	if desc.BaseURL == "" {
		desc.BaseURL = defaultBaseURL
	}
	return &Provider{desc: desc, tenant: tenant, creds: creds}, nil
}

func (p *Provider) ValidateConfig() error {
	if p.desc.BaseURL == "" {
		return enrichment.NewError(enrichment.CodeInternal, "surfe: missing base url")
	}
	return nil
}

func (p *Provider) SupportedOperations() []enrichment.Operation { return supportedOps }

// Authenticate resolves the tenant's client_id:client_secret pair and
// builds an OAuth2 client-credentials HTTP client. The secret material is
// stored as "client_id:client_secret" by convention in the credential
// store; Surfe issues tokens from its own token endpoint.
func (p *Provider) Authenticate(ctx context.Context, tenant string) error {
	secret, err := p.creds.ActiveSecret(ctx, tenant, p.desc.ID)
	if err != nil {
		return enrichment.NewError(enrichment.CodeAuth, "surfe: no active credential")
	}

	clientID, clientSecret, ok := strings.Cut(secret, ":")
	if !ok {
		return enrichment.NewError(enrichment.CodeAuth, "surfe: malformed credential material")
	}

	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     p.desc.BaseURL + "/oauth/token",
	}
	p.client = cfg.Client(ctx)
	return nil
}

func (p *Provider) CalculateCredits(op enrichment.Operation) int {
	switch op {
	case enrichment.OpSearchPeople, enrichment.OpSearchCompanies:
		return 2
	default:
		return 1
	}
}

func (p *Provider) HealthCheck(ctx context.Context) (provider.HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.desc.BaseURL+"/health", nil)
	if err != nil {
		return provider.HealthStatus{}, err
	}
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
		path = "/people/enrich"
	case enrichment.OpEnrichCompany:
		path = "/companies/enrich"
	case enrichment.OpSearchPeople:
		path = "/people/search"
	case enrichment.OpSearchCompanies:
		path = "/companies/search"
	case enrichment.OpFindLookalike:
		path = "/companies/lookalikes"
	default:
		return nil, enrichment.NewError(enrichment.CodeOperationUnsupported,
			fmt.Sprintf("surfe: unsupported operation %q", req.Operation))
	}

	body, err := json.Marshal(req.Params)
	if err != nil {
		return nil, enrichment.NewError(enrichment.CodeInvalidInput, "surfe: marshal params: "+err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.desc.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, enrichment.NewError(enrichment.CodeInternal, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, provider.MapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, provider.MapStatus(resp.StatusCode, "surfe: request failed")
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, enrichment.NewError(enrichment.CodeInternal, "surfe: decode response: "+err.Error())
	}

	meta := enrichment.Metadata{
		Provider:       p.desc.ID,
		Operation:      string(req.Operation),
		CreditsUsed:    p.CalculateCredits(req.Operation),
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
	return enrichment.SuccessResponse(payload, meta), nil
}
