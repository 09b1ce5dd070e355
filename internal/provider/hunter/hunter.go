// Package hunter adapts the Hunter.io email-finder API to the Provider
// contract, authenticating with a static API key passed as a query param.
package hunter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/provider"
)

const defaultBaseURL = "https://api.hunter.io/v2"

var supportedOps = []enrichment.Operation{enrichment.OpFindEmail}

// Provider is the Hunter adapter.
type Provider struct {
	desc   provider.Descriptor
	tenant string
	creds  provider.CredentialSource
	apiKey string
	client *http.Client
}

// New is a provider.Factory for Hunter.
func New(desc provider.Descriptor, tenant string, creds provider.CredentialSource) (provider.Provider, error) {
	if desc.BaseURL == "" {
		desc.BaseURL = defaultBaseURL
	}
	return &Provider{desc: desc, tenant: tenant, creds: creds, client: http.DefaultClient}, nil
}

func (p *Provider) ValidateConfig() error {
	if p.desc.BaseURL == "" {
		return enrichment.NewError(enrichment.CodeInternal, "hunter: missing base url")
	}
	return nil
}

func (p *Provider) SupportedOperations() []enrichment.Operation { return supportedOps }

func (p *Provider) Authenticate(ctx context.Context, tenant string) error {
	key, err := p.creds.ActiveSecret(ctx, tenant, p.desc.ID)
	if err != nil {
		return enrichment.NewError(enrichment.CodeAuth, "hunter: no active credential")
	}
	p.apiKey = key
	return nil
}

func (p *Provider) CalculateCredits(op enrichment.Operation) int { return 1 }

func (p *Provider) HealthCheck(ctx context.Context) (provider.HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.desc.BaseURL+"/account?api_key="+p.apiKey, nil)
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

type emailFinderResponse struct {
	Data struct {
		Email      string  `json:"email"`
		Score      float64 `json:"score"`
		Verified   bool    `json:"verification_status_valid"`
		FirstName  string  `json:"first_name"`
		LastName   string  `json:"last_name"`
		Position   string  `json:"position"`
		Company    string  `json:"company"`
	} `json:"data"`
}

func (p *Provider) Execute(ctx context.Context, req *enrichment.Request) (*enrichment.Response, error) {
	start := time.Now()

	if req.Operation != enrichment.OpFindEmail {
		return nil, enrichment.NewError(enrichment.CodeOperationUnsupported,
			fmt.Sprintf("hunter: unsupported operation %q", req.Operation))
	}

	firstName, _ := req.Params["first_name"].(string)
	lastName, _ := req.Params["last_name"].(string)
	domain, _ := req.Params["company_domain"].(string)
	if firstName == "" || lastName == "" || domain == "" {
		return nil, enrichment.NewError(enrichment.CodeInvalidInput,
			"hunter: first_name, last_name, and company_domain are required")
	}

	q := url.Values{}
	q.Set("first_name", firstName)
	q.Set("last_name", lastName)
	q.Set("domain", domain)
	q.Set("api_key", p.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.desc.BaseURL+"/email-finder?"+q.Encode(), nil)
	if err != nil {
		return nil, enrichment.NewError(enrichment.CodeInternal, err.Error())
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, provider.MapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, provider.MapStatus(resp.StatusCode, "hunter: request failed")
	}

	var payload emailFinderResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, enrichment.NewError(enrichment.CodeInternal, "hunter: decode response: "+err.Error())
	}

	person := enrichment.Person{
		FirstName:     payload.Data.FirstName,
		LastName:      payload.Data.LastName,
		Email:         payload.Data.Email,
		Title:         payload.Data.Position,
		Company:       payload.Data.Company,
		CompanyDomain: domain,
		Additional: map[string]any{
			"confidence": payload.Data.Score / 100,
			"verified":   payload.Data.Verified,
		},
	}

	meta := enrichment.Metadata{
		Provider:       p.desc.ID,
		Operation:      string(req.Operation),
		CreditsUsed:    p.CalculateCredits(req.Operation),
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
	return enrichment.SuccessResponse(person, meta), nil
}
