// Package attio provides a client for the Attio CRM REST API, covering the
// record query/update and company operations the sync pipeline needs.
package attio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-sync/internal/resilience"
)

// Client defines the Attio operations used by this application.
type Client interface {
	// QueryPeople queries person records.
	QueryPeople(ctx context.Context, q Query) ([]Person, error)
	// UpdatePerson applies a partial values update to one person record.
	UpdatePerson(ctx context.Context, recordID string, values map[string]any) error
	// QueryCompanies queries company records.
	QueryCompanies(ctx context.Context, q Query) ([]CompanyRecord, error)
	// CreateCompany creates a company record.
	CreateCompany(ctx context.Context, values map[string]any) (*CompanyRecord, error)
}

// Option configures the Attio client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.Policy
}

// NewClient creates an Attio client with the given API token.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.attio.com/v2",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do executes one request with transient-status retries and returns the
// response body. Non-2xx statuses become errors; 408/429/5xx are wrapped
// as transient so the retry policy and callers' breakers can classify them.
func (c *httpClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		if reqBody, err = json.Marshal(payload); err != nil {
			return nil, eris.Wrap(err, "attio: marshal request")
		}
	}

	p := c.retry
	p.OnRetry = resilience.RetryLogger("attio", method+" "+path)

	return resilience.DoVal(ctx, p, func(ctx context.Context) ([]byte, error) {
		var body io.Reader
		if reqBody != nil {
			body = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, eris.Wrap(err, "attio: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "attio: request failed")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "attio: read response body")
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := eris.Errorf("attio: %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		return respBody, nil
	})
}

func (c *httpClient) QueryPeople(ctx context.Context, q Query) ([]Person, error) {
	body, err := c.do(ctx, http.MethodPost, "/objects/people/records/query", q.payload())
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []Person `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "attio: decode people query response")
	}
	return resp.Data, nil
}

func (c *httpClient) UpdatePerson(ctx context.Context, recordID string, values map[string]any) error {
	path := fmt.Sprintf("/objects/people/records/%s", recordID)
	payload := map[string]any{
		"data": map[string]any{"values": values},
	}
	if _, err := c.do(ctx, http.MethodPatch, path, payload); err != nil {
		return eris.Wrapf(err, "attio: update person %s", recordID)
	}
	return nil
}

func (c *httpClient) QueryCompanies(ctx context.Context, q Query) ([]CompanyRecord, error) {
	body, err := c.do(ctx, http.MethodPost, "/objects/companies/records/query", q.payload())
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []CompanyRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "attio: decode companies query response")
	}
	return resp.Data, nil
}

func (c *httpClient) CreateCompany(ctx context.Context, values map[string]any) (*CompanyRecord, error) {
	payload := map[string]any{
		"data": map[string]any{"values": values},
	}
	body, err := c.do(ctx, http.MethodPost, "/objects/companies/records", payload)
	if err != nil {
		return nil, eris.Wrap(err, "attio: create company")
	}

	var resp struct {
		Data CompanyRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "attio: decode create company response")
	}
	return &resp.Data, nil
}
