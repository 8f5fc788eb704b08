// Package clay provides a client for the Clay enrichment table API:
// pushing rows into a table and reading them back once the enrichment
// waterfall has run.
package clay

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

// Client defines the Clay operations used by this application.
type Client interface {
	// AddRow inserts one row into a table and returns its row id.
	AddRow(ctx context.Context, tableID string, data map[string]any) (string, error)
	// GetRow fetches one row by id.
	GetRow(ctx context.Context, tableID, rowID string) (*Row, error)
	// ListRows pages through a table's rows.
	ListRows(ctx context.Context, tableID string, limit, offset int) ([]Row, error)
}

// Option configures the Clay client.
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

// NewClient creates a Clay client with the given API key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.clay.com/v1",
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

func (c *httpClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		if reqBody, err = json.Marshal(payload); err != nil {
			return nil, eris.Wrap(err, "clay: marshal request")
		}
	}

	p := c.retry
	p.OnRetry = resilience.RetryLogger("clay", method+" "+path)

	return resilience.DoVal(ctx, p, func(ctx context.Context) ([]byte, error) {
		var body io.Reader
		if reqBody != nil {
			body = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, eris.Wrap(err, "clay: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "clay: request failed")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "clay: read response body")
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := eris.Errorf("clay: %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		return respBody, nil
	})
}

func (c *httpClient) AddRow(ctx context.Context, tableID string, data map[string]any) (string, error) {
	path := fmt.Sprintf("/tables/%s/rows", tableID)
	body, err := c.do(ctx, http.MethodPost, path, map[string]any{"data": data})
	if err != nil {
		return "", err
	}

	// Row creation responses carry the id under either "id" or "row_id"
	// depending on API version.
	var resp struct {
		ID    string `json:"id"`
		RowID string `json:"row_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", eris.Wrap(err, "clay: decode add row response")
	}
	id := resp.ID
	if id == "" {
		id = resp.RowID
	}
	if id == "" {
		return "", eris.New("clay: add row response carried no row id")
	}
	return id, nil
}

func (c *httpClient) GetRow(ctx context.Context, tableID, rowID string) (*Row, error) {
	path := fmt.Sprintf("/tables/%s/rows/%s", tableID, rowID)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var row Row
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, eris.Wrap(err, "clay: decode row")
	}
	return &row, nil
}

func (c *httpClient) ListRows(ctx context.Context, tableID string, limit, offset int) ([]Row, error) {
	path := fmt.Sprintf("/tables/%s/rows?limit=%d&offset=%d", tableID, limit, offset)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	// List responses carry rows under "rows" or "data" depending on API
	// version.
	var resp struct {
		Rows []Row `json:"rows"`
		Data []Row `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "clay: decode list rows response")
	}
	if resp.Rows != nil {
		return resp.Rows, nil
	}
	return resp.Data, nil
}
