package clay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-sync/internal/resilience"
)

func fastRetry() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestAddRow(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tables/tbl-1/rows", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"id": "row-42"}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))
	id, err := c.AddRow(context.Background(), "tbl-1", map[string]any{
		"email":      "a@example.com",
		"first_name": "Ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "row-42", id)

	data := gotBody["data"].(map[string]any)
	assert.Equal(t, "a@example.com", data["email"])
}

func TestAddRowLegacyIDField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"row_id": "row-7"}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))
	id, err := c.AddRow(context.Background(), "tbl-1", map[string]any{"email": "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "row-7", id)
}

func TestAddRowMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))
	_, err := c.AddRow(context.Background(), "tbl-1", map[string]any{"email": "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no row id")
}

func TestGetRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/tables/tbl-1/rows/row-42", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": "row-42", "data": {
			"email": "a@example.com",
			"enriched_job_title": "CTO",
			"company_name": "Acme"
		}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))
	row, err := c.GetRow(context.Background(), "tbl-1", "row-42")
	require.NoError(t, err)

	assert.Equal(t, "row-42", row.Ref())
	assert.Equal(t, "CTO", row.Field("enriched_job_title", "job_title"))
	assert.Equal(t, "Acme", row.Field("enriched_company_name", "company_name"))
	assert.Empty(t, row.Field("enriched_linkedin", "linkedin"))
}

func TestListRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tables/tbl-1/rows", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "50", r.URL.Query().Get("offset"))
		_, _ = w.Write([]byte(`{"rows": [
			{"id": "row-1", "data": {"email": "a@example.com"}},
			{"id": "row-2", "data": {"email": "b@example.com"}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))
	rows, err := c.ListRows(context.Background(), "tbl-1", 25, 50)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "row-1", rows[0].Ref())
}

func TestListRowsLegacyDataField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"row_id": "row-9", "data": {}}]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))
	rows, err := c.ListRows(context.Background(), "tbl-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "row-9", rows[0].Ref())
}

func TestRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id": "row-1", "data": {}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))
	row, err := c.GetRow(context.Background(), "tbl-1", "row-1")
	require.NoError(t, err)
	assert.Equal(t, "row-1", row.Ref())
	assert.Equal(t, int32(2), calls.Load())
}

func TestNotFoundNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))
	_, err := c.GetRow(context.Background(), "tbl-1", "gone")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
