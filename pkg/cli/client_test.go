package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/sandbox/pkg/mockoon"
	"github.com/getmockd/sandbox/pkg/specs"
)

func TestClientSendsAPIKeyAndDecodes(t *testing.T) {
	var gotKey, gotContentType string
	var gotBody specs.ImportRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(APIKeyHeader)
		gotContentType = r.Header.Get("Content-Type")
		assert.Equal(t, "/api/specs", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"spec_1","name":"Pets","endpoints":[{"method":"GET","path":"/pets"}]}`)
	}))
	defer srv.Close()

	c := NewAdminClient(srv.URL+"/", WithAPIKey("k1"))
	spec, err := c.ImportSpec(context.Background(), "Pets", []byte("openapi: 3.0.0"))
	require.NoError(t, err)

	assert.Equal(t, "k1", gotKey)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "openapi: 3.0.0", gotBody.Content)
	assert.Equal(t, "spec_1", spec.ID)
	assert.Len(t, spec.Endpoints, 1)
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/mockoon/environments/env_x/start":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"environment_not_found","message":"environment not found"}`)
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "upstream down")
		}
	}))
	defer srv.Close()
	c := NewAdminClient(srv.URL)

	_, err := c.StartEnvironment(context.Background(), "env_x")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "environment_not_found: environment not found", err.Error())

	_, err = c.ListEnvironments(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.False(t, IsNotFound(err))
}

func TestClientConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewAdminClient(url).Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "connection_error", apiErr.ErrorCode)
	assert.Contains(t, apiErr.Message, url)
}

func TestClientCreateEnvironment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mockoon.CreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, mockoon.CreateRequest{SpecID: "spec_1", Port: 3005, Start: true}, req)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(mockoon.Record{ID: "env_1", SpecID: req.SpecID, Port: req.Port, Status: mockoon.StatusRunning})
	}))
	defer srv.Close()

	rec, err := NewAdminClient(srv.URL).CreateEnvironment(context.Background(),
		mockoon.CreateRequest{SpecID: "spec_1", Port: 3005, Start: true})
	require.NoError(t, err)
	assert.Equal(t, "env_1", rec.ID)
	assert.Equal(t, mockoon.StatusRunning, rec.Status)
}
