package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getmockd/sandbox/pkg/admin"
	"github.com/getmockd/sandbox/pkg/analytics"
	"github.com/getmockd/sandbox/pkg/mockoon"
	"github.com/getmockd/sandbox/pkg/specs"
)

// APIKeyHeader is the HTTP header for API key authentication.
const APIKeyHeader = admin.APIKeyHeader

// AdminClient talks to a running sandboxd admin API.
type AdminClient interface {
	// Health checks if the server is running.
	Health(ctx context.Context) error
	// Status returns the server status.
	Status(ctx context.Context) (*admin.StatusResponse, error)

	ListSpecs(ctx context.Context) ([]*specs.Spec, error)
	// ImportSpec uploads an OpenAPI document. An empty name uses the
	// document title.
	ImportSpec(ctx context.Context, name string, content []byte) (*specs.Spec, error)
	DeleteSpec(ctx context.Context, id string) error

	ListEnvironments(ctx context.Context) ([]*mockoon.Record, error)
	CreateEnvironment(ctx context.Context, req mockoon.CreateRequest) (*mockoon.Record, error)
	StartEnvironment(ctx context.Context, id string) (*mockoon.Record, error)
	StopEnvironment(ctx context.Context, id string) (*mockoon.Record, error)
	RestartEnvironment(ctx context.Context, id string) (*mockoon.Record, error)
	// EnhanceEnvironment regenerates response bodies with the AI enhancer.
	EnhanceEnvironment(ctx context.Context, id, hint string) (*admin.EnhanceEnvironmentResponse, error)

	// AnalyticsSummary aggregates recorded calls, optionally for one
	// environment.
	AnalyticsSummary(ctx context.Context, environmentID string) (*analytics.Summary, error)
}

// APIError is an error response from the admin API.
type APIError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
	}
	return e.Message
}

// IsNotFound reports whether err is a 404 from the admin API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type adminClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

// ClientOption configures an adminClient.
type ClientOption func(*adminClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *adminClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithAPIKey sends key with every request.
func WithAPIKey(key string) ClientOption {
	return func(c *adminClient) {
		c.apiKey = key
	}
}

// NewAdminClient creates a client for the admin API at baseURL.
func NewAdminClient(baseURL string, opts ...ClientOption) AdminClient {
	c := &adminClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// Environment enhancement waits on the AI provider.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *adminClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, "", nil)
}

func (c *adminClient) Status(ctx context.Context) (*admin.StatusResponse, error) {
	var out admin.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *adminClient) ListSpecs(ctx context.Context) ([]*specs.Spec, error) {
	var out struct {
		Specs []*specs.Spec `json:"specs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/specs", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Specs, nil
}

func (c *adminClient) ImportSpec(ctx context.Context, name string, content []byte) (*specs.Spec, error) {
	body, err := json.Marshal(specs.ImportRequest{Name: name, Content: string(content)})
	if err != nil {
		return nil, err
	}
	var out specs.Spec
	if err := c.do(ctx, http.MethodPost, "/api/specs", body, "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *adminClient) DeleteSpec(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/specs/"+url.PathEscape(id), nil, "", nil)
}

func (c *adminClient) ListEnvironments(ctx context.Context) ([]*mockoon.Record, error) {
	var out struct {
		Environments []*mockoon.Record `json:"environments"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/mockoon/environments", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Environments, nil
}

func (c *adminClient) CreateEnvironment(ctx context.Context, req mockoon.CreateRequest) (*mockoon.Record, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out mockoon.Record
	if err := c.do(ctx, http.MethodPost, "/api/mockoon/environments", body, "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *adminClient) StartEnvironment(ctx context.Context, id string) (*mockoon.Record, error) {
	return c.lifecycle(ctx, id, "start")
}

func (c *adminClient) StopEnvironment(ctx context.Context, id string) (*mockoon.Record, error) {
	return c.lifecycle(ctx, id, "stop")
}

func (c *adminClient) RestartEnvironment(ctx context.Context, id string) (*mockoon.Record, error) {
	return c.lifecycle(ctx, id, "restart")
}

func (c *adminClient) lifecycle(ctx context.Context, id, action string) (*mockoon.Record, error) {
	var out mockoon.Record
	path := "/api/mockoon/environments/" + url.PathEscape(id) + "/" + action
	if err := c.do(ctx, http.MethodPost, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *adminClient) EnhanceEnvironment(ctx context.Context, id, hint string) (*admin.EnhanceEnvironmentResponse, error) {
	body, err := json.Marshal(admin.EnhanceEnvironmentRequest{Hint: hint})
	if err != nil {
		return nil, err
	}
	var out admin.EnhanceEnvironmentResponse
	path := "/api/mockoon/environments/" + url.PathEscape(id) + "/enhance"
	if err := c.do(ctx, http.MethodPost, path, body, "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *adminClient) AnalyticsSummary(ctx context.Context, environmentID string) (*analytics.Summary, error) {
	path := "/api/analytics/summary"
	if environmentID != "" {
		path += "?environmentId=" + url.QueryEscape(environmentID)
	}
	var out analytics.Summary
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends a request and decodes a 2xx JSON response into out when it is
// not nil. Other responses become an *APIError.
func (c *adminClient) do(ctx context.Context, method, path string, body []byte, contentType string, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{
			ErrorCode: "connection_error",
			Message:   fmt.Sprintf("cannot connect to admin API at %s: %v", c.baseURL, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// parseError converts an error response into an *APIError.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorCode:  errResp.Error,
			Message:    errResp.Message,
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
