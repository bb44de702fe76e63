package client

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

	"github.com/terra-clan/grade-compass/internal/catalog"
	"github.com/terra-clan/grade-compass/internal/models"
	"github.com/terra-clan/grade-compass/internal/viewmodel"
)

// Client is a Go SDK for the grade-compass JSON API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a client that authenticates with a session token
func NewClient(baseURL, sessionToken string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   sessionToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error envelope returned by the server
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Me is the signed-in principal
type Me struct {
	models.Principal
	IsAdmin bool `json:"is_admin"`
}

// ToggleResult is the selection and view after a toggle
type ToggleResult struct {
	Selection []string           `json:"selection"`
	View      viewmodel.Snapshot `json:"view"`
}

// Me returns the principal the session token belongs to
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.call(ctx, http.MethodGet, "/api/v1/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// ListGrades returns the catalog in rank order
func (c *Client) ListGrades(ctx context.Context) ([]*catalog.Grade, error) {
	var result struct {
		Grades []*catalog.Grade `json:"grades"`
		Total  int              `json:"total"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/grades", nil, &result); err != nil {
		return nil, err
	}
	return result.Grades, nil
}

// GetGrade returns one grade by id
func (c *Client) GetGrade(ctx context.Context, id string) (*catalog.Grade, error) {
	var grade catalog.Grade
	if err := c.call(ctx, http.MethodGet, "/api/v1/grades/"+url.PathEscape(id), nil, &grade); err != nil {
		return nil, err
	}
	return &grade, nil
}

// Scales returns the two positional scales
func (c *Client) Scales(ctx context.Context) ([]viewmodel.Scale, error) {
	var result struct {
		Scales []viewmodel.Scale `json:"scales"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/scales", nil, &result); err != nil {
		return nil, err
	}
	return result.Scales, nil
}

// View returns the derived view of ids. Nil ids asks for the default pair.
func (c *Client) View(ctx context.Context, ids []string) (*viewmodel.Snapshot, error) {
	path := "/api/v1/view"
	if ids != nil {
		path += "?" + url.Values{"g": {strings.Join(ids, ",")}}.Encode()
	}

	var snapshot viewmodel.Snapshot
	if err := c.call(ctx, http.MethodGet, path, nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Toggle flips id within selection and returns the result.
// The server records a comparison when grades remain selected.
func (c *Client) Toggle(ctx context.Context, selection []string, id string) (*ToggleResult, error) {
	req := struct {
		Selection []string `json:"selection,omitempty"`
		ID        string   `json:"id"`
	}{Selection: selection, ID: id}

	var result ToggleResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/selection/toggle", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Stats returns the analytics summary. Admin only.
func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	if err := c.call(ctx, http.MethodGet, "/api/v1/analytics", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	status, body, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &APIError{StatusCode: status, Code: "unhealthy", Message: strings.TrimSpace(string(body))}
	}
	return nil
}

// call performs a request and decodes the envelope's data into out
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	status, respBody, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		if status >= 400 {
			return &APIError{StatusCode: status, Code: "http_error", Message: strings.TrimSpace(string(respBody))}
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success || status >= 400 {
		apiErr := &APIError{StatusCode: status, Code: "unknown", Message: http.StatusText(status)}
		if result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return apiErr
	}

	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// sessions never follow the login redirect
	client := *c.httpClient
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
