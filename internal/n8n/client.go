// Package n8n is a client for the n8n public REST API and for n8n webhook
// triggers.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shonenark/ark-gateway/internal/domain"
)

const (
	// HeaderAuthorization sends the key as a bearer token.
	HeaderAuthorization = "Authorization"
	// HeaderAPIKey is n8n's native API key header.
	HeaderAPIKey = "X-N8N-API-KEY"

	pageSize = 250
	// maxPages bounds cursor pagination in case the remote keeps returning a cursor.
	maxPages = 100
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithAuthHeader sets the header used to send the API key. "Authorization"
// (the default) sends "Bearer <key>"; any other name sends the raw key.
func WithAuthHeader(name string) ClientOption {
	return func(c *Client) {
		if name != "" {
			c.authHeader = http.CanonicalHeaderKey(name)
		}
	}
}

// Client talks to the n8n workflow API rooted at baseURL, e.g.
// https://n8n.example.com/api/v1.
type Client struct {
	baseURL    string
	apiKey     string
	authHeader string
	httpClient *http.Client
}

// NewClient creates a new n8n API client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		authHeader: HeaderAuthorization,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// workflowPayload holds the fields n8n accepts on create and update. id,
// active and tags are read-only there and must not be sent.
type workflowPayload struct {
	Name        string                            `json:"name"`
	Nodes       []domain.Node                     `json:"nodes"`
	Connections map[string]domain.NodeConnections `json:"connections"`
	Settings    map[string]any                    `json:"settings"`
	StaticData  any                               `json:"staticData,omitempty"`
}

func payloadFor(def *domain.WorkflowDefinition) workflowPayload {
	p := workflowPayload{
		Name:        def.Name,
		Nodes:       def.Nodes,
		Connections: def.Connections,
		Settings:    def.Settings,
		StaticData:  def.StaticData,
	}
	if p.Connections == nil {
		p.Connections = map[string]domain.NodeConnections{}
	}
	if p.Settings == nil {
		p.Settings = map[string]any{}
	}
	return p
}

type listResponse struct {
	Data       []domain.RemoteWorkflow `json:"data"`
	NextCursor *string                 `json:"nextCursor"`
}

// Ping performs the pre-flight check: a single listing request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "connection test", http.MethodGet, "/workflows?limit=1", nil)
	return err
}

// ListWorkflows fetches every remote workflow, following nextCursor.
func (c *Client) ListWorkflows(ctx context.Context) ([]domain.RemoteWorkflow, error) {
	var all []domain.RemoteWorkflow
	cursor := ""

	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		q.Set("limit", fmt.Sprint(pageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		body, err := c.do(ctx, "list workflows", http.MethodGet, "/workflows?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}

		// Older deployments answer with a bare array.
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var items []domain.RemoteWorkflow
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return nil, fmt.Errorf("list workflows: decode response: %w", err)
			}
			return append(all, items...), nil
		}

		var resp listResponse
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return nil, fmt.Errorf("list workflows: decode response: %w", err)
		}
		all = append(all, resp.Data...)

		if resp.NextCursor == nil || *resp.NextCursor == "" {
			return all, nil
		}
		cursor = *resp.NextCursor
	}

	// A truncated listing would let the reconciler create a duplicate.
	return nil, fmt.Errorf("list workflows: more than %d pages", maxPages)
}

// CreateWorkflow creates a workflow and returns the remote record.
func (c *Client) CreateWorkflow(ctx context.Context, def *domain.WorkflowDefinition) (*domain.RemoteWorkflow, error) {
	return c.write(ctx, "create workflow", http.MethodPost, "/workflows", def)
}

// UpdateWorkflow replaces the remote workflow with the given id.
func (c *Client) UpdateWorkflow(ctx context.Context, id string, def *domain.WorkflowDefinition) (*domain.RemoteWorkflow, error) {
	return c.write(ctx, "update workflow", http.MethodPut, "/workflows/"+url.PathEscape(id), def)
}

// ActivateWorkflow activates the remote workflow with the given id.
func (c *Client) ActivateWorkflow(ctx context.Context, id string) error {
	_, err := c.do(ctx, "activate workflow", http.MethodPost, "/workflows/"+url.PathEscape(id)+"/activate", nil)
	return err
}

func (c *Client) write(ctx context.Context, op, method, path string, def *domain.WorkflowDefinition) (*domain.RemoteWorkflow, error) {
	body, err := json.Marshal(payloadFor(def))
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", op, err)
	}

	respBody, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return nil, err
	}

	var wf domain.RemoteWorkflow
	if err := json.Unmarshal(respBody, &wf); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if wf.ID == "" {
		return nil, fmt.Errorf("%s: response carried no workflow id", op)
	}
	return &wf, nil
}

// do sends one request. Transport failures wrap domain.ErrConnectivity;
// non-2xx answers become *domain.RemoteError.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	c.setHeaders(req, body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, domain.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authHeader == HeaderAuthorization {
		req.Header.Set(HeaderAuthorization, "Bearer "+c.apiKey)
	} else {
		req.Header.Set(c.authHeader, c.apiKey)
	}
}
