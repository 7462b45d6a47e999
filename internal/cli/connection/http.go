package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/meshnode-go/internal/infra/buildinfo"
	"github.com/yndnr/meshnode-go/internal/server/httpserver"
)

// DefaultTimeout bounds one status request.
const DefaultTimeout = 10 * time.Second

// StatusClient queries the /state and /health routes of a node.
type StatusClient struct {
	baseURL string
	client  *http.Client
}

// NewStatusClient creates a client for the listener at addr. A missing
// scheme means http.
func NewStatusClient(addr string) *StatusClient {
	baseURL := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &StatusClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// BaseURL returns the base URL of the client.
func (c *StatusClient) BaseURL() string {
	return c.baseURL
}

// State fetches the attachment state of the node.
func (c *StatusClient) State(ctx context.Context) (*httpserver.StateResponse, error) {
	var out httpserver.StateResponse
	if err := c.get(ctx, "/state", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health fetches daemon reachability. A 503 answer is decoded, not
// treated as a transport error.
func (c *StatusClient) Health(ctx context.Context) (*httpserver.HealthResponse, error) {
	var out httpserver.HealthResponse
	if err := c.get(ctx, "/health", &out, http.StatusServiceUnavailable); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StatusClient) get(ctx context.Context, path string, target any, okStatus ...int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "meshnode/"+buildinfo.Get().Version)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return ParseResponse(resp, target, okStatus...)
}

// ParseResponse parses a JSON response body into target. Statuses of 400
// and above are errors unless listed in okStatus.
func ParseResponse(resp *http.Response, target any, okStatus ...int) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && !contains(okStatus, resp.StatusCode) {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("[%s] %s", errResp.Code, errResp.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
