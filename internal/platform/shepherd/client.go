// Package shepherd is the HTTP client for the external worker orchestrator.
// The orchestrator provisions "flocks": worker groups of one browser container
// plus its auxiliary services (display server, automation driver).
package shepherd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"crawlmanager/internal/logger"
)

// ErrUnavailable wraps transport-level failures talking to the orchestrator.
var ErrUnavailable = fmt.Errorf("orchestrator unavailable")

// FlockOptions is the body of a request_flock call.
type FlockOptions struct {
	Overrides  map[string]string      `json:"overrides"`
	Deferred   map[string]bool        `json:"deferred"`
	UserParams map[string]interface{} `json:"user_params"`
	Environ    map[string]string      `json:"environ"`
}

// FlockResponse is the orchestrator's reply to any flock operation. A non-empty
// Error is a per-call failure reported by the orchestrator itself, as opposed
// to a transport failure.
type FlockResponse struct {
	ReqID string `json:"reqid,omitempty"`
	Error string `json:"error,omitempty"`
}

type Client struct {
	apiURL string
	flock  string
	pool   string
	http   *http.Client
	log    *logger.Logger
}

type Options struct {
	BaseURL string
	Flock   string
	Pool    string
}

func New(opts Options) *Client {
	return &Client{
		apiURL: opts.BaseURL + "/api",
		flock:  opts.Flock,
		pool:   opts.Pool,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    logger.New("Shepherd"),
	}
}

// RequestFlock asks the orchestrator to provision a worker group with the
// supplied options. The response carries either a request id or an error.
func (c *Client) RequestFlock(ctx context.Context, opts FlockOptions) (FlockResponse, error) {
	path := fmt.Sprintf("/request_flock/%s?pool=%s", url.PathEscape(c.flock), url.QueryEscape(c.pool))
	return c.do(ctx, path, opts)
}

// StartFlock asks the orchestrator to start a previously requested worker group.
func (c *Client) StartFlock(ctx context.Context, reqID string) (FlockResponse, error) {
	body := map[string]interface{}{"environ": map[string]string{"REQ_ID": reqID}}
	return c.do(ctx, "/start_flock/"+url.PathEscape(reqID), body)
}

// StopFlock asks the orchestrator to stop a worker group.
func (c *Client) StopFlock(ctx context.Context, reqID string) (FlockResponse, error) {
	return c.do(ctx, "/stop_flock/"+url.PathEscape(reqID), nil)
}

// Close releases idle connections. Best-effort, never fails.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, path string, body interface{}) (FlockResponse, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return FlockResponse{}, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, &buf)
	if err != nil {
		return FlockResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		c.log.LogErrorf("orchestrator request %s failed: %v", path, err)
		return FlockResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	var out FlockResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		c.log.LogErrorf("orchestrator response %s unreadable: %v", path, err)
		return FlockResponse{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return out, nil
}
