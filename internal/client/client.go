// Package client is a typed HTTP client for the engine's API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/binjactl/uiengine/internal/ipc"
	"github.com/binjactl/uiengine/internal/workflow"
)

// DefaultBaseURL is the engine's default listen address.
const DefaultBaseURL = "http://127.0.0.1:9009"

// Client talks to a running engine.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a Client. A zero timeout leaves requests unbounded apart from
// the caller's context; quit runs with a save can take minutes.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	ipc.APIError
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s (code %d)", e.Status, e.Message, e.Code)
}

// Open calls POST /ui/open.
func (c *Client) Open(ctx context.Context, req ipc.OpenRequest) (*ipc.Envelope, error) {
	var env ipc.Envelope
	return &env, c.do(ctx, http.MethodPost, "/ui/open", req, &env)
}

// Quit calls POST /ui/quit.
func (c *Client) Quit(ctx context.Context, req ipc.QuitRequest) (*ipc.Envelope, error) {
	var env ipc.Envelope
	return &env, c.do(ctx, http.MethodPost, "/ui/quit", req, &env)
}

// Statusbar calls POST /ui/statusbar.
func (c *Client) Statusbar(ctx context.Context, req ipc.StatusbarRequest) (*ipc.Envelope, error) {
	var env ipc.Envelope
	return &env, c.do(ctx, http.MethodPost, "/ui/statusbar", req, &env)
}

// Views calls GET /ui/views.
func (c *Client) Views(ctx context.Context) (*ipc.Envelope, error) {
	var env ipc.Envelope
	return &env, c.do(ctx, http.MethodGet, "/ui/views", nil, &env)
}

// Status calls GET /status.
func (c *Client) Status(ctx context.Context) (*workflow.StatusSnapshot, error) {
	var st workflow.StatusSnapshot
	return &st, c.do(ctx, http.MethodGet, "/status", nil, &st)
}

// Runs calls GET /api/v1/runs.
func (c *Client) Runs(ctx context.Context, endpoint string, limit int) ([]ipc.RunRecord, error) {
	q := url.Values{}
	if endpoint != "" {
		q.Set("endpoint", endpoint)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var runs []ipc.RunRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// Run calls GET /api/v1/runs/{runID}.
func (c *Client) Run(ctx context.Context, runID string) (*ipc.RunRecord, error) {
	var run ipc.RunRecord
	return &run, c.do(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(runID), nil, &run)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&se.APIError); err != nil {
			se.Message = http.StatusText(resp.StatusCode)
		}
		return se
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
