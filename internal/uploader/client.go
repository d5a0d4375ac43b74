// Package uploader is an HTTP client for the datalens service: it submits
// files, polls runs to completion and fans batches out over a bounded
// number of workers.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/datalens/internal/domain/types"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 100 * time.Millisecond
	maxErrorBody        = 4 << 10
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

// WithPollInterval sets how often Wait checks a run.
func WithPollInterval(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.pollInterval = d
		}
	}
}

// Client talks to a datalens server.
type Client struct {
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
}

// New creates a client for baseURL, e.g. "http://localhost:9080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      baseURL,
		http:         &http.Client{Timeout: defaultTimeout},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health checks the metrics endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Submit uploads data for asynchronous analysis. The format is derived by
// the server from filename's extension.
func (c *Client) Submit(ctx context.Context, filename string, data []byte) (types.Submission, error) {
	var sub types.Submission
	err := c.post(ctx, "/runs", filename, data, http.StatusAccepted, &sub)
	return sub, err
}

// Analyze runs the pipeline synchronously and returns the raw result JSON.
func (c *Client) Analyze(ctx context.Context, filename string, data []byte) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.post(ctx, "/analyze", filename, data, http.StatusOK, &out)
	return out, err
}

// Run fetches the status of a run.
func (c *Client) Run(ctx context.Context, id string) (types.RunInfo, error) {
	var info types.RunInfo
	err := c.get(ctx, "/runs/"+url.PathEscape(id), &info)
	return info, err
}

// Part fetches one part of a finished run: summary, report, actions or
// narrative.
func (c *Client) Part(ctx context.Context, id, part string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "/runs/"+url.PathEscape(id)+"/"+url.PathEscape(part), &out)
	return out, err
}

// List returns up to limit runs, newest first.
func (c *Client) List(ctx context.Context, limit int) ([]types.RunInfo, error) {
	var out []types.RunInfo
	err := c.get(ctx, "/runs?limit="+strconv.Itoa(limit), &out)
	return out, err
}

// Wait polls a run until it reaches a terminal status or ctx ends.
// A failed run is returned together with ErrRunFailed.
func (c *Client) Wait(ctx context.Context, id string) (types.RunInfo, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		info, err := c.Run(ctx, id)
		if err != nil {
			return info, err
		}
		if info.Status.Terminal() {
			if info.Status == types.StatusFailed {
				msg := ""
				if info.Failure != nil {
					msg = info.Failure.Code + ": " + info.Failure.Message
				}
				return info, fmt.Errorf("%s %s: %w", id, msg, ErrRunFailed)
			}
			return info, nil
		}
		select {
		case <-ctx.Done():
			return info, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) post(ctx context.Context, path, filename string, data []byte, want int, out any) error {
	u := c.baseURL + path + "?filename=" + url.QueryEscape(filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return c.do(req, want, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, http.StatusOK, out)
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		apiErr := &APIError{Status: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(body, apiErr) != nil {
			apiErr.Message = string(body)
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
