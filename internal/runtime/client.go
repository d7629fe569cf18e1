// Package runtime is the only part of modeldeck that performs network I/O
// against the model daemon. Everything above it depends on the narrow
// Client surface, so tests can point it at an httptest server.
package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultEndpoint = "http://localhost:11434"

type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration // bound for non-streaming calls
}

// NewClient creates a client for the daemon at baseURL. The endpoint is
// passed in explicitly; the client never reads ambient settings.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: timeout,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// ListInstalled returns the daemon's model catalog (GET /api/tags).
func (c *Client) ListInstalled(ctx context.Context) ([]ModelRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, httpError("list models", resp)
	}

	var result struct {
		Models []ModelRecord `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	return result.Models, nil
}

// ListRunning returns the models currently loaded in memory (GET /api/ps).
func (c *Client) ListRunning(ctx context.Context) ([]RunningModelRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/ps", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, httpError("list running models", resp)
	}

	var result struct {
		Models []RunningModelRecord `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode running list: %w", err)
	}
	return result.Models, nil
}

// StreamPull starts a streamed pull of the named model (POST /api/pull) and
// returns the open response body. The caller owns the body and must close
// it; cancelling ctx tears down the underlying connection so the daemon can
// free its transfer slot, not merely stops reads.
//
// No overall timeout is applied: a pull can legitimately run for hours. The
// caller's ctx is the only bound.
func (c *Client) StreamPull(ctx context.Context, name string) (io.ReadCloser, error) {
	payload, _ := json.Marshal(map[string]any{"model": name, "stream": true})

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/pull", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon at %s: %w", c.baseURL, err)
	}
	if resp.StatusCode != 200 {
		defer resp.Body.Close()
		return nil, httpError("pull "+name, resp)
	}
	return resp.Body, nil
}

// Delete removes a model from the daemon (DELETE /api/delete).
func (c *Client) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, _ := json.Marshal(map[string]string{"model": name})
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+"/api/delete", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return httpError("delete "+name, resp)
	}
	return nil
}

// Create builds a new model from Modelfile text (POST /api/create). The
// modelfile is forwarded unparsed; the daemon owns that format.
//
// Like StreamPull, no overall timeout is applied: quantizing or copying
// layers for a large base model can outrun any sensible request bound. The
// caller's ctx is the only limit.
func (c *Client) Create(ctx context.Context, name, modelfile string) error {
	payload, _ := json.Marshal(map[string]any{
		"model":     name,
		"modelfile": modelfile,
		"stream":    false,
	})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/create", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return httpError("create "+name, resp)
	}
	return nil
}

// Show fetches a model's modelfile, parameters and details (POST /api/show).
func (c *Client) Show(ctx context.Context, name string) (*ShowResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, _ := json.Marshal(map[string]string{"model": name})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/show", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, httpError("show "+name, resp)
	}

	var result ShowResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode show response: %w", err)
	}
	return &result, nil
}

// Version returns the daemon's version string (GET /api/version).
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cannot connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", httpError("version", resp)
	}

	var result struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Version, nil
}

func httpError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(b))

	// The daemon wraps errors as {"error": "..."}; unwrap for display.
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("%s failed (%d): %s", op, resp.StatusCode, msg)
}
