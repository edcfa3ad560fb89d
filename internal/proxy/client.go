package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/simlab/simnet/internal/model"
)

const (
	defaultTimeout = 30 * time.Second

	// Idempotent GETs are retried with exponential backoff before the
	// failure surfaces as a connection error.
	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
)

// Client is a low-level HTTP client for the wrapper API. Proxy builds on it;
// it can also be used directly for administrative calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Echo sends a message and returns the server's echo. Used as a liveness
// probe before committing work to a server.
func (c *Client) Echo(ctx context.Context, message string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/v1/echo", map[string]string{"message": message}, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// Engines returns the engine-type names registered on the server.
func (c *Client) Engines(ctx context.Context) ([]string, error) {
	var out struct {
		Engines []string `json:"engines"`
	}
	if err := c.getJSON(ctx, "/v1/engines", &out); err != nil {
		return nil, err
	}
	return out.Engines, nil
}

// Submit creates a wrapper for engineType from a serialized bundle and starts
// its run. It returns the new wrapper id and the state observed at submission.
func (c *Client) Submit(ctx context.Context, engineType string, bundle []byte) (string, string, error) {
	body := map[string]any{"engine_type": engineType, "bundle": bundle}
	var out struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/wrappers", body, &out); err != nil {
		return "", "", err
	}
	return out.ID, out.State, nil
}

// State returns the lifecycle state of a wrapper.
func (c *Client) State(ctx context.Context, id string) (string, error) {
	var out struct {
		State string `json:"state"`
	}
	if err := c.getJSON(ctx, "/v1/wrappers/"+id+"/state", &out); err != nil {
		return "", err
	}
	return out.State, nil
}

// FailureReason returns the fault message of a failed wrapper.
func (c *Client) FailureReason(ctx context.Context, id string) (string, error) {
	var out struct {
		Reason string `json:"reason"`
	}
	if err := c.getJSON(ctx, "/v1/wrappers/"+id+"/failure", &out); err != nil {
		return "", err
	}
	return out.Reason, nil
}

// Cancel requests cancellation of a running wrapper and returns the state
// observed after the request.
func (c *Client) Cancel(ctx context.Context, id string) (string, error) {
	var out struct {
		State string `json:"state"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/wrappers/"+id+"/cancel", struct{}{}, &out); err != nil {
		return "", err
	}
	return out.State, nil
}

// AddDataset uploads a serialized dataset envelope to a wrapper. The dataset
// name travels inside the envelope and is echoed back.
func (c *Client) AddDataset(ctx context.Context, id string, data []byte) (string, error) {
	var out struct {
		Name string `json:"name"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/wrappers/"+id+"/datasets", map[string]any{"data": data}, &out); err != nil {
		return "", err
	}
	return out.Name, nil
}

// Dataset fetches a serialized dataset envelope from a wrapper.
func (c *Client) Dataset(ctx context.Context, id, name string) ([]byte, error) {
	var out struct {
		Data []byte `json:"data"`
	}
	if err := c.getJSON(ctx, "/v1/wrappers/"+id+"/datasets/"+name, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// RemoveDataset deletes a dataset from a wrapper.
func (c *Client) RemoveDataset(ctx context.Context, id, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/wrappers/"+id+"/datasets/"+name, nil, nil)
}

// getJSON performs a GET with bounded retries. Only connection-level failures
// are retried; an HTTP response, even an error one, is final.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", model.ErrConnection, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		lastErr = c.doJSON(ctx, http.MethodGet, path, nil, out)
		if lastErr == nil || ctx.Err() != nil {
			return lastErr
		}
		if !errors.Is(lastErr, model.ErrConnection) {
			return lastErr
		}
	}
	return lastErr
}

// doJSON performs a single request with a JSON body and decodes the JSON
// response into out. Transport failures map to ErrConnection; HTTP error
// bodies map back onto the domain error taxonomy via their wire code.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", model.ErrSerialization, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrConnection, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", model.ErrSerialization, err)
	}
	return nil
}

// decodeError rebuilds a domain error from an HTTP error response.
func (c *Client) decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if sentinel := model.ErrorFromCode(body.Code); sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
}
