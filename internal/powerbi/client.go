package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrAuth marks a rejected resource key. Unlike ordinary per-entity
// failures it is fatal for the whole extraction run.
var ErrAuth = errors.New("powerbi: resource key rejected")

const resourceKeyHeader = "X-PowerBI-ResourceKey"

// ClientOptions configures the querydata client.
type ClientOptions struct {
	Endpoint    string
	ResourceKey string
	Timeout     time.Duration
	UserAgent   string
}

// Client posts semantic queries to the public querydata endpoint.
type Client struct {
	httpc *http.Client
	opts  ClientOptions
}

// NewClient creates a querydata client.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "admissions-cli/1.0"
	}
	return &Client{
		httpc: &http.Client{Timeout: opts.Timeout},
		opts:  opts,
	}
}

// Execute posts the query and returns the raw response body. A 401/403
// response maps to ErrAuth; anything else non-2xx is an ordinary per-entity
// failure.
func (c *Client) Execute(ctx context.Context, q *QueryRequest) ([]byte, error) {
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, eris.Wrap(err, "powerbi: marshal query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint+"?synchronous=true", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "powerbi: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set(resourceKeyHeader, c.opts.ResourceKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "powerbi: execute query")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "powerbi: read response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		zap.L().Error("powerbi: credential rejected", zap.Int("status", resp.StatusCode))
		return nil, eris.Wrapf(ErrAuth, "http %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("powerbi: unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	return body, nil
}

// FetchRows executes the query and decodes the rows in one step.
func (c *Client) FetchRows(ctx context.Context, q *QueryRequest) ([][]string, error) {
	body, err := c.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	return DecodeRows(body)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
