// Package directory publishes business cards to a participant directory
// indexer.
package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// IndexerPath is appended to the directory base URL
const IndexerPath = "/indexer/1.0/"

// ErrIndexer is returned when the indexer rejects a request
var ErrIndexer = errors.New("directory indexer error")

// Indexer notifies the directory about changed business cards. The directory
// fetches the card itself from this SMP.
type Indexer interface {
	Publish(ctx context.Context, pid identifier.Participant) error
	Unpublish(ctx context.Context, pid identifier.Participant) error
}

// Noop is used when directory integration is disabled
type Noop struct{}

func (Noop) Publish(context.Context, identifier.Participant) error   { return nil }
func (Noop) Unpublish(context.Context, identifier.Participant) error { return nil }

// Config configures the HTTP indexer client
type Config struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the directory indexer REST API
type Client struct {
	base       string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Indexer = (*Client)(nil)

// NewClient creates an indexer client
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("directory URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:       strings.TrimRight(cfg.URL, "/") + IndexerPath,
		httpClient: httpClient,
		logger:     logger.With("component", "directory"),
	}, nil
}

// Publish asks the directory to (re)index pid
func (c *Client) Publish(ctx context.Context, pid identifier.Participant) error {
	return c.do(ctx, http.MethodPut, c.base, strings.NewReader(pid.URIEncoded()), pid)
}

// Unpublish asks the directory to drop pid
func (c *Client) Unpublish(ctx context.Context, pid identifier.Participant) error {
	return c.do(ctx, http.MethodDelete, c.base+url.PathEscape(pid.URIEncoded()), nil, pid)
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader, pid identifier.Participant) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrIndexer, method, pid.URIEncoded(), resp.StatusCode, bytes.TrimSpace(msg))
	}

	c.logger.Debug("directory notified", "method", method, "participant", pid.URIEncoded(), "status", resp.StatusCode)
	return nil
}
