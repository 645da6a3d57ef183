package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/apperrors"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/logger"
)

const (
	// DefaultURL is the central bank daily rates endpoint
	DefaultURL = "https://www.cbr.ru/scripts/XML_daily.asp"

	defaultTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
)

// Client implements the FeedFetcher interface over HTTP
type Client struct {
	url        string
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates a new feed client. A nil httpClient gets a 10 second timeout.
func NewClient(url string, httpClient *http.Client, log logger.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultTimeout,
		}
	}

	return &Client{
		url:        url,
		httpClient: httpClient,
		logger:     logger.OrDefault(log),
	}
}

// Fetch issues a single GET to the feed URL and returns the raw body.
// Retrying is left to the caller.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, apperrors.NewJobError(apperrors.ErrFetch, "create request", err)
	}

	req.Header.Add("Accept", "application/xml, text/xml")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Feed request failed", map[string]interface{}{
			"url":   c.url,
			"error": err.Error(),
		})
		return nil, apperrors.NewJobError(apperrors.ErrFetch, "execute request", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Error closing feed response body", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, apperrors.NewJobError(apperrors.ErrFetch, "read response body", err)
	}

	c.logger.Debug("Feed response received", map[string]interface{}{
		"url":         c.url,
		"status":      resp.StatusCode,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewJobError(apperrors.ErrFetch, "check response status",
			fmt.Errorf("feed returned status %d", resp.StatusCode))
	}

	return body, nil
}
