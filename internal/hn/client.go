// Package hn is a client for the Hacker News Firebase item API: a read-only
// content source exposing the maximum known item id and item lookup by id.
package hn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/skimapp/skim-api/internal/config"
)

// Item is one raw item from the source. Items are not all stories: the id
// space also contains comments, jobs, and polls, plus deleted and dead
// entries.
type Item struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Deleted     bool   `json:"deleted"`
	Dead        bool   `json:"dead"`
}

// IsStory reports whether the item is a live story worth ingesting.
func (i *Item) IsStory() bool {
	return i.Type == "story" && !i.Deleted && !i.Dead
}

// CreatedAt returns the item's source timestamp.
func (i *Item) CreatedAt() time.Time {
	return time.Unix(i.Time, 0).UTC()
}

// Source is the interface the sync jobs consume; Client implements it.
type Source interface {
	// MaxItemID returns the largest item id the source currently knows.
	MaxItemID(ctx context.Context) (int64, error)

	// FetchItem retrieves one item by id. Returns ErrItemMissing for ids
	// with no item, and an ErrTransient-wrapped error once the retry
	// budget for transient failures is exhausted.
	FetchItem(ctx context.Context, id int64) (*Item, error)
}

// Client fetches items over HTTP with bounded exponential-backoff retry
// for transient failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
	baseDelay  time.Duration
	logger     *slog.Logger
}

// Ensure Client implements Source.
var _ Source = (*Client)(nil)

// NewClient creates a Client from the source configuration.
func NewClient(cfg config.SourceConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		maxRetries: uint64(cfg.MaxRetries),
		baseDelay:  cfg.RetryBaseDelay,
		logger:     logger,
	}
}

// MaxItemID implements Source.MaxItemID.
func (c *Client) MaxItemID(ctx context.Context) (int64, error) {
	var maxID int64
	err := c.getJSON(ctx, c.baseURL+"/maxitem.json", &maxID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch max item id: %w", err)
	}
	if maxID <= 0 {
		return 0, fmt.Errorf("source reported non-positive max item id %d", maxID)
	}
	return maxID, nil
}

// FetchItem implements Source.FetchItem.
func (c *Client) FetchItem(ctx context.Context, id int64) (*Item, error) {
	var item *Item
	url := fmt.Sprintf("%s/item/%d.json", c.baseURL, id)

	// The source answers 200 with a literal null body for ids that have
	// no item; decoding leaves the pointer nil.
	if err := c.getJSON(ctx, url, &item); err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", id, ErrItemMissing)
	}

	return item, nil
}

// getJSON performs a GET with retry and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.baseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network failures and timeouts are transient.
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusOK:
			// Decoded below.
		case resp.StatusCode == http.StatusNotFound:
			return ErrItemMissing
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.logger.Warn("retryable response from content source",
				"url", url,
				"status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("source returned status %d", resp.StatusCode))
		default:
			// Anything else is a refusal that retrying cannot change.
			return fmt.Errorf("%w: status %d", ErrItemUnavailable, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode source response: %w", err)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// The retry budget is spent; surface the id as retry-pending.
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
