// Package source provides the catalog client: it pulls newly published,
// already-merged items from the upstream item source so the worker can feed
// them through the notification pipeline.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"manga-notify/internal/domain/entity"
	"manga-notify/internal/infra/fetchclient"
)

// catalogItem is the upstream JSON shape for one catalog entry.
type catalogItem struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Thumbnail  string   `json:"thumbnail"`
	Artists    []string `json:"artists"`
	Characters []string `json:"characters"`
	Tags       []string `json:"tags"`
	Series     []string `json:"series"`
	Groups     []string `json:"groups"`
	Languages  []string `json:"languages"`
	Uploader   string   `json:"uploader"`
}

// Client fetches recent catalog items through the resilient fetch client, so
// upstream outages hit the breaker instead of cascading into the worker.
type Client struct {
	fetcher *fetchclient.Client
	baseURL string
}

// NewClient creates a catalog client for the given upstream base URL.
func NewClient(fetcher *fetchclient.Client, baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("source: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("source: invalid base URL: %w", err)
	}
	return &Client{fetcher: fetcher, baseURL: baseURL}, nil
}

// RecentItems returns up to limit newly published items, newest first.
func (c *Client) RecentItems(ctx context.Context, limit int) ([]*entity.Item, error) {
	endpoint := c.baseURL + "/items/recent"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}

	resp, err := c.fetcher.Get(ctx, endpoint, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("fetch recent items: %w", err)
	}

	var raw []catalogItem
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("decode recent items: %w", err)
	}

	items := make([]*entity.Item, 0, len(raw))
	for _, ci := range raw {
		if ci.ID == 0 {
			continue
		}
		items = append(items, &entity.Item{
			ID:         ci.ID,
			Title:      ci.Title,
			Thumbnail:  ci.Thumbnail,
			Artists:    ci.Artists,
			Characters: ci.Characters,
			Tags:       ci.Tags,
			Series:     ci.Series,
			Groups:     ci.Groups,
			Languages:  ci.Languages,
			Uploader:   ci.Uploader,
		})
	}
	return items, nil
}
