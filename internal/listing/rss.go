package listing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/mmcdole/gofeed"

	"red_bot/internal/model"
)

// fetchFeed treats the source as an RSS/Atom feed URL. Syndication feeds
// have no server-side pagination, so the cursor is a decimal item offset
// into the feed as fetched.
func (c *Client) fetchFeed(ctx context.Context, feedURL string, req model.Request) (model.Page, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return model.Page{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "RedBot/1.0")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return model.Page{}, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.Page{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBody))
	if err != nil {
		return model.Page{}, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return model.Page{}, fmt.Errorf("parse feed: %w", err)
	}

	offset := 0
	if req.Cursor != "" {
		offset, err = strconv.Atoi(req.Cursor)
		if err != nil || offset < 0 {
			return model.Page{}, fmt.Errorf("bad feed cursor %q", req.Cursor)
		}
	}
	if offset >= len(feed.Items) {
		return model.Page{}, nil
	}

	end := offset + req.Count
	if end > len(feed.Items) {
		end = len(feed.Items)
	}

	entries := make([]model.Entry, 0, end-offset)
	for _, item := range feed.Items[offset:end] {
		entries = append(entries, model.Entry{
			Title: item.Title,
			URL:   item.Link,
		})
	}

	next := ""
	if end < len(feed.Items) {
		next = strconv.Itoa(end)
	}
	return model.Page{Entries: entries, NextCursor: next}, nil
}
