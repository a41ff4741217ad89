package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"red_bot/internal/model"
)

const maxListingBody = 5 * 1024 * 1024

type redditPost struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Stickied bool   `json:"stickied"`
	IsSelf   bool   `json:"is_self"`
}

type redditListing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func listingPath(view model.ViewMode) string {
	switch view {
	case model.Rising:
		return "rising"
	case model.Hot:
		return "hot"
	default:
		return "top"
	}
}

func (c *Client) fetchReddit(ctx context.Context, source string, req model.Request) (model.Page, error) {
	endpoint := fmt.Sprintf("%s/r/%s/%s.json", c.baseURL, url.PathEscape(source), listingPath(req.View))

	q := url.Values{}
	q.Set("limit", strconv.Itoa(req.Count))
	q.Set("raw_json", "1")
	if req.Cursor != "" {
		q.Set("after", req.Cursor)
	}
	if req.View.IsTop() {
		q.Set("t", req.View.Period())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
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

	var raw redditListing
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.Page{}, fmt.Errorf("parse listing: %w", err)
	}

	entries := make([]model.Entry, 0, len(raw.Data.Children))
	for _, child := range raw.Data.Children {
		entries = append(entries, model.Entry{
			Title:  child.Data.Title,
			URL:    child.Data.URL,
			Pinned: child.Data.Stickied,
			Self:   child.Data.IsSelf,
		})
	}
	return model.Page{Entries: entries, NextCursor: raw.Data.After}, nil
}
