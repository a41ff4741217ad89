// Package listing fetches pages of feed entries from external services.
//
// Source names are routed by shape: an absolute http(s) URL is treated as
// a syndication feed, anything else as a subreddit name queried through
// the Reddit JSON API.
package listing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"red_bot/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Service is the interface the session layer needs from a listing backend.
type Service interface {
	FetchPage(ctx context.Context, req model.Request) (model.Page, error)
}

// Client fetches listing pages from Reddit or from RSS/Atom feeds.
type Client struct {
	client   HTTPClient
	baseURL  string
	skipSelf bool
	timeout  time.Duration
}

// New creates a Client with the given HTTP client.
// skipSelf controls whether text-only self entries are dropped.
func New(client HTTPClient, skipSelf bool) *Client {
	return &Client{
		client:   client,
		baseURL:  "https://www.reddit.com",
		skipSelf: skipSelf,
		timeout:  30 * time.Second,
	}
}

// FetchPage queries the backend selected by the request's source and
// returns one page of entries plus the cursor for the next page.
//
// On backend failure the returned page is empty and its NextCursor
// carries the request's cursor unchanged, so the same request can be
// retried later; the error is returned alongside for logging.
func (c *Client) FetchPage(ctx context.Context, req model.Request) (model.Page, error) {
	src := req.NormalizedSource()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var page model.Page
	var err error
	if isFeedURL(src) {
		page, err = c.fetchFeed(ctx, src, req)
	} else {
		page, err = c.fetchReddit(ctx, src, req)
	}
	if err != nil {
		return model.Page{NextCursor: req.Cursor}, err
	}

	page.Entries = filterEntries(page.Entries, c.skipSelf)
	return page, nil
}

func isFeedURL(source string) bool {
	return strings.HasPrefix(source, "https://") || strings.HasPrefix(source, "http://")
}

// filterEntries drops pinned entries always and self entries when
// configured to.
func filterEntries(entries []model.Entry, skipSelf bool) []model.Entry {
	kept := entries[:0]
	for _, e := range entries {
		if e.Pinned {
			continue
		}
		if skipSelf && e.Self {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}
