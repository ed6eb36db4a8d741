// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package postcount looks up how many submissions candidate accounts
// authored before a cutoff, using the historical-post aggregation service.
package postcount

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/twinmatch/internal/httputil"
)

// DefaultBaseURL is the Pushshift submission search endpoint.
const DefaultBaseURL = "https://api.pushshift.io/reddit/search/submission/"

// MaxBatch is the largest number of authors one request may name.
const MaxBatch = 100

// Counter returns per-author submission counts for a batch of handles.
type Counter interface {
	Counts(ctx context.Context, handles []string, before time.Time) (map[string]int64, error)
}

// Client queries a Pushshift-compatible submission search endpoint.
type Client struct {
	HTTP      *http.Client
	BaseURL   string
	Token     string
	UserAgent string

	// MaxRetries bounds the 429/5xx retries of a single request; 0 uses the
	// httputil default.
	MaxRetries int
}

// aggResponse captures the author aggregation of a size=0 search.
type aggResponse struct {
	Aggs struct {
		Author []struct {
			Key      string `json:"key"`
			DocCount int64  `json:"doc_count"`
		} `json:"author"`
	} `json:"aggs"`
}

// HTTPError reports a non-200 response that survived the request retries.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("post search returned HTTP %d", e.StatusCode)
}

// Retryable reports whether the batch is worth another attempt later.
func (e *HTTPError) Retryable() bool {
	return httputil.RetryableStatus(e.StatusCode)
}

// Counts returns the number of submissions each handle created strictly
// before the given instant. Handles the service does not mention are left
// out of the map; callers treat them as having no posts.
func (c *Client) Counts(ctx context.Context, handles []string, before time.Time) (map[string]int64, error) {
	if len(handles) == 0 {
		return map[string]int64{}, nil
	}
	if len(handles) > MaxBatch {
		return nil, fmt.Errorf("batch of %d handles exceeds limit of %d", len(handles), MaxBatch)
	}

	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	params := url.Values{}
	params.Set("author", strings.Join(handles, ","))
	params.Set("aggs", "author")
	params.Set("size", "0")
	params.Set("before", strconv.FormatInt(before.Unix(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating post search request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("post search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	var ar aggResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, &httputil.DecodeError{What: "post search", Err: err}
	}

	counts := make(map[string]int64, len(ar.Aggs.Author))
	for _, a := range ar.Aggs.Author {
		counts[a.Key] = a.DocCount
	}
	return counts, nil
}
