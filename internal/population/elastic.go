// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package population

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/pdiddy/twinmatch/internal/httputil"
	"github.com/pdiddy/twinmatch/pkg/types"
)

const (
	defaultScrollPage = 1000
	defaultScrollKeep = 2 * time.Minute
)

// NewClient builds an Elasticsearch client from cfg.
func NewClient(cfg types.ElasticConfig) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Elasticsearch client: %w", err)
	}
	return client, nil
}

// Elastic is a Population backed by Elasticsearch user indices.
type Elastic struct {
	Client *elasticsearch.Client

	// ScrollPage is the page size of Scan (default 1000).
	ScrollPage int

	// ScrollKeepAlive is how long the server keeps a scroll cursor between
	// pages (default 2m).
	ScrollKeepAlive time.Duration
}

// Search runs one capped candidate query.
func (e *Elastic) Search(ctx context.Context, q CandidateQuery) (SearchResult, error) {
	body, err := json.Marshal(candidateBody(q))
	if err != nil {
		return SearchResult{}, fmt.Errorf("encoding candidate query: %w", err)
	}

	res, err := e.Client.Search(
		e.Client.Search.WithContext(ctx),
		e.Client.Search.WithIndex(q.Index),
		e.Client.Search.WithBody(bytes.NewReader(body)),
		e.Client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return SearchResult{}, fmt.Errorf("searching %s: %w", q.Index, err)
	}
	defer res.Body.Close()

	sr, err := decodeSearch(res)
	if err != nil {
		return SearchResult{}, fmt.Errorf("searching %s: %w", q.Index, err)
	}

	out := SearchResult{Total: sr.Hits.Total.Value}
	for _, hit := range sr.Hits.Hits {
		var doc userDoc
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return SearchResult{}, fmt.Errorf("decoding user %s: %w", hit.ID, err)
		}
		out.Candidates = append(out.Candidates, doc.candidate())
	}
	if out.Total < len(out.Candidates) {
		out.Total = len(out.Candidates)
	}
	return out, nil
}

// Scan walks every user matching q with the scroll API and calls fn for each
// one in index order. An error from fn stops the scan and is returned.
func (e *Elastic) Scan(ctx context.Context, q ScanQuery, fn func(types.ReferenceUser) error) error {
	page := e.ScrollPage
	if page <= 0 {
		page = defaultScrollPage
	}
	keep := e.ScrollKeepAlive
	if keep <= 0 {
		keep = defaultScrollKeep
	}

	body, err := json.Marshal(scanBody(q))
	if err != nil {
		return fmt.Errorf("encoding scan query: %w", err)
	}

	res, err := e.Client.Search(
		e.Client.Search.WithContext(ctx),
		e.Client.Search.WithIndex(q.Index),
		e.Client.Search.WithBody(bytes.NewReader(body)),
		e.Client.Search.WithSize(page),
		e.Client.Search.WithScroll(keep),
	)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", q.Index, err)
	}

	var scrollID string
	defer func() {
		if scrollID != "" {
			e.clearScroll(scrollID)
		}
	}()

	for {
		sr, err := decodeSearch(res)
		res.Body.Close()
		if err != nil {
			return fmt.Errorf("scanning %s: %w", q.Index, err)
		}
		if sr.ScrollID != "" {
			scrollID = sr.ScrollID
		}
		if len(sr.Hits.Hits) == 0 {
			return nil
		}

		for _, hit := range sr.Hits.Hits {
			var doc userDoc
			if err := json.Unmarshal(hit.Source, &doc); err != nil {
				return fmt.Errorf("decoding user %s: %w", hit.ID, err)
			}
			if err := fn(doc.referenceUser()); err != nil {
				return err
			}
		}

		if scrollID == "" {
			return nil
		}
		res, err = e.Client.Scroll(
			e.Client.Scroll.WithContext(ctx),
			e.Client.Scroll.WithScrollID(scrollID),
			e.Client.Scroll.WithScroll(keep),
		)
		if err != nil {
			return fmt.Errorf("scrolling %s: %w", q.Index, err)
		}
	}
}

func (e *Elastic) clearScroll(id string) {
	res, err := e.Client.ClearScroll(e.Client.ClearScroll.WithScrollID(id))
	if err != nil {
		return
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
}

// decodeSearch turns an error status into an error and decodes the body
// otherwise. It does not close the body.
func decodeSearch(res *esapi.Response) (searchResponse, error) {
	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return searchResponse{}, &StatusError{StatusCode: res.StatusCode, Body: string(msg)}
	}
	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return searchResponse{}, &httputil.DecodeError{What: "search", Err: err}
	}
	return sr, nil
}

// StatusError reports a non-2xx response from the search cluster.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Elasticsearch returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is worth another attempt: rate
// limiting and server-side errors are, malformed queries are not.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
