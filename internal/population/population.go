// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package population queries the indexed Reddit user populations: the
// reference users a run matches and the external accounts searched for
// twins.
package population

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/twinmatch/pkg/types"
)

// Population is the query surface the matching stages consume: a capped
// filtered search and an uncapped scan.
type Population interface {
	Search(ctx context.Context, q CandidateQuery) (SearchResult, error)
	Scan(ctx context.Context, q ScanQuery, fn func(types.ReferenceUser) error) error
}

// CandidateQuery selects accounts created inside Window whose karma values
// fall inside the given bands. Size caps the hits returned.
type CandidateQuery struct {
	Index        string
	Window       types.SearchWindow
	CommentKarma types.KarmaBounds
	LinkKarma    types.KarmaBounds
	Size         int
}

// SearchResult holds the hits of one query and the total number of
// matching documents, which may exceed len(Candidates).
type SearchResult struct {
	Total      int
	Candidates []types.Candidate
}

// ScanQuery enumerates every user in Index. A non-zero CreatedBefore keeps
// only accounts created strictly before it.
type ScanQuery struct {
	Index         string
	CreatedBefore time.Time
}

// userDoc is the user-index document layout. Numeric fields are decoded
// leniently because users indexed from CSV dumps carry them as strings.
type userDoc struct {
	Name         string  `json:"name"`
	CreatedUTC   flexInt `json:"created_utc"`
	CommentKarma flexInt `json:"comment_karma"`
	LinkKarma    flexInt `json:"link_karma"`
	Posts        flexInt `json:"posts"`
}

func (d userDoc) referenceUser() types.ReferenceUser {
	return types.ReferenceUser{
		Handle:       d.Name,
		CreatedAt:    time.Unix(int64(d.CreatedUTC), 0).UTC(),
		CommentKarma: int64(d.CommentKarma),
		LinkKarma:    int64(d.LinkKarma),
		PostCount:    int64(d.Posts),
	}
}

func (d userDoc) candidate() types.Candidate {
	return types.Candidate{
		Handle:       d.Name,
		CreatedAt:    time.Unix(int64(d.CreatedUTC), 0).UTC(),
		CommentKarma: int64(d.CommentKarma),
		LinkKarma:    int64(d.LinkKarma),
	}
}

// flexInt decodes a JSON number, a quoted number or null into an int64.
// Fractional values are truncated toward zero.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid integer value %s", string(data))
	}
	*f = flexInt(int64(v))
	return nil
}

// candidateBody builds the bool query for one candidate search.
func candidateBody(q CandidateQuery) map[string]any {
	return map[string]any{
		"size": q.Size,
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					rangeClause("created_utc", q.Window.Lower.Unix(), q.Window.Upper.Unix()),
					rangeClause("comment_karma", q.CommentKarma.Low, q.CommentKarma.High),
					rangeClause("link_karma", q.LinkKarma.Low, q.LinkKarma.High),
				},
			},
		},
	}
}

func rangeClause(field string, gte, lte any) map[string]any {
	return map[string]any{
		"range": map[string]any{
			field: map[string]any{"gte": gte, "lte": lte},
		},
	}
}

// scanBody builds the query used to enumerate reference users.
func scanBody(q ScanQuery) map[string]any {
	if q.CreatedBefore.IsZero() {
		return map[string]any{"query": map[string]any{"match_all": map[string]any{}}}
	}
	return map[string]any{
		"query": map[string]any{
			"range": map[string]any{
				"created_utc": map[string]any{"lt": q.CreatedBefore.Unix()},
			},
		},
	}
}

// searchResponse is the subset of the search API response we read.
type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
