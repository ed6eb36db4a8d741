// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package candidates searches the user population for accounts that could
// serve as twins for each reference user.
package candidates

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/twinmatch/internal/population"
	"github.com/pdiddy/twinmatch/internal/window"
	"github.com/pdiddy/twinmatch/pkg/types"
)

// DefaultMaxCandidates is the per-user cap applied when none is configured.
const DefaultMaxCandidates = 500

// Finder runs the widening window search for one reference user.
type Finder struct {
	Population    population.Population
	Index         string
	MaxCandidates int
	Location      *time.Location
}

// Found is the outcome of one Find call.
type Found struct {
	Candidates []types.Candidate

	// Window is the index of the last window queried.
	Window int

	// Total is the match count the cluster reported for that window.
	Total int
}

// Find queries the six windows around ref's creation time in order and
// stops as soon as one yields MaxCandidates matches. Only the last query's
// hits are returned; earlier, narrower windows are superseded rather than
// merged. Errors are returned unretried.
func (f *Finder) Find(ctx context.Context, ref types.ReferenceUser) (Found, error) {
	limit := f.MaxCandidates
	if limit <= 0 {
		limit = DefaultMaxCandidates
	}

	q := population.CandidateQuery{
		Index:        f.Index,
		CommentKarma: types.NewKarmaBounds(ref.CommentKarma),
		LinkKarma:    types.NewKarmaBounds(ref.LinkKarma),
		Size:         limit,
	}

	var found Found
	for i, w := range window.Generate(ref.CreatedAt, f.Location) {
		q.Window = w
		res, err := f.Population.Search(ctx, q)
		if err != nil {
			return Found{}, fmt.Errorf("window %d: %w", i, err)
		}
		found = Found{Candidates: res.Candidates, Window: i, Total: res.Total}
		if res.Total >= limit {
			break
		}
	}
	return found, nil
}
