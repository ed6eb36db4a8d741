// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match applies the post-count filter to candidate pools and
// selects one twin per reference user.
package match

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/pdiddy/twinmatch/internal/nearest"
	"github.com/pdiddy/twinmatch/pkg/types"
)

// FilterStats counts what the post-count filter saw.
type FilterStats struct {
	Candidates int // candidates examined
	Kept       int // candidates inside their band

	// Defaulted counts candidates with no looked-up post count. They are
	// treated as having zero posts.
	Defaulted int
}

// InBand reports whether posts lies within ±10% of ref, bounds included.
// The band is computed on the signed reference value.
func InBand(ref, posts int64) bool {
	r, p := float64(ref), float64(posts)
	return p >= r-r*types.BandFraction && p <= r+r*types.BandFraction
}

// Filter sets each candidate's post count from counts and keeps only the
// candidates within the band around their reference user's count. The
// input pools are not modified.
func Filter(pools []types.CandidatePool, counts map[string]int64) ([]types.CandidatePool, FilterStats) {
	var stats FilterStats
	out := make([]types.CandidatePool, len(pools))
	for i, p := range pools {
		kept := make([]types.Candidate, 0, len(p.Candidates))
		for _, c := range p.Candidates {
			stats.Candidates++
			n, ok := counts[c.Handle]
			if !ok {
				stats.Defaulted++
			}
			c.PostCount = n
			if InBand(p.User.PostCount, n) {
				kept = append(kept, c)
			}
		}
		stats.Kept += len(kept)
		out[i] = types.CandidatePool{User: p.User, Candidates: kept}
	}
	return out, stats
}

// Result is the outcome of a match run.
type Result struct {
	Pairings  []types.Pairing
	Unmatched []types.Unmatched

	// Filtered holds the pools after the post-count filter, in input order.
	Filtered []types.CandidatePool
	Stats    FilterStats
}

// Run filters pools and selects a twin for each reference user, in pool
// order. Users left without a twin are reported in Unmatched and logged.
func Run(pools []types.CandidatePool, counts map[string]int64, log zerolog.Logger) Result {
	filtered, stats := Filter(pools, counts)
	res := Result{Filtered: filtered, Stats: stats}

	for _, p := range filtered {
		m, err := nearest.Select(p.User, p.Candidates)
		if err != nil {
			reason := types.ReasonNoCandidates
			if errors.Is(err, nearest.ErrNoAttributes) {
				reason = types.ReasonNoAttributes
			}
			log.Warn().Str("user", p.User.Handle).Str("reason", string(reason)).Msg("no twin selected")
			res.Unmatched = append(res.Unmatched, types.Unmatched{User: p.User.Handle, Reason: reason})
			continue
		}
		res.Pairings = append(res.Pairings, types.Pairing{
			User:     p.User.Handle,
			Twin:     m.Candidate.Handle,
			Distance: m.Distance,
		})
	}

	log.Info().Int("users", len(pools)).Int("paired", len(res.Pairings)).
		Int("unmatched", len(res.Unmatched)).Int("candidates", stats.Candidates).
		Int("kept", stats.Kept).Int("defaulted", stats.Defaulted).Msg("matching finished")
	return res
}
