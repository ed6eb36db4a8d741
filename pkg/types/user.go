// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the twinmatch pipeline:
// reference users, candidates, search windows and pairings, plus the stage
// configurations in config.go.
package types

import "time"

// ReferenceUser is a subject for whom a matched control ("twin") is sought.
// It is loaded once per run from the source user index and never mutated.
type ReferenceUser struct {
	// Handle is the unique Reddit user name.
	Handle string `json:"name" yaml:"name"`

	// CreatedAt is the account creation instant.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// CommentKarma is the signed comment karma.
	CommentKarma int64 `json:"comment_karma" yaml:"comment_karma"`

	// LinkKarma is the signed link karma.
	LinkKarma int64 `json:"link_karma" yaml:"link_karma"`

	// PostCount is the number of submissions authored before the study cutoff.
	PostCount int64 `json:"posts" yaml:"posts"`
}

// Candidate is an external account considered as a twin for one reference
// user. PostCount is zero until the post-count filter fills it in.
type Candidate struct {
	Handle       string    `json:"name" yaml:"name"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	CommentKarma int64     `json:"comment_karma" yaml:"comment_karma"`
	LinkKarma    int64     `json:"link_karma" yaml:"link_karma"`
	PostCount    int64     `json:"posts" yaml:"posts"`
}

// CandidatePool pairs a reference user with the candidates found for it.
type CandidatePool struct {
	User       ReferenceUser `json:"user" yaml:"user"`
	Candidates []Candidate   `json:"candidates" yaml:"candidates"`
}

// SearchWindow is a closed time interval [Lower, Upper].
type SearchWindow struct {
	Lower time.Time
	Upper time.Time
}

// Contains reports whether t lies inside the window, bounds included.
func (w SearchWindow) Contains(t time.Time) bool {
	return !t.Before(w.Lower) && !t.After(w.Upper)
}

// KarmaBounds is a ±10% band around a signed karma value. The band is
// computed on the signed value, so for negative karma Low is greater than
// High and a range query built from it matches nothing.
type KarmaBounds struct {
	Low  float64
	High float64
}

// BandFraction is the relative half-width used for karma and post-count bands.
const BandFraction = 0.1

// NewKarmaBounds returns the band value ± BandFraction*value.
func NewKarmaBounds(value int64) KarmaBounds {
	v := float64(value)
	return KarmaBounds{
		Low:  v - v*BandFraction,
		High: v + v*BandFraction,
	}
}

// Pairing is the final output row: a reference user, its twin and the
// standardized Euclidean distance between them.
type Pairing struct {
	User     string  `json:"user" yaml:"user"`
	Twin     string  `json:"twin" yaml:"twin"`
	Distance float64 `json:"distance" yaml:"distance"`
}

// UnmatchedReason explains why a reference user received no twin.
type UnmatchedReason string

const (
	// ReasonNoCandidates means no candidate survived search and filtering.
	ReasonNoCandidates UnmatchedReason = "no_candidates"

	// ReasonNoAttributes means every attribute had zero standard deviation,
	// so no distance could be computed.
	ReasonNoAttributes UnmatchedReason = "no_discriminating_attributes"
)

// Unmatched records a reference user that produced no pairing.
type Unmatched struct {
	User   string          `json:"user" yaml:"user"`
	Reason UnmatchedReason `json:"reason" yaml:"reason"`
}
