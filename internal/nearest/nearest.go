// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package nearest picks, among a reference user's candidates, the one
// closest to the reference in standardized attribute space.
package nearest

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pdiddy/twinmatch/pkg/types"
)

var (
	// ErrNoCandidates is returned when there is nobody to choose from.
	ErrNoCandidates = errors.New("no candidates")

	// ErrNoAttributes is returned when every attribute has zero standard
	// deviation, so every distance would be undefined.
	ErrNoAttributes = errors.New("no discriminating attributes")
)

// Attribute names one matching dimension.
type Attribute string

const (
	CreatedAt    Attribute = "created_utc"
	CommentKarma Attribute = "comment_karma"
	LinkKarma    Attribute = "link_karma"
	PostCount    Attribute = "posts"
)

// Attributes lists the matching dimensions in vector order.
var Attributes = []Attribute{CreatedAt, CommentKarma, LinkKarma, PostCount}

// Features holds z-score vectors over the kept attributes.
type Features struct {
	Kept       []Attribute
	Reference  []float64
	Candidates [][]float64
}

// Match is the selected twin.
type Match struct {
	Candidate types.Candidate
	Index     int
	Distance  float64
}

func rawReference(u types.ReferenceUser) []float64 {
	return []float64{float64(u.CreatedAt.Unix()), float64(u.CommentKarma), float64(u.LinkKarma), float64(u.PostCount)}
}

func rawCandidate(c types.Candidate) []float64 {
	return []float64{float64(c.CreatedAt.Unix()), float64(c.CommentKarma), float64(c.LinkKarma), float64(c.PostCount)}
}

// Standardize converts ref and cands into z-scores. Mean and population
// standard deviation of each attribute are computed over the candidates
// together with the reference; attributes whose deviation is zero are
// dropped.
func Standardize(ref types.ReferenceUser, cands []types.Candidate) Features {
	rows := make([][]float64, 0, len(cands)+1)
	for _, c := range cands {
		rows = append(rows, rawCandidate(c))
	}
	rows = append(rows, rawReference(ref))

	f := Features{
		Reference:  []float64{},
		Candidates: make([][]float64, len(cands)),
	}
	for i := range f.Candidates {
		f.Candidates[i] = []float64{}
	}

	column := make([]float64, len(rows))
	for a, attr := range Attributes {
		for i, row := range rows {
			column[i] = row[a]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		if std == 0 || math.IsNaN(std) {
			continue
		}
		f.Kept = append(f.Kept, attr)
		for i := range cands {
			f.Candidates[i] = append(f.Candidates[i], (column[i]-mean)/std)
		}
		f.Reference = append(f.Reference, (column[len(cands)]-mean)/std)
	}
	return f
}

// Select returns the candidate at the smallest Euclidean distance from ref
// after standardization. Ties go to the earliest candidate.
func Select(ref types.ReferenceUser, cands []types.Candidate) (Match, error) {
	if len(cands) == 0 {
		return Match{}, ErrNoCandidates
	}
	f := Standardize(ref, cands)
	if len(f.Kept) == 0 {
		return Match{}, ErrNoAttributes
	}

	best := -1
	var bestDist float64
	for i, v := range f.Candidates {
		d := floats.Distance(f.Reference, v, 2)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return Match{Candidate: cands[best], Index: best, Distance: bestDist}, nil
}
