// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report writes the matching results as semicolon-separated files.
// Every writer renders into memory and replaces its target atomically.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/pdiddy/twinmatch/internal/store"
	"github.com/pdiddy/twinmatch/pkg/types"
)

const separator = ';'

// WriteTwins writes one user;twin;distance row per pairing, in input order.
// Identical input produces byte-identical output.
func WriteTwins(path string, pairings []types.Pairing) error {
	rows := make([][]string, len(pairings))
	for i, p := range pairings {
		rows[i] = []string{p.User, p.Twin, FormatDistance(p.Distance)}
	}
	return write(path, []string{"user", "twin", "distance"}, rows)
}

// WriteUnmatched writes one user;reason row per reference user that
// received no twin.
func WriteUnmatched(path string, unmatched []types.Unmatched) error {
	rows := make([][]string, len(unmatched))
	for i, u := range unmatched {
		rows[i] = []string{u.User, string(u.Reason)}
	}
	return write(path, []string{"user", "reason"}, rows)
}

// WriteUserData writes the per-user detail report: the reference user's
// attributes, how many candidates survived filtering, and the twin with
// its attributes when one was selected.
func WriteUserData(path string, pools []types.CandidatePool, pairings []types.Pairing) error {
	twins := make(map[string]types.Pairing, len(pairings))
	for _, p := range pairings {
		twins[p.User] = p
	}

	header := []string{
		"user", "created_utc", "comment_karma", "link_karma", "posts", "candidates",
		"twin", "twin_created_utc", "twin_comment_karma", "twin_link_karma", "twin_posts", "distance",
	}
	rows := make([][]string, 0, len(pools))
	for _, p := range pools {
		u := p.User
		row := []string{
			u.Handle,
			itoa(u.CreatedAt.Unix()),
			itoa(u.CommentKarma),
			itoa(u.LinkKarma),
			itoa(u.PostCount),
			strconv.Itoa(len(p.Candidates)),
		}
		pair, ok := twins[u.Handle]
		twin, found := findCandidate(p.Candidates, pair.Twin)
		if ok && found {
			row = append(row,
				twin.Handle,
				itoa(twin.CreatedAt.Unix()),
				itoa(twin.CommentKarma),
				itoa(twin.LinkKarma),
				itoa(twin.PostCount),
				FormatDistance(pair.Distance),
			)
		} else {
			row = append(row, "", "", "", "", "", "")
		}
		rows = append(rows, row)
	}
	return write(path, header, rows)
}

// FormatDistance renders a distance with the shortest representation that
// round-trips.
func FormatDistance(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}

func findCandidate(cands []types.Candidate, handle string) (types.Candidate, bool) {
	if handle == "" {
		return types.Candidate{}, false
	}
	for _, c := range cands {
		if c.Handle == handle {
			return c, true
		}
	}
	return types.Candidate{}, false
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func write(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = separator
	if err := w.WriteAll(append([][]string{header}, rows...)); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := store.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
