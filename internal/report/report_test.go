// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/twinmatch/pkg/types"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWriteTwins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "twins.csv")
	pairings := []types.Pairing{
		{User: "alice", Twin: "bob", Distance: 2},
		{User: "zed", Twin: "amy", Distance: 0.30000000000000004},
		{User: "mia", Twin: "max", Distance: 0},
	}

	require.NoError(t, WriteTwins(path, pairings))
	want := "user;twin;distance\n" +
		"alice;bob;2\n" +
		"zed;amy;0.30000000000000004\n" +
		"mia;max;0\n"
	assert.Equal(t, want, readFile(t, path))
}

func TestWriteTwins_ByteIdenticalRerun(t *testing.T) {
	dir := t.TempDir()
	pairings := []types.Pairing{
		{User: "alice", Twin: "bob", Distance: 1.2345678901234567},
		{User: "carol", Twin: "dan", Distance: 3.5},
	}
	first, second := filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")
	require.NoError(t, WriteTwins(first, pairings))
	require.NoError(t, WriteTwins(second, pairings))
	assert.Equal(t, readFile(t, first), readFile(t, second))

	// Rewriting over an existing file replaces it.
	require.NoError(t, WriteTwins(first, pairings[:1]))
	assert.Equal(t, "user;twin;distance\nalice;bob;1.2345678901234567\n", readFile(t, first))
}

func TestWriteTwins_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twins.csv")
	require.NoError(t, WriteTwins(path, nil))
	assert.Equal(t, "user;twin;distance\n", readFile(t, path))
}

func TestWriteTwins_UnwritableTarget(t *testing.T) {
	dir := t.TempDir()
	// A directory in place of the target file makes the final rename fail.
	target := filepath.Join(dir, "twins.csv")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "x"), 0o755))

	err := WriteTwins(target, []types.Pairing{{User: "a", Twin: "b"}})
	assert.Error(t, err)
}

func TestWriteUnmatched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unmatched.csv")
	require.NoError(t, WriteUnmatched(path, []types.Unmatched{
		{User: "dave", Reason: types.ReasonNoCandidates},
		{User: "erin", Reason: types.ReasonNoAttributes},
	}))
	assert.Equal(t, "user;reason\ndave;no_candidates\nerin;no_discriminating_attributes\n", readFile(t, path))
}

func TestWriteUserData(t *testing.T) {
	created := time.Unix(1520000000, 0).UTC()
	pools := []types.CandidatePool{
		{
			User: types.ReferenceUser{Handle: "alice", CreatedAt: created, CommentKarma: 100, LinkKarma: 50, PostCount: 20},
			Candidates: []types.Candidate{
				{Handle: "bob", CreatedAt: created.Add(time.Hour), CommentKarma: 98, LinkKarma: 51, PostCount: 19},
			},
		},
		{User: types.ReferenceUser{Handle: "dave", CreatedAt: created, CommentKarma: -4, PostCount: 1}},
	}
	pairings := []types.Pairing{{User: "alice", Twin: "bob", Distance: 1.5}}

	path := filepath.Join(t.TempDir(), "users_data.csv")
	require.NoError(t, WriteUserData(path, pools, pairings))

	want := "user;created_utc;comment_karma;link_karma;posts;candidates;twin;twin_created_utc;twin_comment_karma;twin_link_karma;twin_posts;distance\n" +
		"alice;1520000000;100;50;20;1;bob;1520003600;98;51;19;1.5\n" +
		"dave;1520000000;-4;0;1;0;;;;;;\n"
	assert.Equal(t, want, readFile(t, path))
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "2", FormatDistance(2))
	assert.Equal(t, "0.1", FormatDistance(0.1))
	assert.Equal(t, "0.0000001", FormatDistance(1e-7))
}
