// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/twinmatch/pkg/types"
)

func TestSnapshot_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "pools.yaml")
	pools := []types.CandidatePool{
		{
			User:       refUser("alice", 1520000000, 100, 50, 20),
			Candidates: []types.Candidate{cand("bob", 1520000100, 95, 52), cand("carol", 1519999000, -3, 0)},
		},
		{User: refUser("dave", 1400000000, -10, 3, 0)},
	}

	require.NoError(t, WriteSnapshot(path, "run-1", pools))
	got, err := ReadSnapshot(path)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, pools[0], got[0])
	assert.Equal(t, pools[1].User, got[1].User)
	assert.Empty(t, got[1].Candidates)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "possible_twins:")
	assert.Contains(t, string(raw), "run_id: run-1")

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSnapshot_FromStore(t *testing.T) {
	s, dir := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveReferenceUsers(ctx, []types.ReferenceUser{refUser("alice", 10, 100, 50, 20)}))
	require.NoError(t, s.SavePool(ctx, "alice", 2, 1, []types.Candidate{cand("bob", 11, 99, 49)}))

	pools, err := s.Pools(ctx)
	require.NoError(t, err)
	path := filepath.Join(dir, "pools.yaml")
	require.NoError(t, WriteSnapshot(path, s.RunID(), pools))

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, pools, got)
}

func TestReadSnapshot_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "users: [unterminated"},
		{"wrong version", "version: 9\nusers: []\n"},
		{"missing name", "version: 1\nusers:\n  - created_utc: 1\n"},
		{"candidate without name", "version: 1\nusers:\n  - name: alice\n    possible_twins:\n      - name: bob\n      - comment_karma: 5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := ReadSnapshot(path)
			assert.ErrorIs(t, err, ErrCorruptSnapshot)
		})
	}
}

func TestReadSnapshot_Missing(t *testing.T) {
	_, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCorruptSnapshot)
}

func TestWriteFileAtomic_KeepsOldFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "twins.csv")
	require.NoError(t, WriteFileAtomic(path, []byte("old")))

	// Renaming over a directory fails; the original content must survive.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "child"), 0o755))
	assert.Error(t, WriteFileAtomic(blocked, []byte("new")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}
