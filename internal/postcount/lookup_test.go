// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package postcount

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/twinmatch/internal/store"
	"github.com/pdiddy/twinmatch/pkg/types"
)

type fakeCounter struct {
	calls   [][]string
	befores []time.Time
	fail    func(batch []string) bool
}

func (f *fakeCounter) Counts(_ context.Context, handles []string, before time.Time) (map[string]int64, error) {
	f.calls = append(f.calls, append([]string(nil), handles...))
	f.befores = append(f.befores, before)
	if f.fail != nil && f.fail(handles) {
		return nil, &HTTPError{StatusCode: 502}
	}
	counts := make(map[string]int64)
	for i, h := range handles {
		// Every third handle never posted and is absent from the response.
		if i%3 != 2 {
			counts[h] = int64(len(h))
		}
	}
	return counts, nil
}

func handlesN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("user%03d", i)
	}
	return out
}

func testLookup(t *testing.T, c Counter) (*Lookup, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &Lookup{
		Counter: c,
		Store:   s,
		Log:     zerolog.Nop(),
		Config: types.PostCountConfig{
			Before:    time.Date(2018, time.October, 18, 23, 59, 59, 0, time.UTC),
			BatchSize: 100,
			Retry:     types.RetryConfig{Attempts: 2},
		},
	}, s
}

func TestCandidateHandles(t *testing.T) {
	pools := []types.CandidatePool{
		{Candidates: []types.Candidate{{Handle: "zoe"}, {Handle: "amy"}}},
		{Candidates: []types.Candidate{{Handle: "amy"}, {Handle: "bob"}}},
		{},
	}
	assert.Equal(t, []string{"amy", "bob", "zoe"}, CandidateHandles(pools))
	assert.Empty(t, CandidateHandles(nil))
}

func TestLookup_BatchesAndCutoff(t *testing.T) {
	fc := &fakeCounter{}
	l, s := testLookup(t, fc)
	var progress []int
	l.Progress = func(done, total int) {
		assert.Equal(t, 250, total)
		progress = append(progress, done)
	}
	ctx := context.Background()

	sum, err := l.Run(ctx, handlesN(250))
	require.NoError(t, err)
	assert.Equal(t, Summary{Handles: 250, Batches: 3}, sum)
	assert.Equal(t, []int{100, 200, 250}, progress)

	require.Len(t, fc.calls, 3)
	assert.Len(t, fc.calls[0], 100)
	assert.Len(t, fc.calls[2], 50)
	for i, b := range fc.befores {
		assert.Equal(t, l.Config.Before, b, "batch %d uses the cutoff", i)
	}

	counts, err := s.PostCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), counts["user000"])
	_, ok := counts["user002"]
	assert.False(t, ok, "handles missing from the response are not stored as counts")

	looked, err := s.LookedUp(ctx)
	require.NoError(t, err)
	assert.Len(t, looked, 250)
}

func TestLookup_FailedBatchResumes(t *testing.T) {
	down := true
	fc := &fakeCounter{fail: func(batch []string) bool { return down && batch[0] == "user100" }}
	l, s := testLookup(t, fc)
	ctx := context.Background()

	sum, err := l.Run(ctx, handlesN(250))
	require.NoError(t, err)
	assert.Equal(t, Summary{Handles: 250, Batches: 2, Failed: 1}, sum)
	assert.True(t, sum.HasFailures())
	assert.Len(t, fc.calls, 4, "failing batch tried twice")

	failures, err := s.Failures(ctx, store.StagePosts)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "user100..user199", failures[0].Unit)

	down = false
	fc.calls = nil
	sum, err = l.Run(ctx, handlesN(250))
	require.NoError(t, err)
	assert.Equal(t, Summary{Handles: 250, Skipped: 150, Batches: 1}, sum)
	require.Len(t, fc.calls, 1)
	assert.Equal(t, "user100", fc.calls[0][0])

	failures, err = s.Failures(ctx, store.StagePosts)
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestLookup_TruncatedResponseRetried(t *testing.T) {
	var requests int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			fmt.Fprint(w, `{"aggs": {"author": [ {"key": "alpha", "doc_c`)
			return
		}
		fmt.Fprint(w, `{"aggs": {"author": [{"key": "alpha", "doc_count": 7}]}}`)
	}))
	defer ts.Close()

	l, s := testLookup(t, &Client{HTTP: ts.Client(), BaseURL: ts.URL})
	l.Config.Retry = types.RetryConfig{Attempts: 4}
	ctx := context.Background()

	sum, err := l.Run(ctx, []string{"alpha"})
	require.NoError(t, err)
	assert.Equal(t, Summary{Handles: 1, Batches: 1}, sum)
	assert.EqualValues(t, 2, atomic.LoadInt32(&requests))

	counts, err := s.PostCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"alpha": 7}, counts)
}

func TestLookup_ChangedCutoffRefused(t *testing.T) {
	fc := &fakeCounter{}
	l, s := testLookup(t, fc)
	ctx := context.Background()

	_, err := l.Run(ctx, []string{"alpha"})
	require.NoError(t, err)

	first := l.Config.Before
	l.Config.Before = first.AddDate(1, 0, 0)
	_, err = l.Run(ctx, []string{"alpha"})
	require.ErrorIs(t, err, store.ErrParamsChanged)
	assert.ErrorContains(t, err, "before")
	assert.Len(t, fc.calls, 1, "no lookup against the new cutoff")

	l.Reset = true
	sum, err := l.Run(ctx, []string{"alpha"})
	require.NoError(t, err)
	assert.Equal(t, Summary{Handles: 1, Batches: 1}, sum)
	require.Len(t, fc.befores, 2)
	assert.Equal(t, l.Config.Before, fc.befores[1])

	// The same cutoff resumes without a reset.
	l.Reset = false
	sum, err = l.Run(ctx, []string{"alpha"})
	require.NoError(t, err)
	assert.Equal(t, Summary{Handles: 1, Skipped: 1}, sum)
	done, err := s.LookedUp(ctx)
	require.NoError(t, err)
	assert.True(t, done["alpha"])
}

func TestLookup_BatchSizeCapped(t *testing.T) {
	fc := &fakeCounter{}
	l, _ := testLookup(t, fc)
	l.Config.BatchSize = 0
	l.Config.BatchDelay = time.Millisecond

	_, err := l.Run(context.Background(), handlesN(120))
	require.NoError(t, err)
	require.Len(t, fc.calls, 2)
	assert.Len(t, fc.calls[0], MaxBatch)
}

func TestLookup_Cancelled(t *testing.T) {
	fc := &fakeCounter{}
	l, _ := testLookup(t, fc)
	l.Config.BatchDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	l.Progress = func(int, int) { cancel() }

	_, err := l.Run(ctx, handlesN(150))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, fc.calls, 1)
}

func TestCSV_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts_per_user.csv")
	counts := map[string]int64{"bob": 3, "alice": 12, "zed": 0}

	require.NoError(t, WriteCSV(path, counts))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Name;Posts\nalice;12\nbob;3\nzed;0\n", string(data))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, counts, got)
}

func TestReadCSV_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"wrong header", "user;count\nalice;1\n"},
		{"bad number", "Name;Posts\nalice;many\n"},
		{"missing field", "Name;Posts\nalice\n"},
		{"empty name", "Name;Posts\n;4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "posts.csv")
			require.NoError(t, store.WriteFileAtomic(path, []byte(tt.content)))
			_, err := ReadCSV(path)
			assert.ErrorIs(t, err, ErrMalformedCSV)
		})
	}
}
