// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package postcount

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/twinmatch/internal/httputil"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func TestCounts_QueryAndDecode(t *testing.T) {
	before := time.Date(2018, time.October, 18, 23, 59, 59, 0, time.UTC)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "alice,bob,carol", q.Get("author"))
		assert.Equal(t, "author", q.Get("aggs"))
		assert.Equal(t, "0", q.Get("size"))
		assert.Equal(t, fmt.Sprint(before.Unix()), q.Get("before"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "twinmatch/test", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `{"aggs":{"author":[{"doc_count":12,"key":"alice"},{"doc_count":3,"key":"carol"}]},"data":[]}`)
	}))
	defer ts.Close()

	c := &Client{HTTP: ts.Client(), BaseURL: ts.URL, Token: "secret", UserAgent: "twinmatch/test"}
	got, err := c.Counts(context.Background(), []string{"alice", "bob", "carol"}, before)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"alice": 12, "carol": 3}, got)
}

func TestCounts_NoTokenNoHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"aggs":{"author":[]}}`)
	}))
	defer ts.Close()

	c := &Client{HTTP: ts.Client(), BaseURL: ts.URL}
	got, err := c.Counts(context.Background(), []string{"x"}, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCounts_BatchLimit(t *testing.T) {
	c := &Client{BaseURL: "http://127.0.0.1:0"}
	handles := make([]string, MaxBatch+1)
	for i := range handles {
		handles[i] = fmt.Sprintf("u%d", i)
	}
	_, err := c.Counts(context.Background(), handles, time.Now())
	assert.ErrorContains(t, err, "exceeds limit")

	got, err := c.Counts(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCounts_ServerErrorsRetriedThenReported(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := &Client{HTTP: ts.Client(), BaseURL: ts.URL, MaxRetries: 2}
	_, err := c.Counts(context.Background(), []string{"alice"}, time.Now())

	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusServiceUnavailable, he.StatusCode)
	assert.True(t, he.Retryable())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCounts_BadJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("{", 3))
	}))
	defer ts.Close()

	c := &Client{HTTP: ts.Client(), BaseURL: ts.URL}
	_, err := c.Counts(context.Background(), []string{"alice"}, time.Now())
	assert.ErrorContains(t, err, "parsing post search response")
	var de *httputil.DecodeError
	assert.ErrorAs(t, err, &de)
	assert.True(t, isTransient(err))
}
