// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package postcount

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog"

	"github.com/pdiddy/twinmatch/internal/httputil"
	"github.com/pdiddy/twinmatch/internal/store"
	"github.com/pdiddy/twinmatch/pkg/types"
)

// DefaultBatchDelay is the pause between consecutive batches.
const DefaultBatchDelay = 500 * time.Millisecond

// Summary holds the outcome of a lookup run.
type Summary struct {
	Handles int // distinct candidate handles
	Skipped int // already looked up by an earlier run
	Batches int // batches completed in this run
	Failed  int // batches skipped after their retries ran out
}

// HasFailures reports whether any batch was skipped.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Lookup drives the post-count stage.
type Lookup struct {
	Counter Counter
	Store   *store.Store
	Config  types.PostCountConfig
	Log     zerolog.Logger

	// Progress, when set, is called after each batch with the number of
	// handles handled so far and the number pending at the start.
	Progress func(done, total int)

	// Reset discards earlier lookups before running, so a changed cutoff
	// or endpoint can reuse the work directory.
	Reset bool
}

// CandidateHandles returns the distinct candidate handles of pools, sorted.
func CandidateHandles(pools []types.CandidatePool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range pools {
		for _, c := range p.Candidates {
			if !seen[c.Handle] {
				seen[c.Handle] = true
				out = append(out, c.Handle)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Run looks up every handle not yet checkpointed, in batches of at most
// Config.BatchSize, and commits each batch to the store. A batch that keeps
// failing is recorded and skipped; rerunning retries it. Checkpoints made
// with another cutoff or endpoint are refused with store.ErrParamsChanged
// unless Reset is set.
func (l *Lookup) Run(ctx context.Context, handles []string) (Summary, error) {
	sum := Summary{Handles: len(handles)}

	if l.Reset {
		if err := l.Store.ResetStage(ctx, store.StagePosts); err != nil {
			return sum, err
		}
		l.Log.Info().Msg("discarded earlier post count lookups")
	}
	if err := l.Store.CheckParams(ctx, store.StagePosts, l.params()); err != nil {
		return sum, err
	}

	done, err := l.Store.LookedUp(ctx)
	if err != nil {
		return sum, err
	}
	if err := l.Store.ClearFailures(ctx, store.StagePosts); err != nil {
		return sum, err
	}

	var pending []string
	for _, h := range handles {
		if done[h] {
			sum.Skipped++
			continue
		}
		pending = append(pending, h)
	}

	size := l.Config.BatchSize
	if size <= 0 || size > MaxBatch {
		size = MaxBatch
	}
	delay := l.Config.BatchDelay

	handled := 0
	for i, batch := range batches(pending, size) {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		log := l.Log.With().Int("batch", i).Int("size", len(batch)).Logger()
		counts, err := l.countWithRetry(ctx, batch, log)
		handled += len(batch)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			log.Error().Err(err).Str("first", batch[0]).Msg("post count lookup failed")
			unit := fmt.Sprintf("%s..%s", batch[0], batch[len(batch)-1])
			if recErr := l.Store.RecordFailure(ctx, store.StagePosts, unit, err); recErr != nil {
				return sum, recErr
			}
			sum.Failed++
			l.progress(handled, len(pending))
			continue
		}

		if err := l.Store.SaveLookups(ctx, batch, counts); err != nil {
			return sum, fmt.Errorf("checkpointing batch %d: %w", i, err)
		}
		sum.Batches++
		log.Debug().Int("found", len(counts)).Msg("post counts fetched")
		l.progress(handled, len(pending))
	}

	l.Log.Info().Int("handles", sum.Handles).Int("skipped", sum.Skipped).
		Int("batches", sum.Batches).Int("failed", sum.Failed).Msg("post count lookup finished")
	return sum, nil
}

func (l *Lookup) countWithRetry(ctx context.Context, batch []string, log zerolog.Logger) (map[string]int64, error) {
	return retry.DoWithData(
		func() (map[string]int64, error) {
			return l.Counter.Counts(ctx, batch, l.Config.Before)
		},
		httputil.RetryOptions(ctx, l.Config.Retry, isTransient, func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("retrying post count batch")
		})...,
	)
}

// params identifies what the checkpointed counts were computed against.
func (l *Lookup) params() map[string]string {
	return map[string]string{
		"before":   strconv.FormatInt(l.Config.Before.Unix(), 10),
		"base_url": l.Config.BaseURL,
	}
}

func (l *Lookup) progress(done, total int) {
	if l.Progress != nil {
		l.Progress(done, total)
	}
}

func isTransient(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Retryable()
	}
	return httputil.Transient(err)
}

func batches(handles []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(handles); start += size {
		end := min(start+size, len(handles))
		out = append(out, handles[start:end])
	}
	return out
}
