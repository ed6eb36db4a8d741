// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package candidates

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog"

	"github.com/pdiddy/twinmatch/internal/httputil"
	"github.com/pdiddy/twinmatch/internal/population"
	"github.com/pdiddy/twinmatch/internal/store"
	"github.com/pdiddy/twinmatch/pkg/types"
)

// Summary holds the outcome of a candidate search run.
type Summary struct {
	Completed int
	Skipped   int
	Failed    int

	// Empty counts completed users whose final window matched nobody.
	Empty int
}

// Total returns the number of reference users processed.
func (s Summary) Total() int {
	return s.Completed + s.Skipped + s.Failed
}

// HasFailures reports whether any user was skipped after its retries ran out.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Runner drives the candidate search stage over every reference user.
type Runner struct {
	Population population.Population
	Store      *store.Store
	Config     types.CandidateConfig
	Log        zerolog.Logger

	// Progress, when set, is called once per reference user with the number
	// handled so far and the total.
	Progress func(done, total int)

	// Reset discards the checkpointed reference users and pools before
	// running.
	Reset bool
}

// Run searches candidates for every reference user not yet checkpointed,
// then writes the snapshot of all completed pools. A user whose search
// keeps failing is recorded and skipped; rerunning retries it. A work
// directory checkpointed with other indices, limits or calendar is refused
// with store.ErrParamsChanged unless Reset is set.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	if r.Reset {
		if err := r.Store.ResetStage(ctx, store.StageCandidates); err != nil {
			return sum, err
		}
		r.Log.Info().Msg("discarded earlier candidate search")
	}
	if err := r.Store.CheckParams(ctx, store.StageCandidates, r.params()); err != nil {
		return sum, err
	}

	users, err := r.referenceUsers(ctx)
	if err != nil {
		return sum, err
	}
	done, err := r.Store.CompletedPools(ctx)
	if err != nil {
		return sum, err
	}
	if err := r.Store.ClearFailures(ctx, store.StageCandidates); err != nil {
		return sum, err
	}

	finder := &Finder{
		Population:    r.Population,
		Index:         r.Config.UserIndex,
		MaxCandidates: r.Config.MaxCandidates,
		Location:      r.Config.Location,
	}

	for i, u := range users {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if done[u.Handle] {
			sum.Skipped++
			r.progress(i+1, len(users))
			continue
		}

		log := r.Log.With().Str("user", u.Handle).Logger()
		found, err := r.findWithRetry(ctx, finder, u, log)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			log.Error().Err(err).Msg("candidate search failed")
			if recErr := r.Store.RecordFailure(ctx, store.StageCandidates, u.Handle, err); recErr != nil {
				return sum, recErr
			}
			sum.Failed++
			r.progress(i+1, len(users))
			continue
		}

		if err := r.Store.SavePool(ctx, u.Handle, found.Window, found.Total, found.Candidates); err != nil {
			return sum, fmt.Errorf("checkpointing %s: %w", u.Handle, err)
		}
		if len(found.Candidates) == 0 {
			sum.Empty++
		}
		sum.Completed++
		log.Debug().Int("window", found.Window).Int("hits", found.Total).
			Int("kept", len(found.Candidates)).Msg("candidates found")
		r.progress(i+1, len(users))
	}

	pools, err := r.Store.Pools(ctx)
	if err != nil {
		return sum, err
	}
	if err := store.WriteSnapshot(r.Config.SnapshotPath, r.Store.RunID(), pools); err != nil {
		return sum, err
	}
	r.Log.Info().Int("completed", sum.Completed).Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).Int("empty", sum.Empty).
		Str("snapshot", r.Config.SnapshotPath).Msg("candidate search finished")
	return sum, nil
}

// referenceUsers returns the checkpointed reference users, scanning the
// source index only on the first run against the work directory.
func (r *Runner) referenceUsers(ctx context.Context) ([]types.ReferenceUser, error) {
	n, err := r.Store.CountReferenceUsers(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		r.Log.Info().Int("users", n).Msg("reusing checkpointed reference users")
		return r.Store.ReferenceUsers(ctx)
	}

	var users []types.ReferenceUser
	q := population.ScanQuery{Index: r.Config.SourceIndex, CreatedBefore: r.Config.CreatedBefore}
	err = r.Population.Scan(ctx, q, func(u types.ReferenceUser) error {
		users = append(users, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading reference users: %w", err)
	}
	if err := r.Store.SaveReferenceUsers(ctx, users); err != nil {
		return nil, err
	}
	r.Log.Info().Int("users", len(users)).Str("index", r.Config.SourceIndex).Msg("loaded reference users")
	return r.Store.ReferenceUsers(ctx)
}

func (r *Runner) findWithRetry(ctx context.Context, f *Finder, u types.ReferenceUser, log zerolog.Logger) (Found, error) {
	return retry.DoWithData(
		func() (Found, error) {
			return f.Find(ctx, u)
		},
		httputil.RetryOptions(ctx, r.Config.Retry, isTransient, func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("retrying candidate search")
		})...,
	)
}

// isTransient reports whether a search failure is worth another attempt.
func isTransient(err error) bool {
	var se *population.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return httputil.Transient(err)
}

// params identifies the population and search the checkpoints belong to.
func (r *Runner) params() map[string]string {
	createdBefore := ""
	if !r.Config.CreatedBefore.IsZero() {
		createdBefore = strconv.FormatInt(r.Config.CreatedBefore.Unix(), 10)
	}
	limit := r.Config.MaxCandidates
	if limit <= 0 {
		limit = DefaultMaxCandidates
	}
	loc := r.Config.Location
	if loc == nil {
		loc = time.Local
	}
	return map[string]string{
		"source_index":   r.Config.SourceIndex,
		"user_index":     r.Config.UserIndex,
		"max_candidates": strconv.Itoa(limit),
		"created_before": createdBefore,
		"location":       loc.String(),
	}
}

func (r *Runner) progress(done, total int) {
	if r.Progress != nil {
		r.Progress(done, total)
	}
}
