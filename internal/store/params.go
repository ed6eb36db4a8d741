// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrParamsChanged is returned when a stage is resumed with parameters that
// differ from the ones its checkpoints were made with.
var ErrParamsChanged = errors.New("checkpoint parameters changed")

// ParamsError describes the first parameter that differs from the
// checkpointed value.
type ParamsError struct {
	Stage  string
	Key    string
	Stored string
	Given  string
}

func (e *ParamsError) Error() string {
	return fmt.Sprintf("%s: %s was %q in the checkpoint, now %q (use the old value, --reset, or another work directory)",
		e.Stage, e.Key, e.Stored, e.Given)
}

// Is makes errors.Is(err, ErrParamsChanged) match.
func (e *ParamsError) Is(target error) bool {
	return target == ErrParamsChanged
}

// CheckParams compares params with the values recorded for stage. Keys seen
// for the first time are recorded. Nothing is written when a value differs.
func (s *Store) CheckParams(ctx context.Context, stage string, params map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, k := range slices.Sorted(maps.Keys(params)) {
		var stored string
		err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, paramKey(stage, k)).Scan(&stored)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO meta (key, value) VALUES (?, ?)`, paramKey(stage, k), params[k]); err != nil {
				return fmt.Errorf("recording %s: %w", paramKey(stage, k), err)
			}
		case err != nil:
			return fmt.Errorf("reading %s: %w", paramKey(stage, k), err)
		case stored != params[k]:
			return &ParamsError{Stage: stage, Key: k, Stored: stored, Given: params[k]}
		}
	}
	return tx.Commit()
}

// ResetStage discards every checkpoint of stage along with its recorded
// parameters. Resetting the candidates stage also forgets the reference
// users, so the next run scans the source index again.
func (s *Store) ResetStage(ctx context.Context, stage string) error {
	var tables []string
	switch stage {
	case StageCandidates:
		tables = []string{"candidates", "candidate_pools", "reference_users"}
	case StagePosts:
		tables = []string{"post_lookups"}
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t); err != nil {
			return fmt.Errorf("clearing %s: %w", t, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM failures WHERE stage = ?`, stage); err != nil {
		return fmt.Errorf("clearing failures: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meta WHERE key LIKE ?`, stage+".%"); err != nil {
		return fmt.Errorf("clearing parameters: %w", err)
	}
	return tx.Commit()
}

func paramKey(stage, key string) string {
	return stage + "." + key
}
