// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store checkpoints pipeline progress in SQLite so an interrupted
// run resumes where it stopped instead of repeating remote lookups, and
// serializes the candidate snapshot handed between stages.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/twinmatch/pkg/types"
)

const dbFile = "checkpoint.db"

// Stage names used in failure records.
const (
	StageCandidates = "candidates"
	StagePosts      = "posts"
)

// Store manages the checkpoint database of one work directory.
type Store struct {
	db    *sql.DB
	runID string
}

// Open opens or creates workDir/checkpoint.db. The run id is generated on
// first creation and reused by every later run against the same directory.
func Open(workDir string) (*Store, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}

	dbPath := filepath.Join(workDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer; the pipeline is sequential.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.loadRunID(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunID identifies the run this work directory belongs to.
func (s *Store) RunID() string {
	return s.runID
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reference_users (
			ordinal INTEGER PRIMARY KEY AUTOINCREMENT,
			handle TEXT NOT NULL UNIQUE,
			created_utc INTEGER NOT NULL,
			comment_karma INTEGER NOT NULL,
			link_karma INTEGER NOT NULL,
			posts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS candidate_pools (
			handle TEXT PRIMARY KEY REFERENCES reference_users(handle),
			window_index INTEGER NOT NULL,
			total_hits INTEGER NOT NULL,
			completed_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS candidates (
			user_handle TEXT NOT NULL REFERENCES candidate_pools(handle) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			handle TEXT NOT NULL,
			created_utc INTEGER NOT NULL,
			comment_karma INTEGER NOT NULL,
			link_karma INTEGER NOT NULL,
			PRIMARY KEY (user_handle, position)
		)`,
		`CREATE TABLE IF NOT EXISTS failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stage TEXT NOT NULL,
			unit TEXT NOT NULL,
			error TEXT NOT NULL,
			failed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_stage ON failures(stage)`,
		`CREATE TABLE IF NOT EXISTS post_lookups (
			handle TEXT PRIMARY KEY,
			posts INTEGER NOT NULL,
			found INTEGER NOT NULL,
			looked_up_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) loadRunID() error {
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'run_id'`).Scan(&s.runID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading run id: %w", err)
	}
	s.runID = uuid.NewString()
	if _, err := s.db.Exec(`INSERT INTO meta (key, value) VALUES ('run_id', ?)`, s.runID); err != nil {
		return fmt.Errorf("storing run id: %w", err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// --- reference users ---

// CountReferenceUsers returns how many reference users are checkpointed.
func (s *Store) CountReferenceUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM reference_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting reference users: %w", err)
	}
	return n, nil
}

// SaveReferenceUsers appends users in order. Handles already present keep
// their original position and values.
func (s *Store) SaveReferenceUsers(ctx context.Context, users []types.ReferenceUser) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO reference_users (handle, created_utc, comment_karma, link_karma, posts)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range users {
		if _, err := stmt.ExecContext(ctx, u.Handle, u.CreatedAt.Unix(), u.CommentKarma, u.LinkKarma, u.PostCount); err != nil {
			return fmt.Errorf("inserting reference user %s: %w", u.Handle, err)
		}
	}
	return tx.Commit()
}

// ReferenceUsers returns every checkpointed reference user in load order.
func (s *Store) ReferenceUsers(ctx context.Context) ([]types.ReferenceUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT handle, created_utc, comment_karma, link_karma, posts
		 FROM reference_users ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("querying reference users: %w", err)
	}
	defer rows.Close()

	var users []types.ReferenceUser
	for rows.Next() {
		var u types.ReferenceUser
		var created int64
		if err := rows.Scan(&u.Handle, &created, &u.CommentKarma, &u.LinkKarma, &u.PostCount); err != nil {
			return nil, fmt.Errorf("scanning reference user: %w", err)
		}
		u.CreatedAt = time.Unix(created, 0).UTC()
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- candidate pools ---

// CompletedPools returns the set of reference users whose candidate search
// has been checkpointed.
func (s *Store) CompletedPools(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT handle FROM candidate_pools`)
	if err != nil {
		return nil, fmt.Errorf("querying completed pools: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scanning pool: %w", err)
		}
		done[h] = true
	}
	return done, rows.Err()
}

// SavePool checkpoints the candidates found for one reference user. window
// is the index of the last window queried and totalHits the match count
// reported for it. The write is atomic: a crash leaves either the whole
// pool or nothing.
func (s *Store) SavePool(ctx context.Context, user string, window, totalHits int, cands []types.Candidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE user_handle = ?`, user); err != nil {
		return fmt.Errorf("clearing old candidates: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO candidate_pools (handle, window_index, total_hits, completed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(handle) DO UPDATE SET
			window_index=excluded.window_index, total_hits=excluded.total_hits, completed_at=excluded.completed_at`,
		user, window, totalHits, now())
	if err != nil {
		return fmt.Errorf("upserting pool: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO candidates (user_handle, position, handle, created_utc, comment_karma, link_karma)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range cands {
		if _, err := stmt.ExecContext(ctx, user, i, c.Handle, c.CreatedAt.Unix(), c.CommentKarma, c.LinkKarma); err != nil {
			return fmt.Errorf("inserting candidate %s: %w", c.Handle, err)
		}
	}
	return tx.Commit()
}

// Pools returns the completed candidate pools in reference-user load order.
// Reference users without a checkpointed pool are left out.
func (s *Store) Pools(ctx context.Context) ([]types.CandidatePool, error) {
	users, err := s.ReferenceUsers(ctx)
	if err != nil {
		return nil, err
	}
	done, err := s.CompletedPools(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_handle, handle, created_utc, comment_karma, link_karma
		 FROM candidates ORDER BY user_handle, position`)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	byUser := make(map[string][]types.Candidate)
	for rows.Next() {
		var user string
		var c types.Candidate
		var created int64
		if err := rows.Scan(&user, &c.Handle, &created, &c.CommentKarma, &c.LinkKarma); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		c.CreatedAt = time.Unix(created, 0).UTC()
		byUser[user] = append(byUser[user], c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pools := make([]types.CandidatePool, 0, len(done))
	for _, u := range users {
		if !done[u.Handle] {
			continue
		}
		pools = append(pools, types.CandidatePool{User: u, Candidates: byUser[u.Handle]})
	}
	return pools, nil
}

// --- failures ---

// Failure is a diagnostic record of a unit skipped after its retries ran out.
type Failure struct {
	Stage    string
	Unit     string
	Error    string
	FailedAt time.Time
}

// RecordFailure stores a diagnostic for a skipped unit.
func (s *Store) RecordFailure(ctx context.Context, stage, unit string, cause error) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failures (stage, unit, error, failed_at) VALUES (?, ?, ?, ?)`,
		stage, unit, cause.Error(), now())
	if err != nil {
		return fmt.Errorf("recording failure: %w", err)
	}
	return nil
}

// ClearFailures drops the diagnostics of a stage. Each stage run starts
// with a clean slate so the table reflects the latest attempt.
func (s *Store) ClearFailures(ctx context.Context, stage string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM failures WHERE stage = ?`, stage); err != nil {
		return fmt.Errorf("clearing failures: %w", err)
	}
	return nil
}

// Failures lists the diagnostics recorded for stage, oldest first.
func (s *Store) Failures(ctx context.Context, stage string) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, unit, error, failed_at FROM failures WHERE stage = ? ORDER BY id`, stage)
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		var at string
		if err := rows.Scan(&f.Stage, &f.Unit, &f.Error, &at); err != nil {
			return nil, fmt.Errorf("scanning failure: %w", err)
		}
		f.FailedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, f)
	}
	return out, rows.Err()
}

// --- post-count lookups ---

// LookedUp returns the handles whose post count has been fetched.
func (s *Store) LookedUp(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT handle FROM post_lookups`)
	if err != nil {
		return nil, fmt.Errorf("querying lookups: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scanning lookup: %w", err)
		}
		done[h] = true
	}
	return done, rows.Err()
}

// SaveLookups checkpoints one batch: every handle in batch is marked as
// looked up, with its count from counts. Handles missing from counts were
// not returned by the service and are stored as not found.
func (s *Store) SaveLookups(ctx context.Context, batch []string, counts map[string]int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO post_lookups (handle, posts, found, looked_up_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(handle) DO UPDATE SET
			posts=excluded.posts, found=excluded.found, looked_up_at=excluded.looked_up_at`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	at := now()
	for _, h := range batch {
		n, found := counts[h]
		if _, err := stmt.ExecContext(ctx, h, n, found, at); err != nil {
			return fmt.Errorf("inserting lookup %s: %w", h, err)
		}
	}
	return tx.Commit()
}

// PostCounts returns the counts of every handle the service returned.
func (s *Store) PostCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT handle, posts FROM post_lookups WHERE found = 1`)
	if err != nil {
		return nil, fmt.Errorf("querying post counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var h string
		var n int64
		if err := rows.Scan(&h, &n); err != nil {
			return nil, fmt.Errorf("scanning post count: %w", err)
		}
		counts[h] = n
	}
	return counts, rows.Err()
}
