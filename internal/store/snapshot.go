// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/twinmatch/pkg/types"
)

// ErrCorruptSnapshot is returned when a snapshot file cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt candidate snapshot")

const snapshotVersion = 1

// snapshotFile is the on-disk layout. Times are epoch seconds, the unit the
// user indices store.
type snapshotFile struct {
	Version int            `yaml:"version"`
	RunID   string         `yaml:"run_id,omitempty"`
	Users   []snapshotPool `yaml:"users"`
}

type snapshotPool struct {
	Name         string              `yaml:"name"`
	CreatedUTC   int64               `yaml:"created_utc"`
	CommentKarma int64               `yaml:"comment_karma"`
	LinkKarma    int64               `yaml:"link_karma"`
	Posts        int64               `yaml:"posts"`
	Candidates   []snapshotCandidate `yaml:"possible_twins"`
}

type snapshotCandidate struct {
	Name         string `yaml:"name"`
	CreatedUTC   int64  `yaml:"created_utc"`
	CommentKarma int64  `yaml:"comment_karma"`
	LinkKarma    int64  `yaml:"link_karma"`
}

// WriteSnapshot serializes pools to path as YAML. The file is written to a
// temporary sibling and renamed, so an existing snapshot is never left
// half-written.
func WriteSnapshot(path, runID string, pools []types.CandidatePool) error {
	file := snapshotFile{Version: snapshotVersion, RunID: runID, Users: make([]snapshotPool, len(pools))}
	for i, p := range pools {
		sp := snapshotPool{
			Name:         p.User.Handle,
			CreatedUTC:   p.User.CreatedAt.Unix(),
			CommentKarma: p.User.CommentKarma,
			LinkKarma:    p.User.LinkKarma,
			Posts:        p.User.PostCount,
			Candidates:   make([]snapshotCandidate, len(p.Candidates)),
		}
		for j, c := range p.Candidates {
			sp.Candidates[j] = snapshotCandidate{
				Name:         c.Handle,
				CreatedUTC:   c.CreatedAt.Unix(),
				CommentKarma: c.CommentKarma,
				LinkKarma:    c.LinkKarma,
			}
		}
		file.Users[i] = sp
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	return WriteFileAtomic(path, data)
}

// ReadSnapshot loads the pools written by WriteSnapshot, in file order.
// Decoding problems wrap ErrCorruptSnapshot.
func ReadSnapshot(path string) ([]types.CandidatePool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var file snapshotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptSnapshot, path, err)
	}
	if file.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorruptSnapshot, path, file.Version)
	}

	pools := make([]types.CandidatePool, len(file.Users))
	for i, sp := range file.Users {
		if sp.Name == "" {
			return nil, fmt.Errorf("%w: %s: entry %d has no name", ErrCorruptSnapshot, path, i)
		}
		p := types.CandidatePool{
			User: types.ReferenceUser{
				Handle:       sp.Name,
				CreatedAt:    time.Unix(sp.CreatedUTC, 0).UTC(),
				CommentKarma: sp.CommentKarma,
				LinkKarma:    sp.LinkKarma,
				PostCount:    sp.Posts,
			},
			Candidates: make([]types.Candidate, len(sp.Candidates)),
		}
		for j, sc := range sp.Candidates {
			if sc.Name == "" {
				return nil, fmt.Errorf("%w: %s: candidate %d of %s has no name", ErrCorruptSnapshot, path, j, sp.Name)
			}
			p.Candidates[j] = types.Candidate{
				Handle:       sc.Name,
				CreatedAt:    time.Unix(sc.CreatedUTC, 0).UTC(),
				CommentKarma: sc.CommentKarma,
				LinkKarma:    sc.LinkKarma,
			}
		}
		pools[i] = p
	}
	return pools, nil
}

// WriteFileAtomic writes data to path through a temporary file in the same
// directory followed by a rename.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
