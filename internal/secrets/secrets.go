// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/twinmatch/pkg/types"
)

// Recognized key files.
const (
	ElasticUsername = "elasticsearch-username"
	ElasticPassword = "elasticsearch-password"
	ElasticAPIKey   = "elasticsearch-api-key"
	PushshiftToken  = "pushshift-token"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged as warnings and skipped.
func Load(dir string, log zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// ApplyElastic fills unset cluster credentials from secrets.
func ApplyElastic(cfg *types.ElasticConfig, secrets map[string]string) {
	setIfEmpty(&cfg.Username, secrets[ElasticUsername])
	setIfEmpty(&cfg.Password, secrets[ElasticPassword])
	setIfEmpty(&cfg.APIKey, secrets[ElasticAPIKey])
}

// ApplyPushshift fills an unset post search token from secrets.
func ApplyPushshift(cfg *types.PostCountConfig, secrets map[string]string) {
	setIfEmpty(&cfg.Token, secrets[PushshiftToken])
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
