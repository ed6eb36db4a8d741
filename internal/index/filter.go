// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"fmt"
	"os"
	"strconv"

	"go.yaml.in/yaml/v3"
)

// Filter maps a document field to the values that exclude a document.
// For example
//
//	subreddit: [lonely, loneliness, ForeverAlone]
//	author: [AutoModerator]
//
// drops every post from those subreddits and that author.
type Filter map[string][]string

// LoadFilter reads a Filter from a YAML file.
func LoadFilter(path string) (Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading exclude filter: %w", err)
	}
	var f Filter
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing exclude filter %s: %w", path, err)
	}
	return f, nil
}

// Excludes reports whether any field of doc equals one of its excluded
// values. Missing fields never match.
func (f Filter) Excludes(doc map[string]any) bool {
	for field, values := range f {
		v, ok := doc[field]
		if !ok || v == nil {
			continue
		}
		s := scalarString(v)
		for _, x := range values {
			if s == x {
				return true
			}
		}
	}
	return false
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
