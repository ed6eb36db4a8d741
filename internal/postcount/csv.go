// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package postcount

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/pdiddy/twinmatch/internal/store"
)

// ErrMalformedCSV is returned when a post-count file cannot be parsed.
var ErrMalformedCSV = errors.New("malformed post count file")

var csvHeader = []string{"Name", "Posts"}

// WriteCSV writes counts to path as a semicolon-separated file with a
// Name;Posts header, one row per handle in handle order.
func WriteCSV(path string, counts map[string]int64) error {
	handles := make([]string, 0, len(counts))
	for h := range counts {
		handles = append(handles, h)
	}
	slices.Sort(handles)

	rows := make([][]string, 0, len(handles)+1)
	rows = append(rows, csvHeader)
	for _, h := range handles {
		rows = append(rows, []string{h, strconv.FormatInt(counts[h], 10)})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("encoding post counts: %w", err)
	}
	return store.WriteFileAtomic(path, buf.Bytes())
}

// ReadCSV loads a file written by WriteCSV.
func ReadCSV(path string) (map[string]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening post counts: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = 2

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s: empty file", ErrMalformedCSV, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCSV, path, err)
	}
	if !strings.EqualFold(header[0], csvHeader[0]) || !strings.EqualFold(header[1], csvHeader[1]) {
		return nil, fmt.Errorf("%w: %s: unexpected header %q", ErrMalformedCSV, path, strings.Join(header, ";"))
	}

	counts := make(map[string]int64)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCSV, path, err)
		}
		line, _ := r.FieldPos(0)
		if rec[0] == "" {
			return nil, fmt.Errorf("%w: %s line %d: empty name", ErrMalformedCSV, path, line)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedCSV, path, line, err)
		}
		counts[rec[0]] = n
	}
	return counts, nil
}
