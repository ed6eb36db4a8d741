// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rs/zerolog"
)

// DefaultFlushBytes is the bulk request size used when none is configured.
const DefaultFlushBytes = 5 << 20

// maxLine bounds one ndjson post; selftext can be large.
const maxLine = 16 << 20

// Stats counts the outcome of one bulk load.
type Stats struct {
	Indexed  uint64
	Filtered uint64
	Errors   uint64
}

// Indexer creates one index and bulk-loads documents into it.
type Indexer struct {
	Client     *elasticsearch.Client
	Name       string
	Variant    Variant
	Exclude    Filter
	FlushBytes int
	Log        zerolog.Logger

	// Progress, when set, is called with the number of documents read so far.
	Progress func(read int)
}

// Ensure creates the index with its variant's schema unless it already
// exists. It reports whether the index was created.
func (ix *Indexer) Ensure(ctx context.Context) (bool, error) {
	res, err := ix.Client.Indices.Exists([]string{ix.Name}, ix.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("checking index %s: %w", ix.Name, err)
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		return false, fmt.Errorf("checking index %s: HTTP %d", ix.Name, res.StatusCode)
	}

	body, err := json.Marshal(Schema(ix.Variant))
	if err != nil {
		return false, fmt.Errorf("encoding schema: %w", err)
	}
	res, err = ix.Client.Indices.Create(ix.Name,
		ix.Client.Indices.Create.WithBody(bytes.NewReader(body)),
		ix.Client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("creating index %s: %w", ix.Name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return false, fmt.Errorf("creating index %s: HTTP %d: %s", ix.Name, res.StatusCode, msg)
	}
	ix.Log.Info().Str("index", ix.Name).Stringer("variant", ix.Variant).Msg("created index")
	return true, nil
}

// IndexPosts bulk-loads newline-delimited JSON posts. Each post keeps only
// the known post fields; its "id" becomes the document id. Posts matching
// the exclude filter are counted and skipped.
func (ix *Indexer) IndexPosts(ctx context.Context, r io.Reader) (Stats, error) {
	bi, err := ix.bulkIndexer()
	if err != nil {
		return Stats{}, err
	}

	var filtered uint64
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	read := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		read++
		ix.progress(read)
		var post map[string]any
		if err := json.Unmarshal(line, &post); err != nil {
			bi.Close(ctx)
			return ix.stats(bi, filtered), fmt.Errorf("line %d: %w", read, err)
		}
		if ix.Exclude.Excludes(post) {
			filtered++
			continue
		}

		doc := make(map[string]any, len(postFields))
		for _, f := range postFields {
			doc[f] = post[f]
		}
		var id string
		if v, ok := post["id"]; ok && v != nil {
			id = scalarString(v)
		}
		if err := ix.add(ctx, bi, id, doc); err != nil {
			bi.Close(ctx)
			return ix.stats(bi, filtered), err
		}
	}
	if err := sc.Err(); err != nil {
		bi.Close(ctx)
		return ix.stats(bi, filtered), fmt.Errorf("reading posts: %w", err)
	}

	if err := bi.Close(ctx); err != nil {
		return ix.stats(bi, filtered), fmt.Errorf("flushing bulk requests: %w", err)
	}
	return ix.stats(bi, filtered), nil
}

// IndexUsers bulk-loads a comma-separated user dump whose first row names
// the columns. The "id" column becomes the document id and every other
// column a field.
func (ix *Indexer) IndexUsers(ctx context.Context, r io.Reader) (Stats, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return Stats{}, fmt.Errorf("reading user header: %w", err)
	}
	header = append([]string(nil), header...)
	idCol := -1
	for i, h := range header {
		if strings.TrimSpace(h) == "id" {
			idCol = i
		}
	}
	if idCol < 0 {
		return Stats{}, errors.New("user dump has no id column")
	}

	bi, err := ix.bulkIndexer()
	if err != nil {
		return Stats{}, err
	}

	read := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			bi.Close(ctx)
			return ix.stats(bi, 0), fmt.Errorf("reading users: %w", err)
		}
		read++
		doc := make(map[string]any, len(header)-1)
		for i, h := range header {
			if i != idCol {
				doc[h] = rec[i]
			}
		}
		if err := ix.add(ctx, bi, rec[idCol], doc); err != nil {
			bi.Close(ctx)
			return ix.stats(bi, 0), err
		}
		ix.progress(read)
	}

	if err := bi.Close(ctx); err != nil {
		return ix.stats(bi, 0), fmt.Errorf("flushing bulk requests: %w", err)
	}
	return ix.stats(bi, 0), nil
}

func (ix *Indexer) bulkIndexer() (esutil.BulkIndexer, error) {
	flush := ix.FlushBytes
	if flush <= 0 {
		flush = DefaultFlushBytes
	}
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     ix.Client,
		Index:      ix.Name,
		NumWorkers: 1,
		FlushBytes: flush,
		OnError: func(_ context.Context, err error) {
			ix.Log.Error().Err(err).Str("index", ix.Name).Msg("bulk request failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating bulk indexer: %w", err)
	}
	return bi, nil
}

func (ix *Indexer) add(ctx context.Context, bi esutil.BulkIndexer, id string, doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", id, err)
	}
	return bi.Add(ctx, esutil.BulkIndexerItem{
		Action:     "index",
		DocumentID: id,
		Body:       bytes.NewReader(data),
		OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			ev := ix.Log.Warn().Str("index", ix.Name).Str("id", item.DocumentID)
			if err != nil {
				ev = ev.Err(err)
			} else {
				ev = ev.Str("type", res.Error.Type).Str("reason", res.Error.Reason)
			}
			ev.Msg("document rejected")
		},
	})
}

func (ix *Indexer) stats(bi esutil.BulkIndexer, filtered uint64) Stats {
	s := bi.Stats()
	return Stats{Indexed: s.NumIndexed, Filtered: filtered, Errors: s.NumFailed}
}

func (ix *Indexer) progress(read int) {
	if ix.Progress != nil {
		ix.Progress(read)
	}
}

// Open opens a dump file, decompressing it when the name ends in .gz.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip %s: %w", path, err)
	}
	return &gzipFile{Reader: gz, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	return errors.Join(g.Reader.Close(), g.file.Close())
}
