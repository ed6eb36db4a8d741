// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/twinmatch/internal/index"
	"github.com/pdiddy/twinmatch/internal/population"
	"github.com/pdiddy/twinmatch/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create and load the Elasticsearch indices",
	Long: `Index prepares the indices the pipeline searches: post indices analyzed as
unigrams or bigrams, and user indices holding account attributes.`,
}

var indexCreateCmd = &cobra.Command{
	Use:     "create <name>",
	Short:   "Create an index with the schema of a variant",
	Args:    cobra.ExactArgs(1),
	PreRunE: bindFlags(map[string]string{"index.variant": "variant"}),
	RunE:    runIndexCreate,
}

var indexUsersCmd = &cobra.Command{
	Use:   "users <name> <file.csv[.gz]>",
	Short: "Bulk-load a user dump into a user index",
	Long: `Users reads a comma-separated user dump whose header row names the columns
(id, name, created_utc, updated_on, comment_karma, link_karma, posts) and
indexes one document per row, using the id column as document id. The index is
created first when missing.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: bindFlags(map[string]string{"index.flush_bytes": "flush-bytes"}),
	RunE:    runIndexUsers,
}

var indexPostsCmd = &cobra.Command{
	Use:   "posts <name> <file.ndjson[.gz]>...",
	Short: "Bulk-load newline-delimited post dumps into a post index",
	Long: `Posts reads submission dumps with one JSON object per line and indexes the
known post fields. Posts matching the --exclude filter, a YAML map of field
names to excluded values, are skipped. The index is created first when
missing.`,
	Args:    cobra.MinimumNArgs(2),
	PreRunE: bindFlags(indexPostsBindings),
	RunE:    runIndexPosts,
}

var indexPostsBindings = map[string]string{
	"index.variant":     "variant",
	"index.exclude":     "exclude",
	"index.flush_bytes": "flush-bytes",
}

func init() {
	indexCreateCmd.Flags().String("variant", "unigram", "schema variant: unigram, bigram or user")

	indexUsersCmd.Flags().Int("flush-bytes", index.DefaultFlushBytes, "bulk request size threshold")

	indexPostsCmd.Flags().String("variant", "unigram", "schema variant: unigram or bigram")
	indexPostsCmd.Flags().String("exclude", "", "YAML file of field values whose posts are skipped")
	indexPostsCmd.Flags().Int("flush-bytes", index.DefaultFlushBytes, "bulk request size threshold")

	indexCmd.AddCommand(indexCreateCmd, indexUsersCmd, indexPostsCmd)
	rootCmd.AddCommand(indexCmd)
}

// newIndexer validates cfg and builds an Indexer for it.
func newIndexer(cfg types.IndexConfig) (*index.Indexer, error) {
	if err := types.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	variant, err := index.ParseVariant(cfg.Variant)
	if err != nil {
		return nil, err
	}
	var exclude index.Filter
	if cfg.ExcludePath != "" {
		if exclude, err = index.LoadFilter(cfg.ExcludePath); err != nil {
			return nil, err
		}
	}
	client, err := population.NewClient(cfg.Elastic)
	if err != nil {
		return nil, err
	}
	return &index.Indexer{
		Client:     client,
		Name:       cfg.Index,
		Variant:    variant,
		Exclude:    exclude,
		FlushBytes: cfg.FlushBytes,
		Log:        log.With().Str("index", cfg.Index).Logger(),
	}, nil
}

func runIndexCreate(cmd *cobra.Command, args []string) error {
	ix, err := newIndexer(types.IndexConfig{
		Elastic: elasticConfig(),
		Index:   args[0],
		Variant: viper.GetString("index.variant"),
	})
	if err != nil {
		return err
	}
	created, err := ix.Ensure(cmd.Context())
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "created %s index %s\n", ix.Variant, ix.Name)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "index %s already exists\n", ix.Name)
	}
	return nil
}

func runIndexUsers(cmd *cobra.Command, args []string) error {
	ix, err := newIndexer(types.IndexConfig{
		Elastic:    elasticConfig(),
		Index:      args[0],
		Variant:    index.User.String(),
		FlushBytes: viper.GetInt("index.flush_bytes"),
	})
	if err != nil {
		return err
	}
	if _, err := ix.Ensure(cmd.Context()); err != nil {
		return err
	}

	r, err := index.Open(args[1])
	if err != nil {
		return err
	}
	defer r.Close()

	ix.Progress = counter("indexing users")
	stats, err := ix.IndexUsers(cmd.Context(), r)
	if err != nil {
		return err
	}
	return reportIndexStats(cmd, args[1], stats)
}

func runIndexPosts(cmd *cobra.Command, args []string) error {
	ix, err := newIndexer(types.IndexConfig{
		Elastic:     elasticConfig(),
		Index:       args[0],
		Variant:     viper.GetString("index.variant"),
		ExcludePath: viper.GetString("index.exclude"),
		FlushBytes:  viper.GetInt("index.flush_bytes"),
	})
	if err != nil {
		return err
	}
	if ix.Variant == index.User {
		return fmt.Errorf("posts cannot be loaded into a user index")
	}
	if _, err := ix.Ensure(cmd.Context()); err != nil {
		return err
	}

	for _, path := range args[1:] {
		r, err := index.Open(path)
		if err != nil {
			return err
		}
		ix.Progress = counter("indexing " + path)
		stats, err := ix.IndexPosts(cmd.Context(), r)
		r.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := reportIndexStats(cmd, path, stats); err != nil {
			return err
		}
	}
	return nil
}

func reportIndexStats(cmd *cobra.Command, path string, s index.Stats) error {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d indexed, %d filtered, %d errors\n", path, s.Indexed, s.Filtered, s.Errors)
	if s.Errors > 0 {
		return fmt.Errorf("%d document(s) rejected from %s", s.Errors, path)
	}
	return nil
}
