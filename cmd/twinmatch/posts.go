// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/twinmatch/internal/postcount"
	"github.com/pdiddy/twinmatch/internal/secrets"
	"github.com/pdiddy/twinmatch/internal/store"
	"github.com/pdiddy/twinmatch/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "twinmatch/0.1"
)

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Look up how many posts each candidate made before a cutoff",
	Long: `Posts reads the candidate snapshot, collects the distinct candidate handles
and asks the historical-post service how many submissions each made before the
end of the --before date. Lookups run in batches of up to 100 handles and are
checkpointed per batch. Handles the service does not return made no posts.
Lookups checkpointed with another --before date are refused unless --reset
is given.`,
	Args:    cobra.NoArgs,
	PreRunE: bindFlags(postsBindings),
	RunE:    runPosts,
}

// postsBindings maps viper keys to the flags of the posts command.
var postsBindings = map[string]string{
	"snapshot":          "snapshot",
	"posts.output":      "output",
	"posts.before":      "before",
	"work_dir":          "work-dir",
	"posts.pushshift":   "pushshift",
	"posts.batch_size":  "batch-size",
	"posts.batch_delay": "batch-delay",
	"posts.timeout":     "timeout",
	"posts.retries":     "retries",
	"posts.retry_delay": "retry-delay",
	"posts.reset":       "reset",
}

func init() {
	f := postsCmd.Flags()
	f.String("snapshot", "candidates.yaml", "candidate snapshot written by the candidates stage")
	f.String("output", "posts_per_user.csv", "output path of the post counts")
	f.String("before", "", "count posts made up to the end of this date (YYYY-MM-DD, default today)")
	f.String("work-dir", "work", "directory holding the checkpoint database")
	f.String("pushshift", postcount.DefaultBaseURL, "submission search endpoint")
	f.Int("batch-size", postcount.MaxBatch, "handles per request (at most 100)")
	f.Duration("batch-delay", postcount.DefaultBatchDelay, "pause between batches")
	f.Duration("timeout", defaultTimeout, "HTTP request timeout")
	f.Uint("retries", 4, "attempts per batch before it is skipped")
	f.Duration("retry-delay", 2*time.Second, "initial delay between attempts")
	f.Bool("reset", false, "discard lookups made with a different --before or endpoint")

	rootCmd.AddCommand(postsCmd)
}

func runPosts(cmd *cobra.Command, _ []string) error {
	day := time.Now()
	if s := viper.GetString("posts.before"); s != "" {
		d, err := parseDate(s, time.Local)
		if err != nil {
			return err
		}
		day = d
	}

	cfg := types.PostCountConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   viper.GetDuration("posts.timeout"),
			UserAgent: defaultUserAgent,
		},
		Retry:        retryConfig("posts.retries", "posts.retry_delay"),
		BaseURL:      viper.GetString("posts.pushshift"),
		Before:       endOfDay(day.In(time.Local)),
		BatchSize:    viper.GetInt("posts.batch_size"),
		BatchDelay:   viper.GetDuration("posts.batch_delay"),
		WorkDir:      viper.GetString("work_dir"),
		SnapshotPath: viper.GetString("snapshot"),
		OutputPath:   viper.GetString("posts.output"),
	}
	secrets.ApplyPushshift(&cfg, loadedSecrets)
	if err := types.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pools, err := store.ReadSnapshot(cfg.SnapshotPath)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.WorkDir)
	if err != nil {
		return err
	}
	defer st.Close()

	runLog := log.With().Str("run_id", st.RunID()).Logger()
	ctx := runLog.WithContext(cmd.Context())
	lookup := &postcount.Lookup{
		Counter: &postcount.Client{
			HTTP:      &http.Client{Timeout: cfg.Timeout},
			BaseURL:   cfg.BaseURL,
			Token:     cfg.Token,
			UserAgent: cfg.UserAgent,
		},
		Store:    st,
		Config:   cfg,
		Log:      runLog,
		Progress: progress("counting posts"),
		Reset:    viper.GetBool("posts.reset"),
	}

	handles := postcount.CandidateHandles(pools)
	runLog.Info().Int("users", len(pools)).Int("handles", len(handles)).
		Time("before", cfg.Before).Msg("looking up post counts")
	sum, err := lookup.Run(ctx, handles)
	if err != nil {
		return err
	}

	counts, err := st.PostCounts(ctx)
	if err != nil {
		return err
	}
	if err := postcount.WriteCSV(cfg.OutputPath, counts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "posts: %d handles, %d resumed, %d batches, %d failed batches, %d with posts -> %s\n",
		sum.Handles, sum.Skipped, sum.Batches, sum.Failed, len(counts), cfg.OutputPath)
	if sum.HasFailures() {
		return fmt.Errorf("%d batch(es) failed post count lookup; rerun to retry them", sum.Failed)
	}
	return nil
}
