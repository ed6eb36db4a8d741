// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/twinmatch/internal/candidates"
	"github.com/pdiddy/twinmatch/internal/population"
	"github.com/pdiddy/twinmatch/internal/store"
	"github.com/pdiddy/twinmatch/pkg/types"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Search the general population for candidate twins",
	Long: `Candidates loads the study population from the source index and, for each
user, searches the user index for accounts created in a widening window around
the user's creation time whose comment and link karma are within 10% of the
user's. Results are checkpointed per user in the work directory and exported
as a YAML snapshot for the posts and match stages. A work directory
checkpointed with other indices, limits or --created-before is refused unless
--reset is given.`,
	Args:    cobra.NoArgs,
	PreRunE: bindFlags(candidatesBindings),
	RunE:    runCandidates,
}

// candidatesBindings maps viper keys to the flags of the candidates command.
var candidatesBindings = map[string]string{
	"candidates.source_index":   "source-index",
	"candidates.user_index":     "user-index",
	"candidates.max_candidates": "max-candidates",
	"candidates.created_before": "created-before",
	"work_dir":                  "work-dir",
	"snapshot":                  "snapshot",
	"candidates.retries":        "retries",
	"candidates.retry_delay":    "retry-delay",
	"candidates.reset":          "reset",
}

func init() {
	f := candidatesCmd.Flags()
	f.String("source-index", "users-r-lonely", "index holding the study population")
	f.String("user-index", "users-reddit", "index searched for candidate twins")
	f.Int("max-candidates", candidates.DefaultMaxCandidates, "maximum candidates kept per user")
	f.String("created-before", "", "only match users created before this date (YYYY-MM-DD)")
	f.String("work-dir", "work", "directory holding the checkpoint database")
	f.String("snapshot", "candidates.yaml", "output path of the candidate snapshot")
	f.Uint("retries", 4, "attempts per user before it is skipped")
	f.Duration("retry-delay", 2*time.Second, "initial delay between attempts")
	f.Bool("reset", false, "discard checkpoints made with different indices or limits")

	rootCmd.AddCommand(candidatesCmd)
}

func runCandidates(cmd *cobra.Command, _ []string) error {
	createdBefore, err := parseDate(viper.GetString("candidates.created_before"), time.Local)
	if err != nil {
		return err
	}

	cfg := types.CandidateConfig{
		Elastic:       elasticConfig(),
		Retry:         retryConfig("candidates.retries", "candidates.retry_delay"),
		SourceIndex:   viper.GetString("candidates.source_index"),
		UserIndex:     viper.GetString("candidates.user_index"),
		MaxCandidates: viper.GetInt("candidates.max_candidates"),
		CreatedBefore: createdBefore,
		WorkDir:       viper.GetString("work_dir"),
		SnapshotPath:  viper.GetString("snapshot"),
		Location:      time.Local,
	}
	if err := types.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := population.NewClient(cfg.Elastic)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.WorkDir)
	if err != nil {
		return err
	}
	defer st.Close()

	runLog := log.With().Str("run_id", st.RunID()).Logger()
	runner := &candidates.Runner{
		Population: &population.Elastic{Client: client},
		Store:      st,
		Config:     cfg,
		Log:        runLog,
		Progress:   progress("searching candidates"),
		Reset:      viper.GetBool("candidates.reset"),
	}

	sum, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "candidates: %d searched, %d resumed, %d failed, %d without candidates\n",
		sum.Completed, sum.Skipped, sum.Failed, sum.Empty)
	if sum.HasFailures() {
		return fmt.Errorf("%d user(s) failed candidate search; rerun to retry them", sum.Failed)
	}
	return nil
}
