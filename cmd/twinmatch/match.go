// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/twinmatch/internal/match"
	"github.com/pdiddy/twinmatch/internal/postcount"
	"github.com/pdiddy/twinmatch/internal/report"
	"github.com/pdiddy/twinmatch/internal/store"
	"github.com/pdiddy/twinmatch/pkg/types"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Filter candidates by post count and select the closest twin",
	Long: `Match combines the candidate snapshot with the post counts, keeps the
candidates whose post count is within 10% of their user's, and selects for each
user the candidate nearest in standardized creation time, karma and post count.
Users left without a twin are listed in the unmatched file.`,
	Args:    cobra.NoArgs,
	PreRunE: bindFlags(matchBindings),
	RunE:    runMatch,
}

// matchBindings maps viper keys to the flags of the match command.
var matchBindings = map[string]string{
	"snapshot":        "snapshot",
	"posts.output":    "posts",
	"match.summary":   "summary",
	"match.unmatched": "unmatched",
	"match.output":    "output",
}

func init() {
	f := matchCmd.Flags()
	f.String("snapshot", "candidates.yaml", "candidate snapshot written by the candidates stage")
	f.String("posts", "posts_per_user.csv", "post counts written by the posts stage")
	f.String("summary", "twins.csv", "output path of the user;twin;distance summary")
	f.String("unmatched", "unmatched.csv", "output path of users without a twin (empty to skip)")
	f.String("output", "users_data.csv", "output path of the per-user detail report (empty to skip)")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, _ []string) error {
	cfg := types.MatchConfig{
		SnapshotPath:  viper.GetString("snapshot"),
		PostsPath:     viper.GetString("posts.output"),
		SummaryPath:   viper.GetString("match.summary"),
		UnmatchedPath: viper.GetString("match.unmatched"),
		UserDataPath:  viper.GetString("match.output"),
	}
	if err := types.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pools, err := store.ReadSnapshot(cfg.SnapshotPath)
	if err != nil {
		return err
	}
	counts, err := postcount.ReadCSV(cfg.PostsPath)
	if err != nil {
		return err
	}

	res := match.Run(pools, counts, log)

	if err := report.WriteTwins(cfg.SummaryPath, res.Pairings); err != nil {
		return err
	}
	if cfg.UnmatchedPath != "" {
		if err := report.WriteUnmatched(cfg.UnmatchedPath, res.Unmatched); err != nil {
			return err
		}
	}
	if cfg.UserDataPath != "" {
		if err := report.WriteUserData(cfg.UserDataPath, res.Filtered, res.Pairings); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "match: %d users, %d paired, %d unmatched, %d candidates without post count -> %s\n",
		len(pools), len(res.Pairings), len(res.Unmatched), res.Stats.Defaulted, cfg.SummaryPath)
	return nil
}
