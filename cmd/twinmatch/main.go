// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the twinmatch CLI. Each pipeline
// stage is a subcommand: candidates, posts and match, plus index for
// preparing the search indices they query.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/twinmatch/internal/logger"
	"github.com/pdiddy/twinmatch/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// log is the process logger, configured before any subcommand runs.
	log = logger.Nop()

	// loadedSecrets holds credentials loaded from the secrets directory.
	loadedSecrets map[string]string
)

// rootCmd is the base command for the twinmatch CLI.
var rootCmd = &cobra.Command{
	Use:   "twinmatch",
	Short: "Find matched control accounts for a population of Reddit users",
	Long: `twinmatch pairs every user of a study population with a "twin": an account
from a general population created around the same time with similar karma and
posting activity.

The pipeline runs as three resumable stages:

  candidates  search the general population for candidate twins
  posts       look up how many posts each candidate made before a cutoff
  match       filter candidates by post count and pick the closest twin

Each stage checkpoints its progress in a work directory; rerunning a stage
continues where the last run stopped.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log = logger.New(logger.Options{
			Level:  viper.GetString("log_level"),
			Format: viper.GetString("log_format"),
			Fields: map[string]string{"cmd": cmd.Name()},
		})
		if f := viper.ConfigFileUsed(); f != "" {
			log.Info().Str("file", f).Msg("using config file")
		}

		s, err := secrets.Load(viper.GetString("secrets_dir"), log)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./twinmatch.yaml or ~/.config/twinmatch/twinmatch.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")
	pf.String("secrets-dir", ".secrets", "directory of credential files")
	pf.StringSlice("elasticsearch", []string{"http://localhost:9200"}, "Elasticsearch node addresses")
	pf.Bool("no-progress", false, "disable progress bars")

	bindFlag(pf, "log_level", "log-level")
	bindFlag(pf, "log_format", "log-format")
	bindFlag(pf, "secrets_dir", "secrets-dir")
	bindFlag(pf, "elasticsearch", "elasticsearch")
	bindFlag(pf, "no_progress", "no-progress")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("twinmatch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "twinmatch"))
		}
	}

	viper.SetEnvPrefix("TWINMATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; flags and environment suffice.
	_ = viper.ReadInConfig()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.WithLevel(zerolog.FatalLevel).Err(err).Msg("twinmatch failed")
		stop()
		os.Exit(1)
	}
}
