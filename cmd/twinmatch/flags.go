// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/twinmatch/internal/secrets"
	"github.com/pdiddy/twinmatch/pkg/types"
)

const dateLayout = "2006-01-02"

// bindFlag exposes a flag through viper under key, so it can also be set
// from the config file or a TWINMATCH_ environment variable.
func bindFlag(fs *pflag.FlagSet, key, flag string) {
	if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag, err))
	}
}

// bindFlags returns a PreRunE that binds the running command's flags to
// viper keys (key -> flag name). Binding at run time lets subcommands share
// keys such as work_dir without overwriting each other's flags.
func bindFlags(bindings map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		for key, flag := range bindings {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return fmt.Errorf("binding flag %s: %w", flag, err)
			}
		}
		return nil
	}
}

// elasticConfig returns the cluster settings with credentials from the
// secrets directory filled in.
func elasticConfig() types.ElasticConfig {
	cfg := types.ElasticConfig{
		Addresses: viper.GetStringSlice("elasticsearch"),
		Username:  viper.GetString("elasticsearch_username"),
		Password:  viper.GetString("elasticsearch_password"),
		APIKey:    viper.GetString("elasticsearch_api_key"),
	}
	secrets.ApplyElastic(&cfg, loadedSecrets)
	return cfg
}

// retryConfig reads a retry policy from the given viper keys.
func retryConfig(attemptsKey, delayKey string) types.RetryConfig {
	return types.RetryConfig{
		Attempts: viper.GetUint(attemptsKey),
		Delay:    viper.GetDuration(delayKey),
	}
}

// parseDate parses a YYYY-MM-DD date at midnight in loc. An empty string
// yields the zero time.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// endOfDay returns the last whole second of t's calendar day.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// progress returns a callback rendering a progress bar on stderr, or nil
// when progress display is disabled.
func progress(desc string) func(done, total int) {
	if viper.GetBool("no_progress") {
		return nil
	}
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), desc)
		}
		bar.Set(done)
		if done >= total {
			bar.Finish()
		}
	}
}

// counter returns a callback rendering an open-ended progress spinner for
// streams whose length is unknown, or nil when progress display is disabled.
func counter(desc string) func(read int) {
	if viper.GetBool("no_progress") {
		return nil
	}
	bar := progressbar.Default(-1, desc)
	return func(read int) {
		bar.Set(read)
	}
}
