// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/pdiddy/twinmatch/pkg/types"
)

// DefaultRetry is used when a configuration leaves the retry policy unset.
var DefaultRetry = types.RetryConfig{Attempts: 4, Delay: 2 * time.Second}

// RetryOptions translates a per-unit retry policy into options for the
// retry package. A zero policy falls back to DefaultRetry.
func RetryOptions(ctx context.Context, cfg types.RetryConfig, retryIf func(error) bool, onRetry func(uint, error)) []retry.Option {
	if cfg.Attempts == 0 {
		cfg = DefaultRetry
	}
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(cfg.Attempts),
		retry.Delay(cfg.Delay),
		retry.RetryIf(retryIf),
		retry.OnRetry(onRetry),
	}
	if jitter := cfg.Delay / 2; jitter > 0 {
		opts = append(opts, retry.MaxJitter(jitter))
	} else {
		opts = append(opts, retry.DelayType(retry.BackOffDelay))
	}
	return opts
}
