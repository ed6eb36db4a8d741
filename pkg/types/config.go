// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "twinmatch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ElasticConfig holds the connection settings for the Elasticsearch cluster
// that stores the user and post indices.
type ElasticConfig struct {
	// Addresses lists the cluster nodes (default http://localhost:9200).
	Addresses []string `json:"addresses" yaml:"addresses" validate:"min=1,dive,url"`

	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// RetryConfig bounds the retries applied to one unit of remote work
// (a reference user's candidate search or a batch of post-count lookups).
type RetryConfig struct {
	// Attempts is the total number of tries per unit, including the first.
	Attempts uint `json:"attempts" yaml:"attempts" validate:"gte=1"`

	// Delay is the initial backoff between tries; it doubles each retry.
	Delay time.Duration `json:"delay" yaml:"delay" validate:"gte=0"`
}

// CandidateConfig holds settings for the candidate search stage.
type CandidateConfig struct {
	Elastic ElasticConfig `json:"elastic" yaml:"elastic"`
	Retry   RetryConfig   `json:"retry" yaml:"retry"`

	// SourceIndex is the index holding the reference users.
	SourceIndex string `json:"source_index" yaml:"source_index" validate:"required"`

	// UserIndex is the index searched for candidate twins.
	UserIndex string `json:"user_index" yaml:"user_index" validate:"required"`

	// MaxCandidates caps the candidates kept per reference user (default 500).
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates" validate:"gte=1"`

	// CreatedBefore restricts reference users to accounts created before this
	// instant. Zero means no restriction.
	CreatedBefore time.Time `json:"created_before" yaml:"created_before"`

	// WorkDir holds the checkpoint database.
	WorkDir string `json:"work_dir" yaml:"work_dir" validate:"required"`

	// SnapshotPath is where the reference-user-to-candidate mapping is written.
	SnapshotPath string `json:"snapshot" yaml:"snapshot" validate:"required"`

	// Location is the calendar used for day/week/month clipping.
	Location *time.Location `json:"-" yaml:"-"`
}

// PostCountConfig holds settings for the post-count lookup stage.
type PostCountConfig struct {
	HTTPConfig `yaml:",inline"`
	Retry      RetryConfig `json:"retry" yaml:"retry"`

	// BaseURL is the historical-post search endpoint.
	BaseURL string `json:"base_url" yaml:"base_url" validate:"required,url"`

	// Token is an optional bearer token for the historical-post service.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// Before bounds post counting: posts created after it are ignored.
	Before time.Time `json:"before" yaml:"before" validate:"required"`

	// BatchSize is the number of handles per request (at most 100).
	BatchSize int `json:"batch_size" yaml:"batch_size" validate:"gte=1,lte=100"`

	// BatchDelay is the pause between consecutive batches (default 500ms).
	BatchDelay time.Duration `json:"batch_delay" yaml:"batch_delay" validate:"gte=0"`

	WorkDir      string `json:"work_dir" yaml:"work_dir" validate:"required"`
	SnapshotPath string `json:"snapshot" yaml:"snapshot" validate:"required"`
	OutputPath   string `json:"output" yaml:"output" validate:"required"`
}

// MatchConfig holds settings for the filtering and twin selection stage.
type MatchConfig struct {
	SnapshotPath  string `json:"snapshot" yaml:"snapshot" validate:"required"`
	PostsPath     string `json:"posts" yaml:"posts" validate:"required"`
	SummaryPath   string `json:"summary" yaml:"summary" validate:"required"`
	UnmatchedPath string `json:"unmatched" yaml:"unmatched"`
	UserDataPath  string `json:"user_data" yaml:"user_data"`
}

// IndexConfig holds settings for index creation and bulk indexing.
type IndexConfig struct {
	Elastic ElasticConfig `json:"elastic" yaml:"elastic"`

	// Index is the target index name.
	Index string `json:"index" yaml:"index" validate:"required"`

	// Variant selects the schema: unigram, bigram or user.
	Variant string `json:"variant" yaml:"variant" validate:"oneof=unigram bigram user"`

	// ExcludePath is an optional YAML file mapping field names to values;
	// documents matching any of them are not indexed.
	ExcludePath string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// FlushBytes is the bulk request size threshold.
	FlushBytes int `json:"flush_bytes" yaml:"flush_bytes" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a stage configuration before any remote work starts.
func Validate(cfg any) error {
	return validate.Struct(cfg)
}
