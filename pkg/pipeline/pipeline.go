// Package pipeline wires the full snapshot run: discover package names,
// harvest metadata through a worker pool, assemble the columnar table, and
// publish a new dataset version.
//
// The same Runner backs the CLI and the embedded status server, so validation
// and defaulting live here rather than in each entry point.
//
// Usage:
//
//	runner := pipeline.NewRunner(logger)
//	opts := pipeline.Options{
//	    DatasetTarget: "s3://datasets/opam",
//	    Checkpoint:    "run.checkpoint",
//	}
//	result, err := runner.Execute(ctx, opts)
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sadiqj/opamsnap/pkg/cache"
	"github.com/sadiqj/opamsnap/pkg/harvest"
	"github.com/sadiqj/opamsnap/pkg/publish"
	"github.com/sadiqj/opamsnap/pkg/registry"
	"github.com/sadiqj/opamsnap/pkg/retry"
)

const (
	// DefaultConcurrency is the number of fetch workers. Conservative enough
	// not to hammer the registry, large enough to hide request latency.
	DefaultConcurrency = 8

	// DefaultRequestTimeout bounds a single registry HTTP request.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultRetryAttempts is how many times a transient registry failure
	// is retried before the package is reported failed.
	DefaultRetryAttempts = 4

	// DefaultRetryBackoff is the first retry delay; later attempts double it.
	DefaultRetryBackoff = 500 * time.Millisecond
)

// Options contains all configuration for a snapshot run.
// The struct serializes to JSON for the status endpoint.
type Options struct {
	// DatasetTarget is where snapshots are published: an s3://bucket/prefix
	// URI or a local directory. Required.
	DatasetTarget string `json:"dataset_target"`

	// RegistryURL overrides the opam registry API base URL.
	RegistryURL string `json:"registry_url,omitempty"`

	// Checkpoint is the resume journal location: a file path, a redis://
	// URI, or empty to disable resumption.
	Checkpoint string `json:"checkpoint,omitempty"`

	// Concurrency is the fetch worker count.
	Concurrency int `json:"concurrency,omitempty"`

	// IncludePrerelease admits prerelease versions even when a stable
	// release exists.
	IncludePrerelease bool `json:"include_prerelease,omitempty"`

	// Only restricts the run to the named packages. Empty means all
	// packages the registry lists.
	Only []string `json:"only,omitempty"`

	RetryAttempts  int           `json:"retry_attempts,omitempty"`
	RetryBackoff   time.Duration `json:"retry_backoff,omitempty"`
	RequestTimeout time.Duration `json:"request_timeout,omitempty"`

	// Refresh bypasses cached registry responses.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// Cache stores registry responses between runs. Nil disables caching.
	Cache cache.Cache `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.DatasetTarget == "" {
		return fmt.Errorf("dataset target is required")
	}
	if o.Concurrency < 0 {
		return fmt.Errorf("concurrency must be positive, got %d", o.Concurrency)
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.RegistryURL == "" {
		o.RegistryURL = registry.DefaultOpamURL
	}
	if o.RetryAttempts == 0 {
		o.RetryAttempts = DefaultRetryAttempts
	}
	if o.RetryBackoff == 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// retryPolicy builds the registry retry policy from the options.
func (o *Options) retryPolicy() retry.Policy {
	return retry.Policy{Attempts: o.RetryAttempts, BaseDelay: o.RetryBackoff}
}

// Outcome summarizes how a run ended.
type Outcome string

const (
	// OutcomeFull means every discovered package produced a row.
	OutcomeFull Outcome = "full"
	// OutcomePartial means the snapshot was published but some packages
	// failed and were left out.
	OutcomePartial Outcome = "partial"
)

// Result contains the outputs of a completed run. Fatal errors (discovery
// failure, publish failure) are returned by Execute as errors instead.
type Result struct {
	// Outcome is full or partial.
	Outcome Outcome

	// Pointer identifies the published version.
	Pointer *publish.Pointer

	// Failed lists packages that produced no row, in name order.
	Failed []harvest.Failure

	// Stats contains timing and size information.
	Stats Stats
}

// Stats contains run statistics.
type Stats struct {
	Discovered  int
	Skipped     int
	Resolved    int
	Failed      int
	Rows        int
	ListTime    time.Duration
	HarvestTime time.Duration
	PublishTime time.Duration
}
