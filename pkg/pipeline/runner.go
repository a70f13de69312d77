package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sadiqj/opamsnap/pkg/checkpoint"
	"github.com/sadiqj/opamsnap/pkg/dataset"
	"github.com/sadiqj/opamsnap/pkg/dataset/store"
	"github.com/sadiqj/opamsnap/pkg/harvest"
	"github.com/sadiqj/opamsnap/pkg/progress"
	"github.com/sadiqj/opamsnap/pkg/publish"
	"github.com/sadiqj/opamsnap/pkg/registry"
	"github.com/sadiqj/opamsnap/pkg/resolve"
)

// Runner executes snapshot runs. It is stateless except for the logger and
// the live progress counter, so one Runner can serve both the CLI and the
// status endpoint.
type Runner struct {
	Logger  *log.Logger
	Counter *progress.Counter

	// registry overrides the registry client, for tests.
	registry registry.Registry
	// store overrides the object store, for tests.
	store store.ObjectStore
}

// NewRunner creates a runner. A nil logger falls back to log.Default.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Logger:  logger,
		Counter: &progress.Counter{},
	}
}

// Progress returns the live counters of the current run.
func (r *Runner) Progress() progress.Snapshot {
	return r.Counter.Snapshot()
}

// Execute runs the complete discover → harvest → assemble → publish pipeline.
//
// Discovery or publish failure aborts the run with an error and nothing is
// published. Per-package failures do not: the run publishes the rows it has
// and reports OutcomePartial with the failed names listed in the result.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	ckpt, err := checkpoint.Open(ctx, opts.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer ckpt.Close()

	objStore := r.store
	if objStore == nil {
		objStore, err = store.Open(opts.DatasetTarget)
		if err != nil {
			return nil, fmt.Errorf("open dataset target: %w", err)
		}
	}

	reg := r.registry
	if reg == nil {
		regOpts := []registry.OpamOption{
			registry.WithBaseURL(opts.RegistryURL),
			registry.WithTimeout(opts.RequestTimeout),
			registry.WithRetryPolicy(opts.retryPolicy()),
			registry.WithRefresh(opts.Refresh),
		}
		if opts.Cache != nil {
			regOpts = append(regOpts, registry.WithCache(opts.Cache, 0))
		}
		reg = registry.NewOpam(regOpts...)
	}

	result := &Result{}

	// Stage 1: Discover
	listStart := time.Now()
	names, err := r.discover(ctx, reg, opts)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	result.Stats.ListTime = time.Since(listStart)
	result.Stats.Discovered = len(names)

	opts.Logger.Info("discovered packages",
		"count", len(names),
		"duration", result.Stats.ListTime)

	// Stage 2: Harvest
	harvestStart := time.Now()
	asm := dataset.NewAssembler()
	h := harvest.New(reg, ckpt, asm, r.Counter, harvest.Options{
		Workers: opts.Concurrency,
		Resolve: resolve.Options{IncludePrerelease: opts.IncludePrerelease},
		Logger:  opts.Logger,
	})
	result.Failed = h.Run(ctx, names)
	result.Stats.HarvestTime = time.Since(harvestStart)

	if err := ctx.Err(); err != nil {
		// Keep whatever got checkpointed so the next run resumes.
		if ferr := ckpt.Flush(ctx); ferr != nil {
			opts.Logger.Warn("checkpoint flush failed", "error", ferr)
		}
		return nil, err
	}

	table := asm.Finalize()
	snap := r.Counter.Snapshot()
	result.Stats.Skipped = int(snap.Skipped)
	result.Stats.Resolved = int(snap.Resolved)
	result.Stats.Failed = len(result.Failed)

	opts.Logger.Info("harvested metadata",
		"resolved", result.Stats.Resolved,
		"skipped", result.Stats.Skipped,
		"failed", result.Stats.Failed,
		"duration", result.Stats.HarvestTime)

	// The journal must be durable before the upload starts; a crash during
	// a slow publish would otherwise lose the whole run's resume state. A
	// flush failure is not fatal, reprocessing is idempotent.
	if err := ckpt.Flush(ctx); err != nil {
		opts.Logger.Warn("checkpoint flush failed", "error", err)
	}

	// Stage 3: Publish
	publishStart := time.Now()
	pub := publish.NewPublisher(objStore, publish.WithRetryPolicy(opts.retryPolicy()))
	ptr, err := pub.Publish(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	result.Pointer = ptr
	result.Stats.PublishTime = time.Since(publishStart)
	result.Stats.Rows = ptr.Rows
	r.Counter.Published(ptr.Rows)

	if err := ckpt.Flush(ctx); err != nil {
		opts.Logger.Warn("checkpoint flush failed", "error", err)
	}

	result.Outcome = OutcomeFull
	if len(result.Failed) > 0 {
		result.Outcome = OutcomePartial
	}
	opts.Logger.Info("published snapshot",
		"version", ptr.VersionID,
		"rows", ptr.Rows,
		"outcome", result.Outcome,
		"duration", result.Stats.PublishTime)

	return result, nil
}

// discover lists the packages in scope for this run.
func (r *Runner) discover(ctx context.Context, reg registry.Registry, opts Options) ([]string, error) {
	if len(opts.Only) > 0 {
		return opts.Only, nil
	}
	return reg.ListNames(ctx)
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
