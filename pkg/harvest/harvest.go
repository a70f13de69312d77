// Package harvest runs the fetch-and-resolve stage: a worker pool pulls
// package names from a queue, fetches metadata from the registry, picks the
// version to ship, and hands the finished row to the assembler.
//
// A package is checkpointed as done only after its row has been accepted by
// the assembler, so an interrupted run can resume without losing rows.
package harvest

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/sadiqj/opamsnap/pkg/checkpoint"
	"github.com/sadiqj/opamsnap/pkg/dataset"
	"github.com/sadiqj/opamsnap/pkg/progress"
	"github.com/sadiqj/opamsnap/pkg/registry"
	"github.com/sadiqj/opamsnap/pkg/resolve"
)

// Category classifies why a package failed to produce a row.
type Category string

const (
	// CategoryNotFound means the registry has no such package.
	CategoryNotFound Category = "not_found"
	// CategoryNoVersion means no acceptable version could be selected.
	CategoryNoVersion Category = "no_version"
	// CategoryFetch means fetching metadata failed after retries.
	CategoryFetch Category = "fetch"
	// CategoryCanceled means the run was interrupted before the package
	// completed.
	CategoryCanceled Category = "canceled"
)

// Failure records one package that did not make it into the dataset.
type Failure struct {
	Name     string
	Category Category
	Err      error
}

// Options configures a harvest run.
type Options struct {
	// Workers is the number of concurrent fetch goroutines.
	Workers int

	// Resolve controls version selection.
	Resolve resolve.Options

	// Logger receives per-package progress. Defaults to a discard logger.
	Logger *log.Logger
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return o
}

// Harvester fetches and resolves a set of packages into an assembler.
type Harvester struct {
	reg     registry.Registry
	ckpt    checkpoint.Store
	asm     *dataset.Assembler
	counter *progress.Counter
	opts    Options
}

// New creates a harvester. The progress counter may be nil.
func New(reg registry.Registry, ckpt checkpoint.Store, asm *dataset.Assembler, counter *progress.Counter, opts Options) *Harvester {
	if counter == nil {
		counter = &progress.Counter{}
	}
	return &Harvester{
		reg:     reg,
		ckpt:    ckpt,
		asm:     asm,
		counter: counter,
		opts:    opts.WithDefaults(),
	}
}

// Run processes names through the worker pool and returns the failures, in
// name order. Packages already marked done in the checkpoint are skipped
// before any worker sees them. A canceled context stops the pool promptly;
// in-flight packages are reported as canceled failures.
func (h *Harvester) Run(ctx context.Context, names []string) []Failure {
	h.counter.Discovered(len(names))

	todo := make([]string, 0, len(names))
	for _, name := range names {
		if h.ckpt.IsDone(name) {
			continue
		}
		todo = append(todo, name)
	}
	h.counter.Skipped(len(names) - len(todo))
	h.opts.Logger.Info("starting harvest", "total", len(names), "pending", len(todo), "workers", h.opts.Workers)

	jobs := make(chan string)
	var (
		mu       sync.Mutex
		failures []Failure
	)
	record := func(f Failure) {
		mu.Lock()
		failures = append(failures, f)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < h.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				if f := h.process(ctx, name); f != nil {
					h.counter.Failed()
					record(*f)
				} else {
					h.counter.Resolved()
				}
			}
		}()
	}

feed:
	for _, name := range todo {
		select {
		case jobs <- name:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].Name < failures[j].Name })
	return failures
}

// process runs one package through fetch, resolve, assemble, and checkpoint.
// Returns nil on success.
func (h *Harvester) process(ctx context.Context, name string) *Failure {
	if err := ctx.Err(); err != nil {
		return &Failure{Name: name, Category: CategoryCanceled, Err: err}
	}

	pkg, err := h.reg.FetchPackage(ctx, name)
	if err != nil {
		return h.classify(name, err)
	}
	h.counter.Fetched()

	sel, err := resolve.Select(pkg.Versions, h.opts.Resolve)
	if err != nil {
		h.opts.Logger.Warn("no selectable version", "package", name, "candidates", len(pkg.Versions))
		return &Failure{Name: name, Category: CategoryNoVersion, Err: err}
	}
	if len(sel.Dropped) > 0 {
		h.opts.Logger.Debug("dropped unparseable versions", "package", name, "dropped", sel.Dropped)
	}

	rec := dataset.Record{
		Name:            name,
		SelectedVersion: sel.Raw,
		Synopsis:        pkg.Synopsis,
		License:         pkg.License,
		Homepage:        pkg.Homepage,
		DevRepo:         pkg.DevRepo,
	}
	if err := h.asm.Add(rec); err != nil {
		return &Failure{Name: name, Category: CategoryFetch, Err: err}
	}

	// Mark done only after the row is in the assembler: a crash between
	// the two re-fetches the package instead of silently dropping it.
	if err := h.ckpt.MarkDone(ctx, name); err != nil {
		h.opts.Logger.Warn("checkpoint write failed", "package", name, "error", err)
	}
	h.opts.Logger.Debug("resolved", "package", name, "version", sel.Raw)
	return nil
}

func (h *Harvester) classify(name string, err error) *Failure {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Failure{Name: name, Category: CategoryCanceled, Err: err}
	case errors.Is(err, registry.ErrNotFound):
		h.opts.Logger.Warn("package not found", "package", name)
		return &Failure{Name: name, Category: CategoryNotFound, Err: err}
	default:
		h.opts.Logger.Warn("fetch failed", "package", name, "error", err)
		return &Failure{Name: name, Category: CategoryFetch, Err: err}
	}
}
