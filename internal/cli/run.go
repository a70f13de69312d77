package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sadiqj/opamsnap/internal/config"
	"github.com/sadiqj/opamsnap/pkg/pipeline"
)

// ErrPartial is returned by the run command when the snapshot was published
// but some packages failed. main maps it to exit code 2.
var ErrPartial = errors.New("snapshot published with failures")

// runOpts holds the command-line flags for the run command.
type runOpts struct {
	target            string
	registryURL       string
	checkpoint        string
	concurrency       int
	includePrerelease bool
	retryAttempts     int
	retryBackoff      time.Duration
	requestTimeout    time.Duration
	statusAddr        string
	only              []string
	noProgress        bool
	noCache           bool
	refresh           bool
}

// runCommand creates the run command, the main entry point: harvest the
// registry and publish a dataset snapshot.
func (c *CLI) runCommand() *cobra.Command {
	var opts runOpts

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest the registry and publish a dataset snapshot",
		Long: `Run the full pipeline: list packages from the opam registry, fetch each
package's metadata through a worker pool, select the version to ship, and
publish the assembled table as a new parquet dataset version.

A checkpoint journal makes interrupted runs resumable: packages already
harvested are skipped on the next run.

Examples:
  opamsnap run --target ./dataset
  opamsnap run --target s3://datasets/opam --checkpoint run.journal
  opamsnap run --target ./dataset --only dune --only lwt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeOpts, statusAddr, err := c.buildOptions(cmd, &opts)
			if err != nil {
				return err
			}
			return c.execute(cmd.Context(), pipeOpts, statusAddr, opts.noProgress)
		},
	}

	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "dataset target (s3://bucket/prefix or local directory)")
	cmd.Flags().StringVar(&opts.registryURL, "registry-url", "", "opam registry API base URL")
	cmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "", "checkpoint location (file path or redis:// URI)")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", 0, "number of fetch workers")
	cmd.Flags().BoolVar(&opts.includePrerelease, "include-prerelease", false, "admit prerelease versions over stable ones")
	cmd.Flags().IntVar(&opts.retryAttempts, "retry-attempts", 0, "attempts per transient registry failure")
	cmd.Flags().DurationVar(&opts.retryBackoff, "retry-backoff", 0, "initial retry delay")
	cmd.Flags().DurationVar(&opts.requestTimeout, "request-timeout", 0, "per-request HTTP timeout")
	cmd.Flags().StringVar(&opts.statusAddr, "status-addr", "", "serve run progress over HTTP on this address")
	cmd.Flags().StringArrayVar(&opts.only, "only", nil, "restrict the run to the named packages (repeatable)")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "disable the interactive progress display")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the registry response cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cached registry responses")

	return cmd
}

// buildOptions layers flags over environment and config file settings.
func (c *CLI) buildOptions(cmd *cobra.Command, opts *runOpts) (pipeline.Options, string, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return pipeline.Options{}, "", err
	}

	pipeOpts := pipeline.Options{
		DatasetTarget:     cfg.DatasetTarget,
		RegistryURL:       cfg.RegistryURL,
		Checkpoint:        cfg.Checkpoint,
		Concurrency:       cfg.Concurrency,
		IncludePrerelease: cfg.IncludePrerelease,
		RetryAttempts:     cfg.RetryAttempts,
		RetryBackoff:      cfg.RetryBackoff.Duration,
		RequestTimeout:    cfg.RequestTimeout.Duration,
		Only:              opts.only,
		Refresh:           opts.refresh,
		Cache:             newCache(opts.noCache),
		Logger:            c.Logger,
	}
	statusAddr := cfg.StatusAddr

	flags := cmd.Flags()
	if flags.Changed("target") {
		pipeOpts.DatasetTarget = opts.target
	}
	if flags.Changed("registry-url") {
		pipeOpts.RegistryURL = opts.registryURL
	}
	if flags.Changed("checkpoint") {
		pipeOpts.Checkpoint = opts.checkpoint
	}
	if flags.Changed("concurrency") {
		pipeOpts.Concurrency = opts.concurrency
	}
	if flags.Changed("include-prerelease") {
		pipeOpts.IncludePrerelease = opts.includePrerelease
	}
	if flags.Changed("retry-attempts") {
		pipeOpts.RetryAttempts = opts.retryAttempts
	}
	if flags.Changed("retry-backoff") {
		pipeOpts.RetryBackoff = opts.retryBackoff
	}
	if flags.Changed("request-timeout") {
		pipeOpts.RequestTimeout = opts.requestTimeout
	}
	if flags.Changed("status-addr") {
		statusAddr = opts.statusAddr
	}
	return pipeOpts, statusAddr, nil
}

// execute runs the pipeline, optionally with the status server and the
// interactive progress display.
func (c *CLI) execute(ctx context.Context, opts pipeline.Options, statusAddr string, noProgress bool) error {
	runner := pipeline.NewRunner(c.Logger)

	if statusAddr != "" {
		srv := newStatusServer(statusAddr, runner, c.Logger)
		srv.start()
		defer srv.stop()
	}

	interactive := !noProgress && isatty.IsTerminal(os.Stderr.Fd())

	var (
		result *pipeline.Result
		err    error
	)
	if interactive {
		result, err = c.executeWithTUI(ctx, runner, opts)
	} else {
		result, err = runner.Execute(ctx, opts)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, renderSummary(result))
	if result.Outcome == pipeline.OutcomePartial {
		return fmt.Errorf("%w: %d packages", ErrPartial, len(result.Failed))
	}
	printSuccess("Published %d rows as %s", result.Pointer.Rows, result.Pointer.VersionID)
	return nil
}

// executeWithTUI runs the pipeline in a goroutine while bubbletea renders
// live counters. Quitting the TUI cancels the run.
func (c *CLI) executeWithTUI(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	var (
		result *pipeline.Result
		runErr error
	)
	go func() {
		defer close(done)
		result, runErr = runner.Execute(ctx, opts)
	}()

	model := newProgressModel(runner.Progress, done)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	final, teaErr := program.Run()
	if m, ok := final.(progressModel); ok && m.aborted {
		cancel()
	}
	<-done

	if runErr != nil {
		return nil, runErr
	}
	if teaErr != nil && !errors.Is(teaErr, context.Canceled) {
		printWarning("progress display failed: %v", teaErr)
	}
	return result, nil
}
