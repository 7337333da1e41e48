package cli

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/corpusgraph/internal/scanner"
	"github.com/roach88/corpusgraph/internal/workerpool"
)

// NewIngestCommand groups the corpus-ingestion subcommands: scan,
// upload, and backfill.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "scan the corpus and drive files through the indexing lifecycle",
	}

	cmd.AddCommand(newScanCommand(rootOpts))
	cmd.AddCommand(newUploadCommand(rootOpts))
	cmd.AddCommand(newBackfillCommand(rootOpts))

	return cmd
}

func newScanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "scan",
		Short:         "walk the corpus root and upsert discovered files into the store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(rootOpts, cmd)
		},
	}
	return cmd
}

func runScan(rootOpts *RootOptions, cmd *cobra.Command) error {
	formatter := outputFormatterFor(rootOpts, cmd)

	a, err := newApp(rootOpts, 0)
	if err != nil {
		return err
	}
	defer a.Close()

	sc := scanner.New(a.store, a.cfg.CorpusRoot, a.logger)
	res, err := sc.Scan(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "scan failed", err)
	}

	return formatter.Success(res)
}

// newUploadCommand runs the worker pool until the corpus is drained,
// the circuit breaker halts, or the adapter exhausts credit. --resume
// clears a prior credit-exhausted checkpoint before starting.
func newUploadCommand(rootOpts *RootOptions) *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:           "upload",
		Short:         "drive eligible files through upload and processing",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(rootOpts, cmd, resume)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "clear a prior credit-exhausted checkpoint before starting")
	return cmd
}

func runUpload(rootOpts *RootOptions, cmd *cobra.Command, resume bool) error {
	formatter := outputFormatterFor(rootOpts, cmd)

	a, err := newApp(rootOpts, rootOpts.Concurrency)
	if err != nil {
		return err
	}
	defer a.Close()

	if resume {
		if err := workerpool.ClearCheckpoint(a.cfg.CheckpointPath); err != nil {
			return WrapExitError(ExitCommandError, "clearing checkpoint", err)
		}
	}

	pool := workerpool.New(a.store, a.manager, a.limiter, a.breaker, a.adapter, workerpool.Options{
		Concurrency:  a.cfg.Concurrency,
		BatchSize:    a.cfg.BatchSize,
		Checkpointer: workerpool.FileCheckpointer{Path: a.cfg.CheckpointPath},
		Logger:       a.logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := pool.Run(ctx)
	switch {
	case runErr == nil:
		return formatter.Success(map[string]string{"status": "drained"})
	case errors.Is(runErr, workerpool.ErrHalted):
		return WrapExitError(ExitFailure, "circuit breaker halted, operator intervention required", runErr)
	case errors.Is(runErr, workerpool.ErrCreditExhausted):
		return WrapExitError(ExitCreditExhausted, "index service credit exhausted, checkpoint written", runErr)
	default:
		return WrapExitError(ExitFailure, "upload failed", runErr)
	}
}

// newBackfillCommand is a convenience wrapper running scan followed by
// upload in one invocation, for a first-time corpus load.
func newBackfillCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "backfill",
		Short:         "scan the corpus then upload everything eligible",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runScan(rootOpts, cmd); err != nil {
				return err
			}
			return runUpload(rootOpts, cmd, false)
		},
	}
	return cmd
}
