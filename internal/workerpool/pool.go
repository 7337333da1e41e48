package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/corpusgraph/internal/fsm"
	"github.com/roach88/corpusgraph/internal/indexadapter"
	"github.com/roach88/corpusgraph/internal/ratelimit"
	"github.com/roach88/corpusgraph/internal/store"
	"github.com/roach88/corpusgraph/internal/transition"
)

// ErrHalted is returned by Run when the circuit breaker has latched
// into BreakerHalted. The pool does not recover from this on its own;
// an operator must call CircuitBreaker.Reset before restarting.
var ErrHalted = errors.New("workerpool: circuit breaker halted, operator intervention required")

// ErrCreditExhausted is returned by Run when the adapter reports
// credit exhaustion and the pool has paused itself. This maps to the
// CLI's credit-exhausted exit class.
var ErrCreditExhausted = errors.New("workerpool: index service credit exhausted, pool paused")

// Options configures a Pool.
type Options struct {
	Concurrency  int           // default 5
	BatchSize    int           // default 20
	PollInterval time.Duration // default 2s, used when a claimed batch is empty
	Checkpointer Checkpointer  // optional; defaults to a no-op
	Logger       *slog.Logger
}

type noopCheckpointer struct{}

func (noopCheckpointer) Save(ctx context.Context, reason string) error { return nil }

// Pool is the bounded concurrent executor driving eligible files
// through the ingestion lifecycle.
type Pool struct {
	store   *store.Store
	manager *transition.Manager
	limiter *ratelimit.Limiter
	breaker *ratelimit.CircuitBreaker
	adapter indexadapter.Adapter
	logger  *slog.Logger

	concurrency  int
	batchSize    int
	pollInterval time.Duration
	checkpointer Checkpointer

	paused atomic.Bool
}

// New constructs a Pool.
func New(s *store.Store, manager *transition.Manager, limiter *ratelimit.Limiter, breaker *ratelimit.CircuitBreaker, adapter indexadapter.Adapter, opts Options) *Pool {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checkpointer := opts.Checkpointer
	if checkpointer == nil {
		checkpointer = noopCheckpointer{}
	}

	return &Pool{
		store:        s,
		manager:      manager,
		limiter:      limiter,
		breaker:      breaker,
		adapter:      adapter,
		logger:       logger,
		concurrency:  concurrency,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		checkpointer: checkpointer,
	}
}

var eligibleStates = []store.FileState{store.StateUntracked, store.StateUploading, store.StateProcessing}

// Run claims and processes batches until ctx is cancelled, the breaker
// halts, or the adapter reports credit exhaustion. On a clean
// cancellation it returns nil; workers finish their current transition
// and release locks before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		switch p.breaker.State() {
		case ratelimit.BreakerHalted:
			return ErrHalted
		case ratelimit.BreakerOpen:
			if err := p.sleep(ctx); err != nil {
				return nil
			}
			continue
		}

		if p.paused.Load() {
			if err := p.sleep(ctx); err != nil {
				return nil
			}
			continue
		}

		batch, err := p.store.ListEligibleStates(ctx, eligibleStates, p.batchSize)
		if err != nil {
			return fmt.Errorf("workerpool: claim batch: %w", err)
		}

		if len(batch) == 0 {
			if err := p.sleep(ctx); err != nil {
				return nil
			}
			continue
		}

		if err := p.processBatch(ctx, batch); err != nil {
			return err
		}
	}
}

func (p *Pool) sleep(ctx context.Context) error {
	select {
	case <-time.After(p.pollInterval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) processBatch(ctx context.Context, batch []store.FileRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, rec := range batch {
		rec := rec
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return p.processOne(gctx, rec)
		})
	}

	return g.Wait()
}

// processOne drives a single claimed row through its next event. It
// returns a non-nil error only for the two adapter conditions that stop
// the whole pool: credit exhaustion and an integrity violation. (A
// latched circuit breaker is detected by Run between batches.)
// Every other adapter or transition failure is logged and left for the
// next batch to retry.
func (p *Pool) processOne(ctx context.Context, rec store.FileRecord) error {
	switch rec.State {
	case store.StateUntracked:
		return p.advanceUntracked(ctx, rec)
	case store.StateUploading:
		return p.advanceUploading(ctx, rec)
	case store.StateProcessing:
		return p.advanceProcessing(ctx, rec)
	default:
		return nil
	}
}

func (p *Pool) advanceUntracked(ctx context.Context, rec store.FileRecord) error {
	if _, err := p.manager.Transition(ctx, rec.Path, fsm.EventStartUpload, transition.StartUploadPayload{}); err != nil {
		p.logger.Error("start_upload transition failed", "path", rec.Path, "error", err)
		return nil
	}

	if err := p.limiter.Wait(ctx, 1); err != nil {
		p.logger.Warn("rate limiter wait failed", "path", rec.Path, "error", err)
		return nil
	}

	_, err := p.adapter.Upload(ctx, rec.Path, rec.ContentHash, rec.MetadataJSON)
	if err == nil {
		p.limiter.ReportSuccess()
		p.breaker.RecordSuccess()
		return nil
	}

	return p.handleAdapterError(ctx, rec.Path, "upload", err)
}

func (p *Pool) advanceUploading(ctx context.Context, rec store.FileRecord) error {
	if err := p.limiter.Wait(ctx, 1); err != nil {
		p.logger.Warn("rate limiter wait failed", "path", rec.Path, "error", err)
		return nil
	}

	handle, err := p.adapter.Upload(ctx, rec.Path, rec.ContentHash, rec.MetadataJSON)
	if err != nil {
		return p.handleAdapterError(ctx, rec.Path, "upload", err)
	}

	result, err := p.adapter.Poll(ctx, handle)
	if err != nil {
		return p.handleAdapterError(ctx, rec.Path, "upload", err)
	}
	p.limiter.ReportSuccess()
	p.breaker.RecordSuccess()

	switch result.Phase {
	case indexadapter.PollPending:
		return nil
	case indexadapter.PollUploadComplete, indexadapter.PollReady:
		if _, err := p.manager.Transition(ctx, rec.Path, fsm.EventUploadComplete, transition.UploadCompletePayload{OperationHandle: handle}); err != nil {
			p.logger.Error("upload_complete transition failed", "path", rec.Path, "error", err)
		}
		return nil
	case indexadapter.PollFailed:
		p.failRow(ctx, rec.Path, fsm.EventFailUpload, "upload", result.Reason)
		return nil
	default:
		return nil
	}
}

func (p *Pool) advanceProcessing(ctx context.Context, rec store.FileRecord) error {
	if err := p.limiter.Wait(ctx, 1); err != nil {
		p.logger.Warn("rate limiter wait failed", "path", rec.Path, "error", err)
		return nil
	}

	handle, err := p.adapter.Upload(ctx, rec.Path, rec.ContentHash, rec.MetadataJSON)
	if err != nil {
		return p.handleAdapterError(ctx, rec.Path, "processing", err)
	}

	result, err := p.adapter.Poll(ctx, handle)
	if err != nil {
		return p.handleAdapterError(ctx, rec.Path, "processing", err)
	}
	p.limiter.ReportSuccess()
	p.breaker.RecordSuccess()

	switch result.Phase {
	case indexadapter.PollReady:
		payload := transition.ProcessingCompletePayload{ExternalFileID: result.ExternalFileID, ExternalStoreID: result.ExternalStoreID}
		if _, err := p.manager.Transition(ctx, rec.Path, fsm.EventProcessingComplete, payload); err != nil {
			p.logger.Error("processing_complete transition failed", "path", rec.Path, "error", err)
		}
		return nil
	case indexadapter.PollFailed:
		p.failRow(ctx, rec.Path, fsm.EventFailProcessing, "processing", result.Reason)
		return nil
	default:
		return nil
	}
}

func (p *Pool) failRow(ctx context.Context, path string, event fsm.Event, stage, reason string) {
	if reason == "" {
		reason = "index service reported failure"
	}
	if _, err := p.manager.Transition(ctx, path, event, transition.FailurePayload{Error: reason, Stage: stage}); err != nil {
		p.logger.Error("fail_* transition failed", "path", path, "error", err)
	}
}

// handleAdapterError classifies an adapter error and decides whether to
// retry later (transient, rate-limit), pause the whole pool (credit
// exhausted), drive the row to failed (reject), or crash the worker
// (integrity violation).
func (p *Pool) handleAdapterError(ctx context.Context, path, stage string, err error) error {
	kind := indexadapter.KindOf(err)
	switch kind {
	case indexadapter.KindTransient:
		p.breaker.RecordFailure()
		p.logger.Warn("transient adapter error, will retry", "path", path, "stage", stage, "error", err)
		return nil
	case indexadapter.KindRateLimit:
		p.breaker.RecordFailure()
		retryAfter := indexadapter.RetryAfterOf(err)
		if waitErr := p.limiter.ReportRateLimited(ctx, retryAfter); waitErr != nil {
			p.logger.Warn("rate limit backoff interrupted", "path", path, "error", waitErr)
		}
		return nil
	case indexadapter.KindCreditExhausted:
		p.logger.Error("index service credit exhausted, pausing pool", "path", path)
		p.paused.Store(true)
		if cpErr := p.checkpointer.Save(ctx, "credit_exhausted"); cpErr != nil {
			p.logger.Error("failed to write checkpoint", "error", cpErr)
		}
		return ErrCreditExhausted
	case indexadapter.KindReject:
		p.breaker.RecordFailure()
		event := fsm.EventFailUpload
		if stage == "processing" {
			event = fsm.EventFailProcessing
		}
		p.failRow(ctx, path, event, stage, err.Error())
		return nil
	case indexadapter.KindIntegrityViolation:
		return fmt.Errorf("workerpool: integrity violation on %s: %w", path, err)
	default:
		p.breaker.RecordFailure()
		p.logger.Error("unclassified adapter error", "path", path, "stage", stage, "error", err)
		return nil
	}
}

// Pause stops the pool from claiming new batches without affecting
// in-flight work. Resume clears it.
func (p *Pool) Pause() { p.paused.Store(true) }

// Resume allows the pool to claim new batches again.
func (p *Pool) Resume() { p.paused.Store(false) }

// Paused reports whether the pool is currently refusing to claim new
// batches.
func (p *Pool) Paused() bool { return p.paused.Load() }
