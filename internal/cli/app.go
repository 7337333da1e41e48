package cli

import (
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/corpusgraph/internal/config"
	"github.com/roach88/corpusgraph/internal/indexadapter"
	"github.com/roach88/corpusgraph/internal/ratelimit"
	"github.com/roach88/corpusgraph/internal/search"
	"github.com/roach88/corpusgraph/internal/store"
	"github.com/roach88/corpusgraph/internal/transition"
)

// app bundles the dependencies every command builds from configuration:
// the store, the rate limiter, the circuit breaker, the index adapter,
// and a logger. Commands that only need a subset still pay for
// constructing all of it, which mirrors how small this CLI's surface
// is relative to the services it wires together.
type app struct {
	cfg     *config.Config
	store   *store.Store
	logger  *slog.Logger
	limiter *ratelimit.Limiter
	breaker *ratelimit.CircuitBreaker
	adapter indexadapter.Adapter
	manager *transition.Manager
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newApp(opts *RootOptions, concurrencyOverride int) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading configuration", err)
	}
	if concurrencyOverride > 0 {
		cfg.Concurrency = concurrencyOverride
	}

	logger := newLogger(opts.Debug || cfg.Debug)

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening store", err)
	}

	reg := prometheus.NewRegistry()
	limiter := ratelimit.NewLimiter(ratelimit.Quota{
		RequestsPerMinute: cfg.RequestsPerMinute,
		TokensPerMinute:   cfg.TokensPerMinute,
		RequestsPerDay:    cfg.RequestsPerDay,
	}, ratelimit.Options{Registerer: reg})

	breaker := ratelimit.NewCircuitBreaker(ratelimit.BreakerOptions{
		Threshold:  cfg.BreakerThreshold,
		Cooldown:   cfg.BreakerCooldown,
		Registerer: reg,
	})

	var adapter indexadapter.Adapter
	if cfg.IndexServiceURL == "" {
		adapter = indexadapter.NewMockAdapter(indexadapter.LatencyZero, 1)
	} else {
		httpAdapter, err := indexadapter.NewHTTPAdapter(indexadapter.HTTPOptions{
			BaseURL:          cfg.IndexServiceURL,
			CredentialEnvVar: cfg.IndexServiceAPIKeyEnv,
		})
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "constructing index adapter", err)
		}
		adapter = httpAdapter
	}

	locks := transition.NewLockManager()
	manager := transition.New(st, locks, logger)

	return &app{
		cfg:     cfg,
		store:   st,
		logger:  logger,
		limiter: limiter,
		breaker: breaker,
		adapter: adapter,
		manager: manager,
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}

func (a *app) searchPipeline(opts *RootOptions) *search.Pipeline {
	searchOpts := search.Options{Logger: a.logger}
	if opts.Expand {
		glossary, err := search.LoadGlossary(a.cfg.GlossaryPath)
		if err != nil {
			a.logger.Warn("glossary unavailable, query expansion disabled", "path", a.cfg.GlossaryPath, "error", err)
		} else {
			searchOpts.Glossary = glossary
		}
	}
	// No external reranking or generation endpoint is configured yet,
	// so the pipeline exercises its rerank/synthesize stages (and their
	// independent degradation paths) against deterministic fixtures
	// rather than skipping them outright.
	if opts.Rerank {
		searchOpts.Reranker = search.MockReranker{}
	}
	if opts.Synthesize {
		searchOpts.Synthesizer = search.MockSynthesizer{}
	}
	return search.New(a.store, a.adapter, searchOpts)
}

func outputFormatterFor(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
