package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wdlrun/wdlrun/internal/backend/testbackend"
	"github.com/wdlrun/wdlrun/internal/config"
	"github.com/wdlrun/wdlrun/internal/docload"
	"github.com/wdlrun/wdlrun/internal/downloadauth"
	"github.com/wdlrun/wdlrun/internal/downloadcache"
	"github.com/wdlrun/wdlrun/internal/fsio"
	"github.com/wdlrun/wdlrun/internal/health"
	"github.com/wdlrun/wdlrun/internal/health/checks"
	"github.com/wdlrun/wdlrun/internal/plugin"
	"github.com/wdlrun/wdlrun/internal/shutdown"
	"github.com/wdlrun/wdlrun/internal/shutdown/hooks"
	"github.com/wdlrun/wdlrun/internal/stdlib"
	"github.com/wdlrun/wdlrun/internal/store"
	"github.com/wdlrun/wdlrun/internal/workflowrun"
	"github.com/wdlrun/wdlrun/pkg/logging"
	"github.com/wdlrun/wdlrun/pkg/metrics"
)

// fetchHTTP is the downloadcache.FetchFunc backing the http/https
// file-download hooks: a plain GET, streamed straight into the cache's
// temp file.
func fetchHTTP(ctx context.Context, uri string, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetching %s: status %d", uri, resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", err
	}
	return resp.Header.Get("Content-Type"), nil
}

// fetchPrivate builds the downloadcache.FetchFunc backing the "priv"
// file-download hook: like fetchHTTP, but the request carries a bearer
// token signer mints scoped to this URI, for a downloader hook fronting a
// private bucket or signed-URL source rather than a public endpoint.
func fetchPrivate(signer *downloadauth.Signer) downloadcache.FetchFunc {
	return func(ctx context.Context, uri string, w io.Writer) (string, error) {
		token, err := signer.Mint(uri)
		if err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("fetching %s: status %d", uri, resp.StatusCode)
		}
		if _, err := io.Copy(w, resp.Body); err != nil {
			return "", err
		}
		return resp.Header.Get("Content-Type"), nil
	}
}

// loadConfig reads a RunnerConfig from --config, falling back to
// config.DefaultConfig() when no file was given, and validates the
// result before returning it.
func loadConfig() (config.RunnerConfig, error) {
	cfg := config.DefaultConfig()
	if cfgFile != "" {
		data, err := os.ReadFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", cfgFile, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// runtime bundles everything a command needs to drive a run, wired from
// one RunnerConfig: a document loader, the run index, the download
// cache, the plugin registry, the engine itself, and the process's
// observability/lifecycle surface (logger, metrics, health, shutdown).
type runtime struct {
	cfg      config.RunnerConfig
	engine   *workflowrun.Engine
	store    store.Store
	cache    *downloadcache.Cache
	plugins  *plugin.Registry
	logger   *logging.Logger
	metrics  *metrics.Registry
	health   *health.Registry
	shutdown *shutdown.Manager
}

// bootstrap wires one RunnerConfig into a running engine: the document
// loader (internal/docload) backs workflowrun.DocumentLoader, the
// download cache and plugin registry are handed to Activities, and the
// container backend is internal/backend/testbackend, the only Backend
// implementation this module ships (a real Docker/Kubernetes backend is
// left to a host-specific plugin). It also brings up the process's
// ambient stack: a structured logger set as the slog default, a
// Prometheus registry (when cfg.Metrics.Enabled), a health-check
// registry wired to the run store, and a shutdown
// manager every other piece registers a cleanup hook with.
func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: "stdout"})
	logger.SetDefault()

	var metricsRegistry *metrics.Registry
	if cfg.Metrics.Enabled {
		metricsRegistry = metrics.NewRegistry(metrics.DefaultConfig().WithVersion(Version))
	}

	shutdownMgr := shutdown.NewManager(shutdown.DefaultConfig(), logger.Logger)

	loader := docload.New(true)
	workflowrun.DocumentLoader = loader.Load

	cache, err := downloadcache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("starting download cache: %w", err)
	}
	shutdownMgr.RegisterHook(hooks.CacheShutdown("downloadcache", cache))

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}
	shutdownMgr.RegisterHook(hooks.DatabaseShutdown("run-store", st))

	healthRegistry := health.NewRegistry(Version)
	healthRegistry.Register(checks.NewCustomChecker("run-store", func(ctx context.Context) health.CheckResult {
		start := time.Now()
		if _, err := st.ListRuns(ctx, 1, 0); err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Message: err.Error(), Duration: time.Since(start)}
		}
		return health.CheckResult{Status: health.StatusHealthy, Duration: time.Since(start)}
	}, checks.WithCustomSeverity(health.SeverityCritical)))

	plugins := plugin.New(nil)
	plugins.RegisterFileDownload("http", plugin.FileDownloadHookFunc(func(ctx context.Context, uri string) (string, error) {
		return cache.GetOrFetch(ctx, uri, fetchHTTP)
	}))
	plugins.RegisterFileDownload("https", plugin.FileDownloadHookFunc(func(ctx context.Context, uri string) (string, error) {
		return cache.GetOrFetch(ctx, uri, fetchHTTP)
	}))
	if cfg.DownloadAuth.Enabled {
		signer := downloadauth.NewSigner(cfg.DownloadAuth.SigningKey, cfg.DownloadAuth.TokenTTL)
		plugins.RegisterFileDownload("priv", plugin.FileDownloadHookFunc(func(ctx context.Context, uri string) (string, error) {
			return cache.GetOrFetch(ctx, uri, fetchPrivate(signer))
		}))
	}
	plugins.RegisterWorkflow(plugin.WorkflowHookFunc(func(ctx context.Context, run plugin.WorkflowRunInfo, failure error) {
		_ = st.UpdateStatus(ctx, run.RunID, store.StatusFailed, failure.Error())
	}))

	be := testbackend.New()
	taskIO := stdlib.IO(fsio.New(cfg.MountPoint))
	activities := workflowrun.NewActivities(loader.Load, be, taskIO, cfg.MountPoint, plugins)

	engine, err := workflowrun.NewEngine(cfg.Workflow, plugins)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("constructing engine: %w", err)
	}
	if err := engine.Start(ctx, activities); err != nil {
		st.Close()
		return nil, fmt.Errorf("starting engine: %w", err)
	}
	shutdownMgr.Register("engine", shutdown.PriorityBackgroundWorkers, func(ctx context.Context) error {
		return engine.Stop()
	})

	return &runtime{
		cfg:      cfg,
		engine:   engine,
		store:    st,
		cache:    cache,
		plugins:  plugins,
		logger:   logger,
		metrics:  metricsRegistry,
		health:   healthRegistry,
		shutdown: shutdownMgr,
	}, nil
}

// observabilityHandler returns an http.Handler serving /health,
// /health/live, /health/ready, and (when metrics are enabled) /metrics.
func (rt *runtime) observabilityHandler() http.Handler {
	r := chi.NewRouter()
	health.NewHandler(rt.health).RegisterRoutes(r)
	if rt.metrics != nil {
		rt.metrics.RegisterMetricsRoute(r)
	}
	return r
}

// close runs every registered shutdown hook (engine, store, download
// cache) through the shutdown manager, best-effort and bounded by its
// configured timeout.
func (rt *runtime) close() {
	rt.shutdown.Shutdown()
}
