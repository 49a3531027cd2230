// Package app wires the process-scoped object graph: path registry,
// telemetry, proxy pools, HTTP engine, caches, storage, the scraper
// orchestrator, and the profitability engine. No component reaches for
// global state; everything is constructed here and threaded explicitly.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	s3blob "github.com/mfigueredo/skinarb/internal/blob/s3"
	"github.com/mfigueredo/skinarb/internal/cache"
	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/httpx"
	"github.com/mfigueredo/skinarb/internal/paths"
	"github.com/mfigueredo/skinarb/internal/pipeline"
	"github.com/mfigueredo/skinarb/internal/profit"
	"github.com/mfigueredo/skinarb/internal/proxy"
	"github.com/mfigueredo/skinarb/internal/scraper"
	"github.com/mfigueredo/skinarb/internal/storage"
	"github.com/mfigueredo/skinarb/internal/telemetry"
)

// Dependencies bundles every component the CLI modes need.
type Dependencies struct {
	Paths        *paths.Registry
	Recorder     *telemetry.Recorder
	Metrics      *telemetry.Metrics
	Proxies      *proxy.Manager
	Engine       *httpx.Engine
	Memory       *cache.Memory
	Images       *cache.Images
	Store        *storage.Store
	Orchestrator *pipeline.Orchestrator
	Profit       *profit.Engine
	Archiver     *s3blob.Archiver
}

// Wire constructs all concrete implementations from the configuration and
// returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, secrets *config.Secrets, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pathReg, err := paths.New("", logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("app: wire paths: %w", err)
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	recorder := telemetry.NewRecorder(metrics)

	// --- Proxy pools ---
	var vendor *proxy.OculusClient
	if cfg.Proxy.Enabled {
		vendor = proxy.NewOculusClient(proxy.OculusConfig{
			APIURL:     cfg.Proxy.APIURL,
			AuthToken:  cfg.Proxy.AuthToken,
			OrderToken: cfg.Proxy.OrderToken,
			IPServices: cfg.Proxy.IPServices,
			Logger:     logger,
		})
	}
	proxies := proxy.NewManager(proxy.ManagerConfig{
		ErrorThreshold: cfg.Proxy.ErrorThreshold,
		Vendor:         vendor,
		Logger:         logger,
		Metrics:        metrics,
	})
	if cfg.Proxy.Enabled {
		proxies.Load(ctx, cfg.Proxy.Pools, cfg.Proxy.ProxiesPerPool, cfg.Proxy.Regions)
	}

	engine := httpx.NewEngine(httpx.EngineConfig{
		MaxRetries:      cfg.Settings.MaxRetries,
		BackoffBase:     cfg.Settings.RetryBackoffBase.Duration,
		BackoffCap:      cfg.Settings.RetryBackoffCap.Duration,
		Timeout:         cfg.Settings.Timeout.Duration,
		MaxConnections:  cfg.Settings.MaxConnections,
		MaxConnsPerHost: cfg.Settings.MaxConnsPerHost,
		Proxies:         proxies,
		Recorder:        recorder,
		Logger:          logger,
	})

	// --- Caches ---
	var memory *cache.Memory
	if cfg.Settings.CacheEnabled {
		memory, err = cache.NewMemory(cfg.Cache.MemoryLimitItems)
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: wire memory cache: %w", err)
		}
		sweepCtx, stopSweep := context.WithCancel(context.Background())
		closers = append(closers, stopSweep)
		go memory.RunSweeper(sweepCtx, cfg.Cache.SweepInterval.Duration)
	}

	images := cache.NewImages(pathReg.ImageCache, logger)
	if cfg.Cache.ImportImageTree != "" {
		if err := images.ImportTree(cfg.Cache.ImportImageTree); err != nil {
			logger.Warn("image tree import failed", slog.String("error", err.Error()))
		}
	}

	store := storage.New(pathReg, logger)

	deps := scraper.Deps{
		Engine:   engine,
		Secrets:  secrets,
		Store:    store,
		Images:   images,
		Recorder: recorder,
		SteamSem: semaphore.NewWeighted(int64(cfg.Settings.SteamMaxConcurrent)),
		Logger:   logger,
	}

	orchestrator := pipeline.NewOrchestrator(cfg, deps, logger)
	profitEngine := profit.NewEngine(store, memory, cfg.Profitability, metrics, logger)

	// --- Optional cold storage ---
	var archiver *s3blob.Archiver
	if cfg.Archive.Enabled {
		client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: wire archiver: %w", err)
		}
		archiver = s3blob.NewArchiver(client, pathReg, logger)
	}

	return &Dependencies{
		Paths:        pathReg,
		Recorder:     recorder,
		Metrics:      metrics,
		Proxies:      proxies,
		Engine:       engine,
		Memory:       memory,
		Images:       images,
		Store:        store,
		Orchestrator: orchestrator,
		Profit:       profitEngine,
		Archiver:     archiver,
	}, cleanup, nil
}
