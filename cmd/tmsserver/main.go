package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammed-shakir/tms-layers/internal/cache"
	"github.com/mohammed-shakir/tms-layers/internal/cache/configcache"
	"github.com/mohammed-shakir/tms-layers/internal/cache/redisstore"
	"github.com/mohammed-shakir/tms-layers/internal/core/config"
	"github.com/mohammed-shakir/tms-layers/internal/core/health"
	"github.com/mohammed-shakir/tms-layers/internal/core/observability"
	"github.com/mohammed-shakir/tms-layers/internal/core/server"
	"github.com/mohammed-shakir/tms-layers/internal/coverage"
	"github.com/mohammed-shakir/tms-layers/internal/hotness/expdecay"
	"github.com/mohammed-shakir/tms-layers/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/tms-layers/internal/logger"
	h3mapper "github.com/mohammed-shakir/tms-layers/internal/mapper/h3"
	"github.com/mohammed-shakir/tms-layers/internal/metrics"
	"github.com/mohammed-shakir/tms-layers/internal/service"
	"github.com/mohammed-shakir/tms-layers/internal/store"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "tms-layers",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mp := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Addr:    cfg.MetricsAddr,
		Path:    cfg.MetricsPath,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	if mp != nil {
		observability.Init(mp.Registerer(), true)
	}
	observability.ExposeBuildInfo(Version)

	appLog.Info("starting tms-layers",
		slog.String("addr", cfg.Addr),
		slog.String("version", Version),
		slog.String("db", cfg.DBPath),
		slog.Bool("redis", cfg.RedisAddr != ""),
		slog.Bool("invalidation", cfg.Invalidation.Enabled))

	st, err := store.Open(cfg.DBPath, appLog)
	if err != nil {
		appLog.Error("failed to open store", slog.Any("error", err))
		return 1
	}
	defer func() { _ = st.Close() }()

	if cfg.SeedFile != "" {
		s, err := store.LoadSeed(ctx, st, cfg.SeedFile)
		if err != nil {
			appLog.Error("failed to load seed", slog.String("file", cfg.SeedFile), slog.Any("error", err))
			return 1
		}
		appLog.Info("seed loaded", slog.Int("datasets", len(s.Datasets)), slog.Int("layers", len(s.Layers)))
	}

	checks := map[string]health.Check{"store": st.Ping}

	// remote stays a nil interface without redis, a typed nil would pass the
	// cache's nil check
	var remote cache.Interface
	if cfg.RedisAddr != "" {
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Error("failed to connect to redis", slog.String("addr", cfg.RedisAddr), slog.Any("error", err))
			return 1
		}
		defer func() { _ = rc.Close() }()
		remote = rc
		checks["redis"] = rc.Ping
	}

	docs := configcache.New(configcache.Config{
		LocalSize: cfg.CacheLocalSize,
		LocalTTL:  cfg.CacheLocalTTL,
		RemoteTTL: cfg.CacheTTL,
		OpTimeout: cfg.CacheOpTimeout,
	}, remote, appLog)

	cov := coverage.New(h3mapper.New(), cfg.CoverageH3Res, appLog)
	svc := service.New(st, docs, cov, appLog)
	if cfg.WarmThreshold > 0 {
		svc.WithWarming(expdecay.New(cfg.WarmHalfLife), cfg.WarmThreshold)
	}
	if err := svc.RebuildCoverage(ctx); err != nil {
		appLog.Error("failed to index dataset coverage", slog.Any("error", err))
		return 1
	}

	ready := health.Options{Checks: checks}
	if cfg.Invalidation.Enabled {
		consumer := kafkaconsumer.New(cfg.Invalidation, appLog, svc)
		if err := consumer.Start(ctx); err != nil {
			appLog.Error("failed to start invalidation consumer", slog.Any("error", err))
			return 1
		}
		defer consumer.Stop()
		ready.Consumer = consumer
	}

	deps := server.Deps{
		Layers:        svc,
		PublicBaseURL: cfg.PublicBaseURL,
		Ready:         health.Readiness(ready),
	}
	if mp != nil {
		if mp.Standalone() {
			go func() {
				if err := mp.Serve(ctx, appLog); err != nil {
					appLog.Error("metrics server exited", slog.Any("error", err))
				}
			}()
		} else {
			deps.Metrics = mp.Handler()
			deps.MetricsPath = mp.Path()
		}
	}

	if err := server.Run(ctx, cfg.Addr, appLog, server.NewRouter(appLog, deps)); err != nil {
		appLog.Error("server exited with error", slog.Any("error", err))
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
