package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/heyxyz/heycache"
	"github.com/heyxyz/heycache/hooks/async"
	promhooks "github.com/heyxyz/heycache/hooks/prom"
	"github.com/heyxyz/heycache/internal/api"
	"github.com/heyxyz/heycache/internal/store"
	"github.com/heyxyz/heycache/internal/store/clickhouse"
	"github.com/heyxyz/heycache/internal/store/postgres"
	"github.com/heyxyz/heycache/invalidate"
	logrusadapter "github.com/heyxyz/heycache/log/logrus"
	slogadapter "github.com/heyxyz/heycache/log/slog"
	zapadapter "github.com/heyxyz/heycache/log/zap"
	pr "github.com/heyxyz/heycache/provider"
	"github.com/heyxyz/heycache/provider/bigcache"
	"github.com/heyxyz/heycache/provider/memory"
	"github.com/heyxyz/heycache/provider/redis"
	"github.com/heyxyz/heycache/provider/ristretto"
	"github.com/heyxyz/heycache/ratelimit"
	"github.com/heyxyz/heycache/sloghooks"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:  "heyapi",
		Usage: "Hey API with cache-aside reads, write invalidation and ingestion rate limiting",
	}
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-backend",
			Usage:   "zap, logrus or slog",
			Value:   "zap",
			EnvVars: []string{"LOG_BACKEND"},
		},
	}
	app.Commands = []*cli.Command{
		runCmd,
	}
	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the API service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "cache and rate limit store; empty disables both",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "local-cache",
			Usage:   "in-process store used when redis-url is empty: ristretto or bigcache",
			EnvVars: []string{"LOCAL_CACHE"},
		},
		&cli.StringFlag{
			Name:    "cache-prefix",
			EnvVars: []string{"CACHE_PREFIX"},
		},
		&cli.StringFlag{
			Name:    "cache-codec",
			Usage:   "payload format of cached entries: json, msgpack or cbor",
			Value:   "json",
			EnvVars: []string{"CACHE_CODEC"},
		},
		&cli.IntFlag{
			Name:    "cache-max-entry-bytes",
			Usage:   "skip caching values that encode larger than this; 0 disables",
			EnvVars: []string{"CACHE_MAX_ENTRY_BYTES"},
		},
		&cli.StringFlag{
			Name:     "database-url",
			Required: true,
			EnvVars:  []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "clickhouse-url",
			Usage:   "analytics store; empty disables impression ingestion",
			EnvVars: []string{"CLICKHOUSE_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":4784",
			EnvVars: []string{"HEY_API_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":4785",
			EnvVars: []string{"HEY_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "internal-secret",
			EnvVars: []string{"HEY_INTERNAL_SECRET"},
		},
		&cli.StringFlag{
			Name:    "verified-feature-id",
			EnvVars: []string{"VERIFIED_FEATURE_ID"},
		},
		&cli.StringFlag{
			Name:    "staff-pick-feature-id",
			EnvVars: []string{"STAFF_PICK_FEATURE_ID"},
		},
		&cli.StringSliceFlag{
			Name:    "trusted-proxies",
			Usage:   "CIDRs of reverse proxies whose X-Forwarded-For is trusted; empty uses the socket peer",
			EnvVars: []string{"TRUSTED_PROXIES"},
		},
		&cli.BoolFlag{
			Name:    "ratelimit-fail-closed",
			Usage:   "reject requests when the rate limit store is unreachable",
			EnvVars: []string{"RATELIMIT_FAIL_CLOSED"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log, sync, err := newLogger(cctx.String("log-backend"), cctx.String("log-level"))
		if err != nil {
			return err
		}
		defer sync()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		hooks := asynchook.New(heycache.MultiHooks{
			promhooks.New(reg),
			sloghooks.New(slog.Default(), sloghooks.Options{HitMissEvery: 100}),
		}, 2, 4096)
		defer hooks.Close()

		p, counter, err := newProvider(ctx, cctx, log)
		if err != nil {
			return err
		}

		cache, err := heycache.New(heycache.Options{
			Provider: p,
			Logger:   log,
			Hooks:    hooks,
			Prefix:   cctx.String("cache-prefix"),
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := cache.Close(context.Background()); err != nil {
				log.Warn("closing cache", heycache.Fields{"err": err})
			}
		}()

		db, err := postgres.New(ctx, log, cctx.String("database-url"))
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}

		var analytics store.Analytics
		if u := cctx.String("clickhouse-url"); u != "" {
			ch, err := clickhouse.New(ctx, log, u)
			if err != nil {
				return err
			}
			defer ch.Close()
			analytics = ch
		} else {
			log.Warn("CLICKHOUSE_URL not set; impressions disabled", nil)
		}

		features := invalidate.FeatureIDs{
			Verified:  cctx.String("verified-feature-id"),
			StaffPick: cctx.String("staff-pick-feature-id"),
		}
		policy := ratelimit.FailOpen
		if cctx.Bool("ratelimit-fail-closed") {
			policy = ratelimit.FailClosed
		}

		srv, err := api.New(api.Config{
			InternalSecret: cctx.String("internal-secret"),
			Features:       features,
			LimiterPolicy:  policy,
			Codec:          cctx.String("cache-codec"),
			MaxEntryBytes:  cctx.Int("cache-max-entry-bytes"),
			TrustedProxies: cctx.StringSlice("trusted-proxies"),
		}, api.Deps{
			Cache:       cache,
			Coordinator: invalidate.New(invalidate.DefaultRegistry(features), cache, invalidate.Options{Logger: log, Hooks: hooks}),
			Counter:     counter,
			DB:          db,
			Analytics:   analytics,
			Logger:      log,
			Hooks:       hooks,
		})
		if err != nil {
			return err
		}

		metrics := &http.Server{
			Addr:              cctx.String("metrics-listen"),
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("metrics listening", heycache.Fields{"addr": metrics.Addr})
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", heycache.Fields{"err": err})
			}
		}()

		errc := make(chan error, 1)
		go func() { errc <- srv.Start(cctx.String("bind")) }()

		select {
		case <-ctx.Done():
			log.Info("shutting down", nil)
		case err := <-errc:
			if err != nil {
				return err
			}
		}

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn("api shutdown", heycache.Fields{"err": err})
		}
		if err := metrics.Shutdown(sctx); err != nil {
			log.Warn("metrics shutdown", heycache.Fields{"err": err})
		}
		return nil
	},
}

// newProvider picks the store. Redis serves both the cache and the limiter;
// a local cache gets an in-process counter; no store runs disabled.
func newProvider(ctx context.Context, cctx *cli.Context, log heycache.Logger) (pr.Provider, pr.Counter, error) {
	if u := cctx.String("redis-url"); u != "" {
		r, err := redis.New(redis.Config{
			URL:             u,
			Logger:          log,
			MaxRetries:      5,
			MinRetryBackoff: 50 * time.Millisecond,
			MaxRetryBackoff: 2 * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := r.Connect(ctx); err != nil {
			// reads miss and writes drop until the client reconnects
			log.Warn("redis unreachable at startup; continuing", heycache.Fields{"err": err})
		}
		return r, r, nil
	}

	switch kind := cctx.String("local-cache"); kind {
	case "":
		log.Warn("REDIS_URL not set; caching and rate limiting disabled", nil)
		return nil, nil, nil
	case "ristretto":
		p, err := ristretto.New(ristretto.DefaultConfig())
		if err != nil {
			return nil, nil, err
		}
		return p, memory.New(), nil
	case "bigcache":
		p, err := bigcache.New(bigcache.Config{LifeWindow: 3 * time.Hour, HardMaxCacheSizeMB: 256})
		if err != nil {
			return nil, nil, err
		}
		return p, memory.New(), nil
	default:
		return nil, nil, fmt.Errorf("unknown local cache %q", kind)
	}
}

func newLogger(backend, level string) (heycache.Logger, func(), error) {
	switch backend {
	case "", "zap":
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, nil, err
		}
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		zl, err := cfg.Build()
		if err != nil {
			return nil, nil, err
		}
		return zapadapter.Named(zl, "heyapi"), func() { _ = zl.Sync() }, nil
	case "logrus":
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, nil, err
		}
		l := logrus.New()
		l.SetLevel(lvl)
		l.SetFormatter(&logrus.JSONFormatter{})
		return logrusadapter.New(l, "heyapi"), func() {}, nil
	case "slog":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, nil, err
		}
		l := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
		slog.SetDefault(l)
		return slogadapter.Logger{L: l}, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown log backend %q", backend)
}
