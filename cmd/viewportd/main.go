package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/streetview-viewport/internal/cache"
	"github.com/mohammed-shakir/streetview-viewport/internal/cache/redisstore"
	"github.com/mohammed-shakir/streetview-viewport/internal/cache/response"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/config"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/coordinator"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/health"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/httpclient"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/observability"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/router"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/server"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/service"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/suppress"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/viewmode"
	"github.com/mohammed-shakir/streetview-viewport/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/streetview-viewport/internal/logger"
	"github.com/mohammed-shakir/streetview-viewport/internal/metrics"
	"github.com/mohammed-shakir/streetview-viewport/internal/prefs"
	"github.com/mohammed-shakir/streetview-viewport/internal/render"
	"github.com/mohammed-shakir/streetview-viewport/internal/searchevents"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("config", ".env", "dotenv file loaded before reading the environment")
	filterFile := flag.String("filter", "", "YAML file with the initial search filter")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		return 1
	}

	cfg := config.FromEnv()
	if *filterFile != "" {
		cfg.FilterFile = *filterFile
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Session:   cfg.Prefs.Session,
		Component: "viewportd",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting viewportd",
		"addr", cfg.Addr,
		"version", Version,
		"photo_service", cfg.Upstream.PhotoURL,
		"detection_service", cfg.Upstream.DetectionURL,
		"prefs", cfg.Prefs.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Version: Version,
		})
		metricsHandler = p.Handler()
		if cfg.Metrics.Addr != "" && cfg.Metrics.Addr != cfg.Addr {
			p.Serve(ctx, appLog)
		}
	} else {
		observability.Init(nil, false)
	}

	filter, err := config.LoadFilter(cfg.FilterFile)
	if err != nil {
		appLog.Error("filter file", "err", err)
		return 1
	}

	var redisCli cache.Interface
	var redisClose func() error
	if cfg.Prefs.Driver == "redis" || cfg.Cache.TTL > 0 {
		cli, err := redisstore.New(ctx, cfg.RedisAddr)
		switch {
		case err == nil:
			redisCli = redisstore.WithOpTimeout(cli, cfg.Cache.OpTimeout)
			redisClose = cli.Close
		case cfg.Prefs.Driver == "redis":
			appLog.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			return 1
		default:
			appLog.Warn("redis unavailable, response cache is in-process only", "addr", cfg.RedisAddr, "err", err)
		}
	}

	if redisClose != nil {
		defer func() { _ = redisClose() }()
	}

	store, err := openPrefs(ctx, cfg, redisCli)
	if err != nil {
		appLog.Error("preference store", "err", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLog.Warn("close preference store", "err", err)
		}
	}()
	store = prefs.WithDefaultFilter(store, filter)
	store = prefs.WithPhotoZoom(store, cfg.View.PhotoZoom, cfg.View.MapDataZoom)

	respCache := response.New(response.Config{Size: cfg.Cache.Size, TTL: cfg.Cache.TTL}, redisCli, appLog)
	src := service.New(appLog, httpclient.NewOutbound(cfg.Upstream.Timeout), service.Config{
		PhotoURL:     cfg.Upstream.PhotoURL,
		DetectionURL: cfg.Upstream.DetectionURL,
		SegmentURL:   cfg.Upstream.SegmentURL,
	}, service.WithResponseCache(respCache, cfg.Cache.CacheSearches))

	coordOpts := []coordinator.Option{coordinator.WithPhotoPageSize(cfg.View.NearbyPhotosMaxItems)}
	if cfg.Events.Enabled {
		pub, err := searchevents.NewPublisher(searchevents.Config{
			Brokers:   cfg.Events.Brokers,
			Topic:     cfg.Events.Topic,
			QueueSize: cfg.Events.QueueSize,
		}, appLog)
		if err != nil {
			appLog.Warn("search events disabled", "err", err)
		} else {
			defer func() { _ = pub.Close() }()
			coordOpts = append(coordOpts, coordinator.WithObserver(pub))
		}
	}

	if cfg.Events.InvalidationEnabled {
		consumer := kafkaconsumer.New(kafkaconsumer.Config{
			Brokers:             cfg.Events.Brokers,
			Topic:               cfg.Events.InvalidationTopic,
			GroupID:             cfg.Events.GroupID,
			InitialOffsetOldest: false,
		}, appLog, src)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("invalidation consumer stopped", "err", err)
			}
		}()
	}

	policy := suppress.NewPolicy(store, appLog)
	prompter := &suppress.LogPrompter{Logger: appLog, Answer: cfg.ErrorPromptAnswer}
	coord := coordinator.New(src, policy, prompter, appLog, coordOpts...)

	snap := render.NewSnapshot()
	disp := render.NewDispatcher(snap, cfg.View.RenderBuffer, cfg.View.DropStaleResults, appLog)
	go disp.Run(ctx)
	defer disp.Close()

	ctrl := viewmode.New(viewmode.Config{
		MapDataZoom:          cfg.View.MapDataZoom,
		MapPhotoZoom:         cfg.View.MapPhotoZoom,
		NearbyPhotosMaxItems: cfg.View.NearbyPhotosMaxItems,
	}, coord, disp, store, appLog)

	api := router.NewAPI(ctrl, snap, src, disp, store, appLog)
	ready := map[string]health.Check{
		"prefs": func(ctx context.Context) error {
			_, err := store.DataType(ctx)
			return err
		},
	}
	if redisCli != nil {
		ready["redis"] = func(ctx context.Context) error {
			_, _, err := redisCli.Get(ctx, "health:ping")
			return err
		}
	}

	opts := server.Options{Addr: cfg.Addr, Session: cfg.Prefs.Session, Ready: ready}
	if cfg.Metrics.Addr == cfg.Addr {
		opts.Metrics = metricsHandler
	}
	if err := server.Run(ctx, opts, appLog, api); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// openPrefs picks the preference backend. The redis client is owned by the
// caller and closed after the store.
func openPrefs(ctx context.Context, cfg config.Config, redisCli cache.Interface) (prefs.Store, error) {
	switch cfg.Prefs.Driver {
	case "memory", "":
		return prefs.NewMemory(), nil
	case "redis":
		return prefs.NewRedis(redisCli, cfg.Prefs.Session, nil), nil
	case "sqlite":
		return prefs.OpenSQLite(ctx, cfg.Prefs.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown PREFS_DRIVER %q", cfg.Prefs.Driver)
	}
}
