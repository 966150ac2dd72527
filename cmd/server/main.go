package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/betbot/signaldesk/internal/analysis"
	"github.com/betbot/signaldesk/internal/feed"
	"github.com/betbot/signaldesk/internal/insight"
	"github.com/betbot/signaldesk/internal/marketdata"
	"github.com/betbot/signaldesk/internal/metrics"
	"github.com/betbot/signaldesk/internal/notify"
	"github.com/betbot/signaldesk/internal/server"
	"github.com/betbot/signaldesk/internal/store"
	"github.com/betbot/signaldesk/pkg/config"
	"github.com/betbot/signaldesk/pkg/kvstore"
	"github.com/betbot/signaldesk/pkg/logger"
	"github.com/betbot/signaldesk/pkg/shutdown"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", os.Getenv("SIGNALDESK_CONFIG"), "config file (.yaml/.yml/.json)")
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides config)")
		syncOnBoot = flag.Bool("sync", false, "sync configured feeds once at startup")
	)
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.Listen = *listenAddr
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *syncOnBoot); err != nil {
		logger.Errorf("server exited: %v", err)
		os.Exit(1)
	}
	logger.Infof("server stopped")
}

func run(cfg *config.Config, syncOnBoot bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sd := shutdown.NewManager()

	db, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	sd.OnShutdown("store", func(context.Context) error { return db.Close() })

	bars, err := newBarSource(cfg.Bars, sd)
	if err != nil {
		_ = sd.Shutdown(context.Background())
		return err
	}

	gen, err := insight.New(cfg.Insight)
	if err != nil {
		_ = sd.Shutdown(context.Background())
		return err
	}
	if c, ok := gen.(*insight.Cached); ok {
		sd.OnShutdown("insight cache", func(context.Context) error { c.Close(); return nil })
	}

	notices := notify.NewCenter(200)
	svc, err := analysis.NewService(analysis.Options{
		Store:           db,
		Notices:         notices,
		Insight:         gen,
		Bars:            bars,
		Fetcher:         feed.NewFetcher(30 * time.Second),
		Feeds:           cfg.Feeds,
		ExpiryWindow:    cfg.Analysis.ExpiryWindow,
		DefaultInterval: cfg.Analysis.DefaultInterval,
	})
	if err != nil {
		_ = sd.Shutdown(context.Background())
		return err
	}

	if cfg.Stream.Enabled {
		ks := marketdata.NewKlineStream(marketdata.StreamOptions{
			Symbols:  cfg.Stream.Symbols,
			Interval: cfg.Stream.Interval,
			ProxyURL: cfg.Stream.ProxyURL,
		}, svc.StoreStreamBar)
		if err := ks.Start(ctx); err != nil {
			notices.Error("stream", "kline stream not started: %v", err)
		} else {
			sd.OnShutdown("kline stream", func(context.Context) error { ks.Stop(); return nil })
		}
	}

	if cfg.Metrics.Listen != "" {
		debugSrv, err := metrics.StartAsync(ctx, cfg.Metrics.Listen)
		if err != nil {
			logger.Warnf("metrics server not started: %v", err)
		} else {
			sd.OnShutdown("metrics server", debugSrv.Shutdown)
		}
	}

	autoSync := analysis.NewAutoSync(svc, cfg.Sync.Interval, cfg.Sync.MinGap)
	go autoSync.Run(ctx)
	if syncOnBoot {
		autoSync.Trigger()
	}

	srv, err := server.New(svc, autoSync)
	if err != nil {
		_ = sd.Shutdown(context.Background())
		return err
	}
	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	sd.OnShutdown("http server", httpSrv.Shutdown)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("signaldesk listening on %s", cfg.Server.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	var runErr error
	select {
	case sig := <-stopCh:
		logger.Infof("received %s", sig)
	case runErr = <-errCh:
	}
	cancel()
	<-autoSync.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	for _, err := range sd.Shutdown(shutdownCtx) {
		logger.Warnf("shutdown: %v", err)
	}
	return runErr
}

// newBarSource builds the remote bar source from config; nil means stored bars only.
func newBarSource(cfg config.BarsConfig, sd *shutdown.Manager) (marketdata.Source, error) {
	var inner marketdata.Source
	switch cfg.Provider {
	case "rest":
		inner = marketdata.NewRESTSource(cfg.BaseURL, 30*time.Second)
	case "binance":
		inner = marketdata.NewBinanceSource(cfg.BaseURL, 30*time.Second)
	default:
		return nil, nil
	}

	var kv *kvstore.Store
	if cfg.CacheDir != "" {
		var err error
		kv, err = kvstore.Open(kvstore.OpenOptions{Path: filepath.Join(cfg.CacheDir, "bars")})
		if err != nil {
			return nil, fmt.Errorf("open bar cache: %w", err)
		}
		sd.OnShutdown("bar cache", func(context.Context) error { return kv.Close() })
	}
	cached := marketdata.NewCachedSource(inner, kv, cfg.CacheTTL)
	sd.OnShutdown("bar memory cache", func(context.Context) error { cached.Close(); return nil })
	return cached, nil
}
