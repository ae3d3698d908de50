package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/tradedash/internal/config"
	"github.com/betbot/tradedash/internal/stubserver"
	"github.com/betbot/tradedash/pkg/logger"
	"github.com/betbot/tradedash/pkg/shutdown"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "config file (yaml or json)")
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides config)")
		noSeed     = flag.Bool("no-seed", false, "do not fill an empty database with demo data")
	)
	flag.Parse()

	config.SetConfigPath(*configPath)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.OutputFile = ""
	if err := logger.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	srv, err := stubserver.New(stubserver.Config{
		DBPath:            cfg.DBPath,
		BroadcastInterval: cfg.BroadcastInterval,
		Seed:              !*noSeed,
	})
	if err != nil {
		logger.Errorf("init server failed: %v", err)
		os.Exit(1)
	}
	if err := srv.Start(); err != nil {
		logger.Errorf("start server failed: %v", err)
		_ = srv.Close()
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdowns := shutdown.NewManager()
	shutdowns.OnShutdown("stub server", func(ctx context.Context) error { return srv.Close() })
	shutdowns.OnShutdown("http", httpSrv.Shutdown)

	go func() {
		logger.Infof("stub server listening on %s (db %s)", cfg.ListenAddr, cfg.DBPath)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdowns.Shutdown(ctx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	fmt.Println("server stopped")
}
