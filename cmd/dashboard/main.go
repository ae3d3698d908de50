package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/tradedash/internal/config"
	"github.com/betbot/tradedash/internal/dashboard"
	"github.com/betbot/tradedash/internal/gateway"
	"github.com/betbot/tradedash/internal/notify"
	"github.com/betbot/tradedash/internal/session"
	"github.com/betbot/tradedash/pkg/logger"
	"github.com/betbot/tradedash/pkg/shutdown"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "config file (yaml or json)")
	serverURL := flag.String("server", "", "bot base URL (overrides config)")
	flag.Parse()

	config.SetConfigPath(*configPath)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -server: %v\n", err)
			os.Exit(1)
		}
	}

	// 终端被 TUI 占用，日志只写文件
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.OutputFile = cfg.LogFile
	logCfg.Console = false
	if err := logger.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	wsURL, err := cfg.WebSocketURL()
	if err != nil {
		fmt.Fprintf(os.Stderr, "websocket url: %v\n", err)
		os.Exit(1)
	}

	sessCfg := session.DefaultConfig()
	sessCfg.URL = wsURL
	sessCfg.PingInterval = cfg.PingInterval
	sessCfg.ReconnectDelay = cfg.ReconnectDelay
	sessCfg.MaxReconnectDelay = cfg.MaxReconnectDelay
	sessCfg.MaxReconnectAttempts = cfg.MaxReconnectAttempts
	client := session.NewClient(sessCfg, nil)

	timing := notify.DefaultTiming()
	timing.Visible = cfg.ToastDuration

	model := dashboard.New(dashboard.Options{
		Channel: client,
		Gateway: gateway.New(gateway.NewClient(cfg.ServerURL, cfg.RequestTimeout)),
		Timing:  timing,
	})

	shutdowns := shutdown.NewManager()
	shutdowns.OnShutdown("session", func(ctx context.Context) error { return client.Close() })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("dashboard starting, server %s", cfg.ServerURL)
	client.Start()
	runErr := dashboard.Run(ctx, model)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdowns.Shutdown(closeCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}

	if runErr != nil {
		if errors.Is(runErr, dashboard.ErrNotTerminal) {
			fmt.Fprintln(os.Stderr, "tradedash needs an interactive terminal")
		} else {
			fmt.Fprintf(os.Stderr, "dashboard: %v\n", runErr)
		}
		if path := logger.GetCurrentLogFile(); path != "" {
			fmt.Fprintf(os.Stderr, "details in %s\n", path)
		}
		os.Exit(1)
	}
}
