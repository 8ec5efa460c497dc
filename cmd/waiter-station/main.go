package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waiter-station/internal/common/config"
	"waiter-station/internal/common/logger"
	"waiter-station/internal/kitchen"
	"waiter-station/internal/notify"
	"waiter-station/internal/posserver"
	"waiter-station/internal/terminal"
)

func main() {
	mode := flag.String("mode", "", "terminal | pos-server | kitchen-worker | notification-subscriber")
	serverURL := flag.String("server-url", "http://localhost:8069", "terminal: POS server base URL")
	configPath := flag.String("config", "", "server modes: config file (default: auto-detect)")
	workerName := flag.String("worker-name", "", "kitchen-worker: unique worker name")
	prepSeconds := flag.Int("prep-seconds", 20, "kitchen-worker: seconds per preparation stage")
	prefetch := flag.Int("prefetch", 1, "kitchen-worker: RabbitMQ prefetch")
	flag.Parse()

	lg := logger.New("bootstrap")
	defer logger.Sync()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "terminal":
		if err := terminal.Run(ctx, *serverURL); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "pos-server":
		cfg := loadConfig(*configPath)
		lg.Info("service_started", map[string]any{"service": "pos-server", "port": cfg.Server.Port})
		if err := posserver.Run(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "kitchen-worker":
		if *workerName == "" {
			fmt.Fprintln(os.Stderr, "--worker-name is required for kitchen-worker")
			os.Exit(2)
		}
		cfg := loadConfig(*configPath)
		lg.Info("service_started", map[string]any{"service": "kitchen-worker", "worker": *workerName})
		if err := kitchen.Run(ctx, cfg, kitchen.Config{
			WorkerName: *workerName,
			PrepTime:   time.Duration(*prepSeconds) * time.Second,
			Prefetch:   *prefetch,
		}); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "notification-subscriber":
		cfg := loadConfig(*configPath)
		lg.Info("service_started", map[string]any{"service": "notification-subscriber"})
		if err := notify.Run(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: terminal | pos-server | kitchen-worker | notification-subscriber")
		os.Exit(2)
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		found, err := config.FindConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "no config file found; pass --config")
			os.Exit(2)
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return cfg
}
