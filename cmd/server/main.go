package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/relaychat/internal/backplane"
	"github.com/Tyrowin/relaychat/internal/config"
	"github.com/Tyrowin/relaychat/internal/server"
	"github.com/Tyrowin/relaychat/internal/storage"
)

func main() {
	configDir := flag.String("config", "./configs", "directory containing config.yaml")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*configDir)
	if err != nil {
		logger.Error("cannot load config", "error", err)
		os.Exit(1)
	}

	store, err := storage.New(cfg.Upload.Dir)
	if err != nil {
		logger.Error("cannot prepare upload storage", "dir", cfg.Upload.Dir, "error", err)
		os.Exit(1)
	}

	opts := server.HubOptions{
		MaxMessageSize: cfg.MaxMessageSize,
		SendBufferSize: cfg.SendBufferSize,
		WriteWait:      cfg.WriteWait,
		PongWait:       cfg.PongWait,
	}

	var bp *backplane.Redis
	if cfg.Redis.Addr != "" {
		bp = backplane.NewRedis(cfg.Redis, logger)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := bp.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Error("cannot reach redis backplane", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		opts.Backplane = bp
	}

	hub := server.NewHub(opts, logger)
	relay := server.NewRelay(cfg, hub, store, logger)
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(relay))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, logger)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
	}

	if err := server.ShutdownServer(httpServer, 10*time.Second, logger); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := hub.Shutdown(5 * time.Second); err != nil {
		logger.Warn("hub shutdown incomplete", "error", err)
	}
	if bp != nil {
		if err := bp.Close(); err != nil {
			logger.Warn("closing backplane", "error", err)
		}
	}
}
