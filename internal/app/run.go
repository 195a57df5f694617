package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"context-engine/internal/common/logging"
	"context-engine/internal/config"
	"context-engine/internal/server"
)

const shutdownTimeout = 15 * time.Second

// Run is the process entry point: load configuration, build the engine,
// serve HTTP, and drain cleanly on SIGINT/SIGTERM.
func Run() error {
	_ = godotenv.Load()

	runtime.GOMAXPROCS(runtime.NumCPU())

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", err)
		return err
	}

	a, err := New(cfg)
	if err != nil {
		logger.Error("Failed to initialize engine", err)
		return err
	}
	a.Start()

	srv := server.New(a.Routes(), cfg.Port, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", err)
		}
		a.Shutdown(context.Background())
		return err
	case sig := <-stop:
		logger.Info("Shutdown signal received",
			logging.String("signal", sig.String()),
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server did not drain cleanly",
			logging.Err(err),
		)
	}
	a.Shutdown(ctx)

	return nil
}
