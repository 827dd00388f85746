package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gestao/internal/backend"
	"gestao/internal/cli"
	"gestao/internal/core"
	apphttp "gestao/internal/http"
	applog "gestao/internal/log"
	"gestao/internal/services"
)

func main() {
	logger, cfg := cli.Bootstrap(cli.ModeServer)

	// Validate already rejected unknown versions.
	categories, _ := core.CategorySet(cfg.CategorySetVersion)

	backendCfg, err := backend.ConfigFrom(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", "error", err)
	}
	opened, err := backend.NewFactory(logger).Open(context.Background(), backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open backend", "error", err, "backend", cfg.DataBackend)
	}

	svc := services.NewRecordService(opened.Backend, nil, categories, opened.Publisher)

	// A failed initial load leaves the server not ready; POST /api/reload
	// retries it.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if n, err := svc.Load(loadCtx); err != nil {
		logger.Error("Initial record load failed", "error", err, "backend", cfg.DataBackend)
	} else {
		logger.Info("Working set ready", "records", n)
	}
	loadCancel()

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		BackendName:        cfg.DataBackend,
		Remote:             opened.Remote,
		Logger: applog.New(applog.Config{
			Component: applog.ComponentHTTP,
			Handler:   logger.Handler(),
		}),
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	logger.Info("Starting gestao server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"category_set", cfg.CategorySetVersion,
		"events", opened.Publisher != nil)

	err = cli.ServeUntilSignal(logger, 30*time.Second,
		func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		func(ctx context.Context) error {
			return errors.Join(srv.Shutdown(ctx), opened.Close())
		})
	if err != nil {
		cli.Fatal(logger, "Server stopped with error", "error", err, "port", cfg.Port)
	}
	logger.Info("Server stopped gracefully")
}
