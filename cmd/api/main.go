// Package main запускает HTTP API приёма команд, чтения проекций и аудита журнала.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/freightguard/internal/config"
	"github.com/mmeshcher/freightguard/internal/handler"
	"github.com/mmeshcher/freightguard/internal/ledger"
	"github.com/mmeshcher/freightguard/internal/metrics"
	"github.com/mmeshcher/freightguard/internal/queue"
	"github.com/mmeshcher/freightguard/internal/repository"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.ParseAPI()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	registry, err := metrics.NewRegistry("freightguard/api")
	if err != nil {
		sugar.Fatalw("metrics initialization error", "error", err.Error())
	}
	defer registry.Shutdown(context.Background())

	requests, err := metrics.NewRequests(registry)
	if err != nil {
		sugar.Fatalw("metrics initialization error", "error", err.Error())
	}

	h := handler.NewHandler(queue.New(repo, logger), repo, ledger.NewStore(repo), logger)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(requests, registry.Handler()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting api server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
