// Package main запускает обработчик очереди команд: оценку риска операций и запись решений в журнал.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/freightguard/internal/budget"
	"github.com/mmeshcher/freightguard/internal/config"
	"github.com/mmeshcher/freightguard/internal/ledger"
	"github.com/mmeshcher/freightguard/internal/metrics"
	"github.com/mmeshcher/freightguard/internal/queue"
	"github.com/mmeshcher/freightguard/internal/repository"
	"github.com/mmeshcher/freightguard/internal/weather"
	"github.com/mmeshcher/freightguard/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.ParseWorker()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	registry, err := metrics.NewRegistry("freightguard/worker")
	if err != nil {
		sugar.Fatalw("metrics initialization error", "error", err.Error())
	}
	defer registry.Shutdown(context.Background())

	jobs, err := metrics.NewJobs(registry)
	if err != nil {
		sugar.Fatalw("metrics initialization error", "error", err.Error())
	}

	store := ledger.NewStore(repo)
	budgetLedger := budget.NewLedger(repo, store, cfg.DailyBudgetTotal, logger)
	q := queue.New(repo, logger)
	weatherClient := weather.NewClient(cfg.OWMBaseURL, cfg.OWMKeyPath, cfg.WeatherTimeout, logger)

	processor := worker.New(q, budgetLedger, store, weatherClient, jobs, logger, worker.Config{
		PollInterval: cfg.PollInterval,
		ErrorBackoff: cfg.ErrorBackoff,
	})

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := repo.Ping(r.Context()); err != nil {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Method(http.MethodGet, "/metrics", registry.Handler())

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Цикл обработки очереди; текущая команда дорабатывается после сигнала
	g.Go(func() error {
		sugar.Infow("starting worker", "daily_budget_total", cfg.DailyBudgetTotal)
		processor.Run(ctx)
		return nil
	})

	// Периодический аудит журнала: расхождения только пишутся в лог
	if cfg.AuditInterval > 0 {
		g.Go(func() error {
			scheduler, err := gocron.NewScheduler()
			if err != nil {
				return fmt.Errorf("create scheduler: %w", err)
			}

			_, err = scheduler.NewJob(
				gocron.DurationJob(cfg.AuditInterval),
				gocron.NewTask(func() {
					runAudit(ctx, store, logger)
				}),
			)
			if err != nil {
				return fmt.Errorf("schedule audit: %w", err)
			}

			scheduler.Start()

			<-ctx.Done()

			return scheduler.Shutdown()
		})
	}

	g.Go(func() error {
		sugar.Infow("starting worker metrics server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down worker...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("worker terminated with error", "error", err)
	}
	sugar.Info("worker stopped gracefully")
}

func runAudit(ctx context.Context, store *ledger.Store, logger *zap.Logger) {
	report, err := store.Audit(ctx)
	if err != nil {
		logger.Error("ledger audit failed", zap.Error(err))
		return
	}

	logger.Info("ledger audit",
		zap.Bool("ok", report.OK),
		zap.Int("events", report.Events),
		zap.Int("issues", len(report.Issues)),
	)
	for _, issue := range report.Issues {
		logger.Error("ledger audit issue",
			zap.Int64("event_id", issue.ID),
			zap.String("issue", issue.Issue),
			zap.String("expected", issue.Expected),
			zap.String("got", issue.Got),
		)
	}
}
