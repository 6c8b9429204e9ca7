// Package worker реализует цикл обработки команд: захват, оценка риска, списание бюджета,
// запись решения в журнал.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/freightguard/internal/ledger"
	"github.com/mmeshcher/freightguard/internal/metrics"
	"github.com/mmeshcher/freightguard/internal/model"
	"github.com/mmeshcher/freightguard/internal/risk"
	"github.com/mmeshcher/freightguard/internal/weather"
)

// ErrUnknownCommandKind возвращается для команды неподдерживаемого типа.
var ErrUnknownCommandKind = errors.New("unknown_command_kind")

// Паузы цикла по умолчанию: после пустого захвата и после ошибки.
const (
	DefaultPollInterval = 700 * time.Millisecond
	DefaultErrorBackoff = 1200 * time.Millisecond
)

// Queue описывает операции очереди команд, нужные обработчику.
type Queue interface {
	ClaimNext(ctx context.Context) (*model.Command, error)
	Fail(ctx context.Context, id int64, message string) error
}

// Budget описывает подготовку дневного бюджета.
type Budget interface {
	EnsureDaily(ctx context.Context) error
}

// Ledger описывает атомарную запись решения: списание бюджета, событие, проекцию
// и завершение команды.
type Ledger interface {
	RecordDecision(
		ctx context.Context,
		commandID int64,
		cost float64,
		build ledger.DecisionFunc,
	) (model.LedgerEvent, model.BudgetDebit, error)
}

// WeatherFetcher получает наблюдение погоды в точке.
type WeatherFetcher interface {
	Fetch(ctx context.Context, lat, lon float64) (*weather.Observation, error)
}

// Config задаёт паузы цикла.
type Config struct {
	PollInterval time.Duration
	ErrorBackoff time.Duration
}

// Worker это последовательный обработчик очереди. Несколько процессов могут работать
// с одним хранилищем одновременно.
type Worker struct {
	queue   Queue
	budget  Budget
	ledger  Ledger
	weather WeatherFetcher
	jobs    metrics.JobSink
	logger  *zap.Logger
	cfg     Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// New создаёт обработчик очереди.
func New(q Queue, b Budget, l Ledger, wf WeatherFetcher, jobs metrics.JobSink, logger *zap.Logger, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:   q,
		budget:  b,
		ledger:  l,
		weather: wf,
		jobs:    jobs,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Run крутит цикл до отмены ctx. Ошибки отдельных команд и цикла не завершают его.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("loop start")

	for ctx.Err() == nil {
		did, err := w.ProcessOne(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				break
			}
			w.logger.Error("loop error", zap.Error(err))
			w.sleep(ctx, w.cfg.ErrorBackoff)
		case !did:
			w.sleep(ctx, w.cfg.PollInterval)
		}
	}

	w.logger.Info("loop stopped")
}

// ProcessOne захватывает и обрабатывает одну команду. Возвращает false, если очередь пуста.
// Ошибка возвращается только при сбое самой очереди.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	cmd, err := w.queue.ClaimNext(ctx)
	if err != nil {
		return false, fmt.Errorf("claim next: %w", err)
	}
	if cmd == nil {
		return false, nil
	}

	// Захваченная команда доводится до финального статуса даже при остановке процесса.
	runCtx := context.WithoutCancel(ctx)

	result, err := w.handle(runCtx, cmd)
	if err != nil {
		w.jobs.JobProcessed(metrics.JobFailed)
		w.logger.Warn("failed", zap.Int64("command_id", cmd.ID), zap.Error(err))

		if failErr := w.queue.Fail(runCtx, cmd.ID, err.Error()); failErr != nil {
			return true, fmt.Errorf("mark command %d failed: %w", cmd.ID, failErr)
		}
		return true, nil
	}

	w.jobs.JobProcessed(result)
	return true, nil
}

func (w *Worker) handle(ctx context.Context, cmd *model.Command) (result string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	if err := w.budget.EnsureDaily(ctx); err != nil {
		return "", err
	}

	if cmd.Kind != model.CommandKindCreateOperation {
		return "", ErrUnknownCommandKind
	}

	var req model.OperationRequest
	if err := json.Unmarshal(cmd.Payload, &req); err != nil {
		return "", fmt.Errorf("invalid_payload: %w", err)
	}

	return w.decide(ctx, cmd.ID, req)
}

func (w *Worker) decide(ctx context.Context, commandID int64, req model.OperationRequest) (string, error) {
	originObs, err := w.weather.Fetch(ctx, req.Origin.Lat, req.Origin.Lon)
	if err != nil {
		return "", fmt.Errorf("origin weather: %w", err)
	}
	destObs, err := w.weather.Fetch(ctx, req.Destination.Lat, req.Destination.Lon)
	if err != nil {
		return "", fmt.Errorf("destination weather: %w", err)
	}

	originRisk := risk.FromObservation(originObs)
	destRisk := risk.FromObservation(destObs)

	riskIdx := risk.Combine(originRisk, destRisk)
	decision := risk.Decide(riskIdx)
	cost := risk.CostFor(decision, req.CargoValue, req.PenaltyValue, riskIdx)

	at := w.now()
	originSummary := weather.Summarize(originObs, at)
	destSummary := weather.Summarize(destObs, at)

	build := func(debit model.BudgetDebit) (any, model.ProjectFunc) {
		decision, cost, reason := settle(decision, cost, debit)

		payload := DecisionPayload{
			OpID:          req.OpID,
			Origin:        req.Origin,
			Destination:   req.Destination,
			CargoValue:    req.CargoValue,
			SLAHours:      req.SLAHours,
			PenaltyValue:  req.PenaltyValue,
			Decision:      decision,
			Cost:          cost,
			RiskIdx:       riskIdx,
			BudgetLeft:    debit.Left,
			Reason:        reason,
			OriginWeather: originSummary,
			DestWeather:   destSummary,
			Weather: LegRisks{
				Origin:      originRisk,
				Destination: destRisk,
			},
		}

		project := func(ev model.LedgerEvent) model.OperationProjection {
			return model.OperationProjection{
				OpID:         req.OpID,
				Origin:       req.Origin,
				Destination:  req.Destination,
				CargoValue:   req.CargoValue,
				SLAHours:     req.SLAHours,
				PenaltyValue: req.PenaltyValue,
				Decision:     decision,
				Cost:         cost,
				BudgetLeft:   debit.Left,
				EventHash:    ev.Hash,
			}
		}

		return payload, project
	}

	ev, debit, err := w.ledger.RecordDecision(ctx, commandID, cost, build)
	if err != nil {
		if errors.Is(err, model.ErrBudgetMissing) {
			return "", model.ErrBudgetMissing
		}
		return "", err
	}

	decision, cost, reason := settle(decision, cost, debit)

	result := metrics.JobOK
	if !debit.OK {
		result = metrics.JobBlockedBudget
	}

	fields := []zap.Field{
		zap.Int64("command_id", commandID),
		zap.String("op_id", req.OpID),
		zap.String("decision", string(decision)),
		zap.Float64("cost", cost),
		zap.Float64("left", debit.Left),
		zap.String("hash", ev.Hash),
	}
	if reason != nil {
		fields = append(fields, zap.String("reason", *reason))
	}
	w.logger.Info("done", fields...)

	return result, nil
}

// settle применяет итог списания к решению: нехватка бюджета сильнее решения по риску.
func settle(decision model.Decision, cost float64, debit model.BudgetDebit) (model.Decision, float64, *string) {
	if debit.OK {
		return decision, cost, nil
	}
	reason := model.ReasonBudgetInsufficient
	return model.DecisionBlocked, 0, &reason
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
