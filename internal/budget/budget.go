// Package budget управляет дневным бюджетом риска: ежедневным сбросом и списаниями.
package budget

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/freightguard/internal/model"
	"github.com/mmeshcher/freightguard/internal/money"
)

// Repository описывает контракт хранилища дневного бюджета.
type Repository interface {
	DailyBudgetExists(ctx context.Context) (bool, error)
	EnsureDailyBudget(ctx context.Context, total float64, seal func(day string) model.EventSealer) (*model.LedgerEvent, error)
	TakeBudget(ctx context.Context, cost float64) (bool, float64, error)
	GetBudgetLeft(ctx context.Context) (float64, error)
}

// Sealer строит события журнала. Реализуется ledger.Store.
type Sealer interface {
	Seal(eventType model.EventType, payload any) model.EventSealer
}

// ResetPayload это полезная нагрузка события BUDGET_RESET_DAILY.
type ResetPayload struct {
	Day   string  `json:"day"`
	Total float64 `json:"total"`
}

// Result это итог попытки списания.
type Result struct {
	OK   bool
	Left float64
}

// Ledger это дневной бюджет риска. Единственный владелец строк DailyBudget.
type Ledger struct {
	repo   Repository
	sealer Sealer
	total  float64
	logger *zap.Logger
}

// NewLedger создаёт бюджет с заданным дневным лимитом.
func NewLedger(repo Repository, sealer Sealer, dailyTotal float64, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		repo:   repo,
		sealer: sealer,
		total:  money.Round2(dailyTotal),
		logger: logger,
	}
}

// EnsureDaily создаёт бюджет на сегодня, если его ещё нет. Безопасен при повторных и
// параллельных вызовах: на день создаётся одна строка и одно событие сброса.
func (l *Ledger) EnsureDaily(ctx context.Context) error {
	exists, err := l.repo.DailyBudgetExists(ctx)
	if err != nil {
		return fmt.Errorf("check daily budget: %w", err)
	}
	if exists {
		return nil
	}

	ev, err := l.repo.EnsureDailyBudget(ctx, l.total, func(day string) model.EventSealer {
		return l.sealer.Seal(model.EventBudgetResetDaily, ResetPayload{Day: day, Total: l.total})
	})
	if err != nil {
		return fmt.Errorf("ensure daily budget: %w", err)
	}

	if ev != nil {
		l.logger.Info("budget reset",
			zap.Float64("total", l.total),
			zap.Int64("event_id", ev.ID),
			zap.String("hash", ev.Hash),
		)
	}
	return nil
}

// Take списывает cost с сегодняшнего бюджета. Для неположительной или нечисловой
// стоимости ничего не списывается и возвращается текущий остаток.
func (l *Ledger) Take(ctx context.Context, cost float64) (Result, error) {
	if !money.IsPositive(cost) {
		left, err := l.repo.GetBudgetLeft(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{OK: true, Left: left}, nil
	}

	ok, left, err := l.repo.TakeBudget(ctx, money.Round2(cost))
	if err != nil {
		return Result{}, err
	}
	return Result{OK: ok, Left: left}, nil
}
