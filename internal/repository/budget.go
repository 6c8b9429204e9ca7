package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/freightguard/internal/model"
	"github.com/mmeshcher/freightguard/internal/money"
)

const dayLayout = "YYYY-MM-DD"

// DailyBudgetExists сообщает, создана ли строка бюджета на текущую дату БД.
func (r *PostgresRepository) DailyBudgetExists(ctx context.Context) (bool, error) {
	return dailyBudgetExists(ctx, r.pool)
}

// EnsureDailyBudget создаёт строку бюджета на текущую дату и событие BUDGET_RESET_DAILY,
// если строки ещё нет. Проверка, событие и строка фиксируются одной транзакцией под
// блокировкой журнала, поэтому параллельные вызовы создают ровно одну строку и одно событие.
// Возвращает nil, если бюджет уже существовал.
func (r *PostgresRepository) EnsureDailyBudget(
	ctx context.Context,
	total float64,
	seal func(day string) model.EventSealer,
) (*model.LedgerEvent, error) {
	var created *model.LedgerEvent

	err := r.withRetry(ctx, func() error {
		created = nil
		return r.inTx(ctx, func(tx pgx.Tx) error {
			if err := lockLedger(ctx, tx); err != nil {
				return err
			}

			exists, err := dailyBudgetExists(ctx, tx)
			if err != nil {
				return err
			}
			if exists {
				return nil
			}

			var day string
			if err := tx.QueryRow(ctx, `SELECT to_char(current_date, '`+dayLayout+`')`).Scan(&day); err != nil {
				return fmt.Errorf("select current date: %w", err)
			}

			ev, err := appendLocked(ctx, tx, seal(day))
			if err != nil {
				return err
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO risk_budget_daily (day, budget_total, budget_left, updated_at)
				 VALUES ($1::date, $2, $2, now())`,
				day, total,
			)
			if err != nil {
				return fmt.Errorf("insert daily budget: %w", err)
			}

			created = &ev
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// TakeBudget списывает cost с сегодняшнего бюджета в отдельной транзакции.
// Если cost больше остатка, бюджет не меняется и возвращается false.
func (r *PostgresRepository) TakeBudget(ctx context.Context, cost float64) (bool, float64, error) {
	var debit model.BudgetDebit

	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var err error
			debit, err = takeLocked(ctx, tx, cost)
			return err
		})
	})
	if err != nil {
		return false, 0, err
	}
	return debit.OK, debit.Left, nil
}

// takeLocked блокирует строку сегодняшнего бюджета FOR UPDATE до конца tx и списывает cost,
// если остатка хватает. Для неположительной стоимости остаток только читается.
func takeLocked(ctx context.Context, tx pgx.Tx, cost float64) (model.BudgetDebit, error) {
	var current float64
	err := tx.QueryRow(ctx,
		`SELECT budget_left::float8 FROM risk_budget_daily WHERE day = current_date FOR UPDATE`,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.BudgetDebit{}, ErrBudgetMissing
		}
		return model.BudgetDebit{}, fmt.Errorf("lock daily budget: %w", err)
	}

	if !money.IsPositive(cost) {
		return model.BudgetDebit{OK: true, Left: current}, nil
	}
	if cost > current {
		return model.BudgetDebit{OK: false, Left: current}, nil
	}

	left := money.Sub(current, cost)
	_, err = tx.Exec(ctx,
		`UPDATE risk_budget_daily SET budget_left = $1, updated_at = now() WHERE day = current_date`,
		left,
	)
	if err != nil {
		return model.BudgetDebit{}, fmt.Errorf("update daily budget: %w", err)
	}

	return model.BudgetDebit{OK: true, Left: left}, nil
}

// GetBudgetLeft возвращает текущий остаток сегодняшнего бюджета без блокировки.
func (r *PostgresRepository) GetBudgetLeft(ctx context.Context) (float64, error) {
	var left float64
	err := r.pool.QueryRow(ctx,
		`SELECT budget_left::float8 FROM risk_budget_daily WHERE day = current_date`,
	).Scan(&left)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrBudgetMissing
		}
		return 0, fmt.Errorf("select budget left: %w", err)
	}
	return left, nil
}

// GetTodayBudget возвращает строку сегодняшнего бюджета или nil, если её нет.
func (r *PostgresRepository) GetTodayBudget(ctx context.Context) (*model.DailyBudget, error) {
	var b model.DailyBudget
	err := r.pool.QueryRow(ctx,
		`SELECT day, budget_total::float8, budget_left::float8, updated_at
		 FROM risk_budget_daily
		 WHERE day = current_date`,
	).Scan(&b.Day, &b.BudgetTotal, &b.BudgetLeft, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select today budget: %w", err)
	}
	return &b, nil
}

func dailyBudgetExists(ctx context.Context, q querier) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM risk_budget_daily WHERE day = current_date)`,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check daily budget: %w", err)
	}
	return exists, nil
}
