package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/freightguard/internal/canonical"
	"github.com/mmeshcher/freightguard/internal/model"
)

// AppendEvent дописывает событие в конец цепочки. Хеш хвоста читается и новое событие
// вставляется под advisory-блокировкой журнала.
func (r *PostgresRepository) AppendEvent(ctx context.Context, seal model.EventSealer) (model.LedgerEvent, error) {
	var ev model.LedgerEvent

	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var err error
			ev, err = appendLocked(ctx, tx, seal)
			return err
		})
	})
	if err != nil {
		return model.LedgerEvent{}, err
	}
	return ev, nil
}

// RecordDecision в одной транзакции списывает cost с бюджета, дописывает событие решения,
// создаёт строку проекции (повторная вставка по тому же opId игнорируется) и переводит
// команду в DONE. Событие и проекция строятся build по итогу списания. При любой ошибке
// откатывается всё, включая списание.
func (r *PostgresRepository) RecordDecision(
	ctx context.Context,
	commandID int64,
	cost float64,
	build func(debit model.BudgetDebit) (model.EventSealer, model.ProjectFunc),
) (model.LedgerEvent, model.BudgetDebit, error) {
	var (
		ev    model.LedgerEvent
		debit model.BudgetDebit
	)

	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			// Порядок блокировок как в EnsureDailyBudget: журнал, затем строка бюджета.
			if err := lockLedger(ctx, tx); err != nil {
				return err
			}

			var err error
			debit, err = takeLocked(ctx, tx, cost)
			if err != nil {
				return err
			}

			seal, project := build(debit)

			ev, err = appendLocked(ctx, tx, seal)
			if err != nil {
				return err
			}

			if err := insertProjection(ctx, tx, project(ev)); err != nil {
				return err
			}

			return completeCommand(ctx, tx, commandID)
		})
	})
	if err != nil {
		return model.LedgerEvent{}, model.BudgetDebit{}, err
	}
	return ev, debit, nil
}

// ListEvents возвращает все события журнала в порядке записи.
func (r *PostgresRepository) ListEvents(ctx context.Context) ([]model.LedgerEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, created_at, type, payload, prev_hash, hash
		 FROM ledger_events
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var events []model.LedgerEvent
	for rows.Next() {
		var (
			ev        model.LedgerEvent
			createdAt time.Time
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&ev.ID, &createdAt, &eventType, &payload, &ev.PrevHash, &ev.Hash); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.CreatedAt = canonical.Timestamp(createdAt)
		ev.Type = model.EventType(eventType)
		ev.Payload = payload
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}

func lockLedger(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	return nil
}

func lastEventHash(ctx context.Context, q querier) (string, error) {
	var hash string
	err := q.QueryRow(ctx, `SELECT hash FROM ledger_events ORDER BY id DESC LIMIT 1`).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.GenesisHash, nil
		}
		return "", fmt.Errorf("select last hash: %w", err)
	}
	return hash, nil
}

// appendLocked берёт блокировку журнала, запечатывает событие и вставляет его.
// Блокировка снимается при завершении транзакции tx.
func appendLocked(ctx context.Context, tx pgx.Tx, seal model.EventSealer) (model.LedgerEvent, error) {
	if err := lockLedger(ctx, tx); err != nil {
		return model.LedgerEvent{}, err
	}

	prev, err := lastEventHash(ctx, tx)
	if err != nil {
		return model.LedgerEvent{}, err
	}

	ev, err := seal(prev)
	if err != nil {
		return model.LedgerEvent{}, fmt.Errorf("seal event: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO ledger_events (created_at, type, payload, prev_hash, hash)
		 VALUES ($1::timestamptz, $2, $3::jsonb, $4, $5)
		 RETURNING id`,
		ev.CreatedAt, string(ev.Type), string(ev.Payload), ev.PrevHash, ev.Hash,
	).Scan(&ev.ID)
	if err != nil {
		return model.LedgerEvent{}, fmt.Errorf("insert event: %w", err)
	}

	return ev, nil
}
