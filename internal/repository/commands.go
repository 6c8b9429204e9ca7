package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/freightguard/internal/model"
)

// EnqueueCommand ставит команду в очередь со статусом PENDING.
func (r *PostgresRepository) EnqueueCommand(ctx context.Context, kind model.CommandKind, payload []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO commands (kind, payload) VALUES ($1, $2::jsonb) RETURNING id`,
		string(kind), string(payload),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert command: %w", err)
	}
	return id, nil
}

// ClaimNextCommand атомарно переводит самую старую команду PENDING в PROCESSING.
// Строки, заблокированные другими обработчиками, пропускаются. Если свободных команд нет,
// возвращается nil без ошибки.
func (r *PostgresRepository) ClaimNextCommand(ctx context.Context) (*model.Command, error) {
	var cmd *model.Command

	err := r.withRetry(ctx, func() error {
		row := r.pool.QueryRow(ctx,
			`WITH c AS (
				SELECT id
				FROM commands
				WHERE status = $1
				ORDER BY created_at, id
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			UPDATE commands
			SET status = $2
			FROM c
			WHERE commands.id = c.id
			RETURNING commands.id, commands.kind, commands.payload, commands.status, commands.error, commands.created_at`,
			string(model.CommandStatusPending), string(model.CommandStatusProcessing),
		)

		var (
			c       model.Command
			kind    string
			status  string
			payload []byte
		)
		if err := row.Scan(&c.ID, &kind, &payload, &status, &c.Error, &c.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				cmd = nil
				return nil
			}
			return fmt.Errorf("claim command: %w", err)
		}

		c.Kind = model.CommandKind(kind)
		c.Status = model.CommandStatus(status)
		c.Payload = payload
		cmd = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cmd, nil
}

// CompleteCommand переводит команду в финальный статус DONE.
func (r *PostgresRepository) CompleteCommand(ctx context.Context, id int64) error {
	return r.withRetry(ctx, func() error {
		return completeCommand(ctx, r.pool, id)
	})
}

// FailCommand переводит команду в финальный статус FAILED с сообщением об ошибке.
func (r *PostgresRepository) FailCommand(ctx context.Context, id int64, message string) error {
	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE commands SET status = $2, error = $3 WHERE id = $1`,
			id, string(model.CommandStatusFailed), message,
		)
		if err != nil {
			return fmt.Errorf("fail command: %w", err)
		}
		return nil
	})
}

// GetCommand возвращает команду по идентификатору.
func (r *PostgresRepository) GetCommand(ctx context.Context, id int64) (*model.Command, error) {
	var (
		c       model.Command
		kind    string
		status  string
		payload []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, kind, payload, status, error, created_at FROM commands WHERE id = $1`,
		id,
	).Scan(&c.ID, &kind, &payload, &status, &c.Error, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get command: %w", err)
	}

	c.Kind = model.CommandKind(kind)
	c.Status = model.CommandStatus(status)
	c.Payload = payload
	return &c, nil
}

func completeCommand(ctx context.Context, q querier, id int64) error {
	_, err := q.Exec(ctx,
		`UPDATE commands SET status = $2, error = NULL WHERE id = $1`,
		id, string(model.CommandStatusDone),
	)
	if err != nil {
		return fmt.Errorf("complete command: %w", err)
	}
	return nil
}
