// Package queue реализует очередь команд: приём, захват обработчиком и завершение.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/freightguard/internal/model"
)

// unknownError записывается в команду, если причина сбоя пуста.
const unknownError = "unknown_error"

// Repository описывает контракт хранилища команд.
type Repository interface {
	EnqueueCommand(ctx context.Context, kind model.CommandKind, payload []byte) (int64, error)
	ClaimNextCommand(ctx context.Context) (*model.Command, error)
	CompleteCommand(ctx context.Context, id int64) error
	FailCommand(ctx context.Context, id int64, message string) error
}

// Queue это очередь команд. Переходы: PENDING → PROCESSING → DONE | FAILED.
// Финальные статусы не меняются, автоматических повторов нет.
type Queue struct {
	repo   Repository
	logger *zap.Logger
}

// New создаёт очередь поверх хранилища команд.
func New(repo Repository, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{repo: repo, logger: logger}
}

// Enqueue ставит команду в очередь со статусом PENDING.
func (q *Queue) Enqueue(ctx context.Context, kind model.CommandKind, payload any) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal command payload: %w", err)
	}

	id, err := q.repo.EnqueueCommand(ctx, kind, raw)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ClaimNext захватывает самую старую свободную команду. Возвращает nil, если очередь пуста.
func (q *Queue) ClaimNext(ctx context.Context) (*model.Command, error) {
	cmd, err := q.repo.ClaimNextCommand(ctx)
	if err != nil {
		return nil, err
	}
	if cmd != nil {
		q.logger.Info("claimed command", zap.Int64("command_id", cmd.ID), zap.String("kind", string(cmd.Kind)))
	}
	return cmd, nil
}

// Complete переводит команду в DONE.
func (q *Queue) Complete(ctx context.Context, id int64) error {
	return q.repo.CompleteCommand(ctx, id)
}

// Fail переводит команду в FAILED с сообщением об ошибке.
func (q *Queue) Fail(ctx context.Context, id int64, message string) error {
	if message == "" {
		message = unknownError
	}
	return q.repo.FailCommand(ctx, id, message)
}
