// Package ledger реализует журнал событий с хеш-цепочкой и его аудит.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmeshcher/freightguard/internal/canonical"
	"github.com/mmeshcher/freightguard/internal/model"
	"github.com/mmeshcher/freightguard/internal/money"
)

// Repository описывает контракт хранилища событий, используемый журналом.
type Repository interface {
	AppendEvent(ctx context.Context, seal model.EventSealer) (model.LedgerEvent, error)
	RecordDecision(
		ctx context.Context,
		commandID int64,
		cost float64,
		build func(debit model.BudgetDebit) (model.EventSealer, model.ProjectFunc),
	) (model.LedgerEvent, model.BudgetDebit, error)
	ListEvents(ctx context.Context) ([]model.LedgerEvent, error)
}

// Store это журнал событий. Единственный владелец жизненного цикла LedgerEvent.
type Store struct {
	repo Repository
	now  func() time.Time
}

// NewStore создаёт журнал поверх хранилища событий.
func NewStore(repo Repository) *Store {
	return &Store{
		repo: repo,
		now:  time.Now,
	}
}

// Seal возвращает функцию, которая по хешу хвоста цепочки строит событие:
// фиксирует created_at с точностью до миллисекунд и вычисляет хеш.
func (s *Store) Seal(eventType model.EventType, payload any) model.EventSealer {
	return func(prevHash string) (model.LedgerEvent, error) {
		canon, err := canonical.Marshal(payload)
		if err != nil {
			return model.LedgerEvent{}, err
		}

		createdAt := canonical.Timestamp(s.now())

		hash, err := canonical.Digest(prevHash, string(eventType), json.RawMessage(canon), createdAt)
		if err != nil {
			return model.LedgerEvent{}, fmt.Errorf("digest event: %w", err)
		}

		return model.LedgerEvent{
			CreatedAt: createdAt,
			Type:      eventType,
			Payload:   canon,
			PrevHash:  prevHash,
			Hash:      hash,
		}, nil
	}
}

// Append дописывает событие в конец цепочки.
func (s *Store) Append(ctx context.Context, eventType model.EventType, payload any) (model.LedgerEvent, error) {
	ev, err := s.repo.AppendEvent(ctx, s.Seal(eventType, payload))
	if err != nil {
		return model.LedgerEvent{}, fmt.Errorf("append %s: %w", eventType, err)
	}
	return ev, nil
}

// DecisionFunc строит полезную нагрузку события решения и проекцию по итогу списания.
type DecisionFunc func(debit model.BudgetDebit) (payload any, project model.ProjectFunc)

// RecordDecision атомарно списывает cost, дописывает OPERATION_DECIDED, создаёт проекцию
// и завершает команду. Если списание не прошло, build получает итог с OK=false.
func (s *Store) RecordDecision(
	ctx context.Context,
	commandID int64,
	cost float64,
	build DecisionFunc,
) (model.LedgerEvent, model.BudgetDebit, error) {
	ev, debit, err := s.repo.RecordDecision(ctx, commandID, money.Round2(cost),
		func(d model.BudgetDebit) (model.EventSealer, model.ProjectFunc) {
			payload, project := build(d)
			return s.Seal(model.EventOperationDecided, payload), project
		})
	if err != nil {
		return model.LedgerEvent{}, model.BudgetDebit{}, fmt.Errorf("record decision: %w", err)
	}
	return ev, debit, nil
}

// Audit пересчитывает всю цепочку и бюджет по событиям.
func (s *Store) Audit(ctx context.Context) (model.AuditReport, error) {
	events, err := s.repo.ListEvents(ctx)
	if err != nil {
		return model.AuditReport{}, fmt.Errorf("list events: %w", err)
	}
	return Verify(events), nil
}
