// Package model содержит доменные сущности сервиса оценки логистических операций.
package model

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrBudgetMissing возвращается, если строка дневного бюджета на сегодня отсутствует.
var ErrBudgetMissing = errors.New("budget_missing")

// CommandKind описывает тип команды в очереди.
type CommandKind string

// CommandKindCreateOperation это единственный поддерживаемый тип команды.
const CommandKindCreateOperation CommandKind = "CREATE_OPERATION"

// CommandStatus описывает статус обработки команды.
type CommandStatus string

const (
	CommandStatusPending    CommandStatus = "PENDING"
	CommandStatusProcessing CommandStatus = "PROCESSING"
	CommandStatusDone       CommandStatus = "DONE"
	CommandStatusFailed     CommandStatus = "FAILED"
)

// Command это единица работы, поставленная в очередь слоем приёма запросов.
type Command struct {
	ID        int64
	Kind      CommandKind
	Payload   json.RawMessage
	Status    CommandStatus
	Error     *string
	CreatedAt time.Time
}

// Point это географическая точка маршрута.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// OperationRequest это полезная нагрузка команды CREATE_OPERATION.
type OperationRequest struct {
	OpID         string  `json:"opId"`
	Origin       Point   `json:"origin"`
	Destination  Point   `json:"destination"`
	CargoValue   float64 `json:"cargoValue"`
	SLAHours     int     `json:"slaHours"`
	PenaltyValue float64 `json:"penaltyValue"`
}

// EventType описывает тип события журнала.
type EventType string

const (
	EventBudgetResetDaily EventType = "BUDGET_RESET_DAILY"
	EventOperationDecided EventType = "OPERATION_DECIDED"
)

// GenesisHash это значение prev_hash первого события цепочки.
const GenesisHash = "GENESIS"

// LedgerEvent это неизменяемая запись журнала, связанная хешем с предыдущей.
type LedgerEvent struct {
	ID        int64
	CreatedAt string
	Type      EventType
	Payload   json.RawMessage
	PrevHash  string
	Hash      string
}

// EventSealer вычисляет хеш нового события по хешу хвоста цепочки.
// Вызывается хранилищем под блокировкой, сериализующей запись в журнал.
type EventSealer func(prevHash string) (LedgerEvent, error)

// DailyBudget это строка дневного бюджета риска.
type DailyBudget struct {
	Day         time.Time
	BudgetTotal float64
	BudgetLeft  float64
	UpdatedAt   time.Time
}

// BudgetDebit это итог попытки списания с дневного бюджета.
type BudgetDebit struct {
	OK   bool
	Left float64
}

// Decision это итог оценки операции.
type Decision string

const (
	DecisionApproved         Decision = "APPROVED"
	DecisionApprovedWithCost Decision = "APPROVED_WITH_COST"
	DecisionBlocked          Decision = "BLOCKED"
)

// ReasonBudgetInsufficient фиксируется, когда решение принудительно заблокировано бюджетом.
const ReasonBudgetInsufficient = "budget_insufficient"

// OperationProjection это денормализованная строка для чтения, создаётся один раз на opId.
type OperationProjection struct {
	OpID         string
	Origin       Point
	Destination  Point
	CargoValue   float64
	SLAHours     int
	PenaltyValue float64
	Decision     Decision
	Cost         float64
	BudgetLeft   float64
	EventHash    string
	CreatedAt    time.Time
}

// ProjectFunc строит строку проекции по записанному событию решения.
type ProjectFunc func(ev LedgerEvent) OperationProjection

// OperationView это проекция вместе с данными породившего её события.
type OperationView struct {
	OperationProjection
	OriginWeather json.RawMessage
	DestWeather   json.RawMessage
	RiskIdx       *float64
}

// AuditIssue описывает одно расхождение, найденное при пересчёте цепочки.
type AuditIssue struct {
	ID       int64  `json:"id"`
	Issue    string `json:"issue"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
}

// DerivedBudget это бюджет, восстановленный только по событиям журнала.
type DerivedBudget struct {
	Total *float64 `json:"total"`
	Left  *float64 `json:"left"`
}

// AuditReport это результат проверки журнала.
type AuditReport struct {
	OK            bool          `json:"ok"`
	Issues        []AuditIssue  `json:"issues"`
	Events        int           `json:"events"`
	DerivedBudget DerivedBudget `json:"derived_budget"`
}
