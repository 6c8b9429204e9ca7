// Package handler содержит HTTP-обработчики API приёма команд и чтения проекций.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/freightguard/internal/model"
	"github.com/mmeshcher/freightguard/internal/validation"
)

const (
	operationsLimit = 200
	maxBodyBytes    = 256 << 10
)

// Commands определяет контракт постановки команд в очередь.
type Commands interface {
	Enqueue(ctx context.Context, kind model.CommandKind, payload any) (int64, error)
}

// Reader определяет контракт чтения проекций и проверки хранилища.
type Reader interface {
	ListOperations(ctx context.Context, limit int) ([]model.OperationView, error)
	GetTodayBudget(ctx context.Context) (*model.DailyBudget, error)
	Ping(ctx context.Context) error
}

// Auditor определяет контракт пересчёта журнала.
type Auditor interface {
	Audit(ctx context.Context) (model.AuditReport, error)
}

// Handler реализует HTTP-обработчики API. Решений по операциям не принимает.
type Handler struct {
	commands Commands
	reader   Reader
	auditor  Auditor
	logger   *zap.Logger
	newID    func() string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(c Commands, r Reader, a Auditor, logger *zap.Logger) *Handler {
	return &Handler{
		commands: c,
		reader:   r,
		auditor:  a,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type acceptedResponse struct {
	Accepted bool   `json:"accepted"`
	OpID     string `json:"opId"`
}

// CreateOperation валидирует запрос, назначает opId и ставит команду CREATE_OPERATION в очередь.
func (h *Handler) CreateOperation(w http.ResponseWriter, r *http.Request) {
	var in validation.OperationInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload_too_large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_json"})
		return
	}

	req, err := validation.ValidateOperation(in)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	req.OpID = h.newID()

	id, err := h.commands.Enqueue(r.Context(), model.CommandKindCreateOperation, req)
	if err != nil {
		h.internalError(w, "enqueue command error", err)
		return
	}

	h.logger.Info("operation accepted", zap.Int64("command_id", id), zap.String("op_id", req.OpID))
	writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: true, OpID: req.OpID})
}

type operationResponse struct {
	OpID          string          `json:"op_id"`
	OriginLat     float64         `json:"origin_lat"`
	OriginLon     float64         `json:"origin_lon"`
	DestLat       float64         `json:"dest_lat"`
	DestLon       float64         `json:"dest_lon"`
	CargoValue    float64         `json:"cargo_value"`
	SLAHours      int             `json:"sla_hours"`
	PenaltyValue  float64         `json:"penalty_value"`
	Decision      string          `json:"decision"`
	Cost          float64         `json:"cost"`
	BudgetLeft    float64         `json:"budget_left"`
	EventHash     string          `json:"event_hash"`
	CreatedAt     string          `json:"created_at"`
	OriginWeather json.RawMessage `json:"origin_weather"`
	DestWeather   json.RawMessage `json:"dest_weather"`
	RiskIdx       *float64        `json:"risk_idx"`
}

type operationsResponse struct {
	Items []operationResponse `json:"items"`
}

// ListOperations возвращает последние проекции операций вместе с погодой из журнала.
func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	views, err := h.reader.ListOperations(r.Context(), operationsLimit)
	if err != nil {
		h.internalError(w, "list operations error", err)
		return
	}

	resp := operationsResponse{Items: make([]operationResponse, 0, len(views))}
	for _, v := range views {
		resp.Items = append(resp.Items, operationResponse{
			OpID:          v.OpID,
			OriginLat:     v.Origin.Lat,
			OriginLon:     v.Origin.Lon,
			DestLat:       v.Destination.Lat,
			DestLon:       v.Destination.Lon,
			CargoValue:    v.CargoValue,
			SLAHours:      v.SLAHours,
			PenaltyValue:  v.PenaltyValue,
			Decision:      string(v.Decision),
			Cost:          v.Cost,
			BudgetLeft:    v.BudgetLeft,
			EventHash:     v.EventHash,
			CreatedAt:     v.CreatedAt.UTC().Format(time.RFC3339Nano),
			OriginWeather: v.OriginWeather,
			DestWeather:   v.DestWeather,
			RiskIdx:       v.RiskIdx,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type budgetResponse struct {
	Day         *string  `json:"day"`
	BudgetTotal *float64 `json:"budget_total"`
	BudgetLeft  *float64 `json:"budget_left"`
	UpdatedAt   *string  `json:"updated_at,omitempty"`
}

// GetTodayBudget возвращает строку бюджета на сегодня или объект из null, если её нет.
func (h *Handler) GetTodayBudget(w http.ResponseWriter, r *http.Request) {
	b, err := h.reader.GetTodayBudget(r.Context())
	if err != nil {
		h.internalError(w, "get today budget error", err)
		return
	}

	if b == nil {
		writeJSON(w, http.StatusOK, budgetResponse{})
		return
	}

	day := b.Day.Format(time.DateOnly)
	updated := b.UpdatedAt.UTC().Format(time.RFC3339Nano)
	writeJSON(w, http.StatusOK, budgetResponse{
		Day:         &day,
		BudgetTotal: &b.BudgetTotal,
		BudgetLeft:  &b.BudgetLeft,
		UpdatedAt:   &updated,
	})
}

// Audit пересчитывает хеш-цепочку и бюджет по журналу.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	report, err := h.auditor.Audit(r.Context())
	if err != nil {
		h.internalError(w, "audit error", err)
		return
	}

	if !report.OK {
		h.logger.Warn("ledger audit found issues", zap.Int("issues", len(report.Issues)))
	}

	writeJSON(w, http.StatusOK, report)
}

// Health проверяет доступность хранилища.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.reader.Ping(r.Context()); err != nil {
		h.internalError(w, "health check error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))

	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error", Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
