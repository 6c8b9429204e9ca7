package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/freightguard/internal/metrics"
	"github.com/mmeshcher/freightguard/internal/model"
)

type enqueued struct {
	kind    model.CommandKind
	payload any
}

type stubCommands struct {
	calls []enqueued
	err   error
}

func (s *stubCommands) Enqueue(ctx context.Context, kind model.CommandKind, payload any) (int64, error) {
	s.calls = append(s.calls, enqueued{kind: kind, payload: payload})
	return int64(len(s.calls)), s.err
}

type stubReader struct {
	views     []model.OperationView
	viewsErr  error
	limit     int
	budget    *model.DailyBudget
	budgetErr error
	pingErr   error
}

func (s *stubReader) ListOperations(ctx context.Context, limit int) ([]model.OperationView, error) {
	s.limit = limit
	return s.views, s.viewsErr
}

func (s *stubReader) GetTodayBudget(ctx context.Context) (*model.DailyBudget, error) {
	return s.budget, s.budgetErr
}

func (s *stubReader) Ping(ctx context.Context) error {
	return s.pingErr
}

type stubAuditor struct {
	report model.AuditReport
	err    error
}

func (s *stubAuditor) Audit(ctx context.Context) (model.AuditReport, error) {
	return s.report, s.err
}

func newTestHandler(t *testing.T, c Commands, r Reader, a Auditor) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	h := NewHandler(c, r, a, logger)
	h.newID = func() string { return "op-fixed" }
	return h
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

const validBody = `{"origin":{"lat":55.75,"lon":37.61},"destination":{"lat":59.93,"lon":30.31},` +
	`"cargoValue":10000,"slaHours":24,"penaltyValue":500}`

func TestCreateOperation_Accepted(t *testing.T) {
	cmds := &stubCommands{}
	h := newTestHandler(t, cmds, &stubReader{}, &stubAuditor{})

	req := httptest.NewRequest(http.MethodPost, "/commands/operations", bytes.NewBufferString(validBody))
	rec := httptest.NewRecorder()

	h.CreateOperation(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, acceptedResponse{Accepted: true, OpID: "op-fixed"}, decode[acceptedResponse](t, rec))

	require.Len(t, cmds.calls, 1)
	assert.Equal(t, model.CommandKindCreateOperation, cmds.calls[0].kind)
	assert.Equal(t, model.OperationRequest{
		OpID:         "op-fixed",
		Origin:       model.Point{Lat: 55.75, Lon: 37.61},
		Destination:  model.Point{Lat: 59.93, Lon: 30.31},
		CargoValue:   10000,
		SLAHours:     24,
		PenaltyValue: 500,
	}, cmds.calls[0].payload)
}

func TestCreateOperation_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "not json", body: `{`, code: "invalid_json"},
		{name: "no destination", body: `{"origin":{"lat":1,"lon":2}}`, code: "missing_origin_or_destination"},
		{
			name: "sla not integer",
			body: `{"origin":{"lat":1,"lon":2},"destination":{"lat":3,"lon":4},"cargoValue":1,"slaHours":2.5,"penaltyValue":0}`,
			code: "invalid_slaHours",
		},
		{
			name: "penalty missing",
			body: `{"origin":{"lat":1,"lon":2},"destination":{"lat":3,"lon":4},"cargoValue":1,"slaHours":2}`,
			code: "invalid_penaltyValue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &stubCommands{}
			h := newTestHandler(t, cmds, &stubReader{}, &stubAuditor{})

			req := httptest.NewRequest(http.MethodPost, "/commands/operations", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			h.CreateOperation(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decode[errorResponse](t, rec).Error)
			assert.Empty(t, cmds.calls)
		})
	}
}

func TestCreateOperation_BodyTooLarge(t *testing.T) {
	cmds := &stubCommands{}
	h := newTestHandler(t, cmds, &stubReader{}, &stubAuditor{})

	body := `{"origin":{"lat":1,"lon":2},"pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/commands/operations", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateOperation(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload_too_large", decode[errorResponse](t, rec).Error)
	assert.Empty(t, cmds.calls)
}

func TestCreateOperation_EnqueueError(t *testing.T) {
	h := newTestHandler(t, &stubCommands{err: errors.New("db down")}, &stubReader{}, &stubAuditor{})

	req := httptest.NewRequest(http.MethodPost, "/commands/operations", bytes.NewBufferString(validBody))
	rec := httptest.NewRecorder()

	h.CreateOperation(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decode[errorResponse](t, rec).Error)
}

func TestListOperations(t *testing.T) {
	idx := 0.5
	reader := &stubReader{
		views: []model.OperationView{
			{
				OperationProjection: model.OperationProjection{
					OpID:        "op-1",
					Origin:      model.Point{Lat: 10, Lon: 11},
					Destination: model.Point{Lat: 20, Lon: 21},
					CargoValue:  10000,
					SLAHours:    24,
					Decision:    model.DecisionApprovedWithCost,
					Cost:        55,
					BudgetLeft:  945,
					EventHash:   "abc",
					CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				},
				OriginWeather: json.RawMessage(`{"temp_c":20}`),
				RiskIdx:       &idx,
			},
		},
	}
	h := newTestHandler(t, &stubCommands{}, reader, &stubAuditor{})

	rec := httptest.NewRecorder()
	h.ListOperations(rec, httptest.NewRequest(http.MethodGet, "/projections/operations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, operationsLimit, reader.limit)

	var body struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)

	item := body.Items[0]
	assert.Equal(t, "op-1", item["op_id"])
	assert.Equal(t, "APPROVED_WITH_COST", item["decision"])
	assert.Equal(t, 945.0, item["budget_left"])
	assert.Equal(t, 0.5, item["risk_idx"])
	assert.Equal(t, map[string]any{"temp_c": 20.0}, item["origin_weather"])
	assert.Nil(t, item["dest_weather"])
	assert.Equal(t, "2026-03-01T12:00:00Z", item["created_at"])
}

func TestGetTodayBudget(t *testing.T) {
	t.Run("missing row gives nulls", func(t *testing.T) {
		h := newTestHandler(t, &stubCommands{}, &stubReader{}, &stubAuditor{})

		rec := httptest.NewRecorder()
		h.GetTodayBudget(rec, httptest.NewRequest(http.MethodGet, "/projections/budget/today", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"day":null,"budget_total":null,"budget_left":null}`, rec.Body.String())
	})

	t.Run("existing row", func(t *testing.T) {
		reader := &stubReader{budget: &model.DailyBudget{
			Day:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			BudgetTotal: 1000,
			BudgetLeft:  944.7,
			UpdatedAt:   time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		}}
		h := newTestHandler(t, &stubCommands{}, reader, &stubAuditor{})

		rec := httptest.NewRecorder()
		h.GetTodayBudget(rec, httptest.NewRequest(http.MethodGet, "/projections/budget/today", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"day":"2026-03-01","budget_total":1000,"budget_left":944.7,"updated_at":"2026-03-01T09:30:00Z"}`,
			rec.Body.String())
	})
}

func TestAudit(t *testing.T) {
	total, left := 1000.0, 944.7
	auditor := &stubAuditor{report: model.AuditReport{
		OK:            false,
		Issues:        []model.AuditIssue{{ID: 2, Issue: "hash_mismatch", Expected: "aa", Got: "bb"}},
		Events:        3,
		DerivedBudget: model.DerivedBudget{Total: &total, Left: &left},
	}}
	h := newTestHandler(t, &stubCommands{}, &stubReader{}, auditor)

	rec := httptest.NewRecorder()
	h.Audit(rec, httptest.NewRequest(http.MethodGet, "/audit/recompute", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"ok": false,
		"issues": [{"id": 2, "issue": "hash_mismatch", "expected": "aa", "got": "bb"}],
		"events": 3,
		"derived_budget": {"total": 1000, "left": 944.7}
	}`, rec.Body.String())
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	reg, err := metrics.NewRegistry("api-test")
	require.NoError(t, err)
	requests, err := metrics.NewRequests(reg)
	require.NoError(t, err)

	reader := &stubReader{}
	h := newTestHandler(t, &stubCommands{}, reader, &stubAuditor{})
	r := h.SetupRouter(requests, reg.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	reader.pingErr = errors.New("no db")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fg_api_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), `fg_api_http_requests_total{method="GET",route="/health",status="500"} 1`)
}
