package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/freightguard/internal/model"
)

func insertProjection(ctx context.Context, q querier, p model.OperationProjection) error {
	_, err := q.Exec(ctx,
		`INSERT INTO operations_projection
			(op_id, origin_lat, origin_lon, dest_lat, dest_lon, cargo_value, sla_hours, penalty_value,
			 decision, cost, budget_left, event_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (op_id) DO NOTHING`,
		p.OpID,
		p.Origin.Lat, p.Origin.Lon,
		p.Destination.Lat, p.Destination.Lon,
		p.CargoValue, p.SLAHours, p.PenaltyValue,
		string(p.Decision), p.Cost, p.BudgetLeft, p.EventHash,
	)
	if err != nil {
		return fmt.Errorf("insert projection: %w", err)
	}
	return nil
}

// ListOperations возвращает последние проекции операций вместе с погодой из событий журнала.
func (r *PostgresRepository) ListOperations(ctx context.Context, limit int) ([]model.OperationView, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT
			op.op_id, op.origin_lat, op.origin_lon, op.dest_lat, op.dest_lon,
			op.cargo_value, op.sla_hours, op.penalty_value, op.decision,
			op.cost::float8, op.budget_left::float8, op.event_hash, op.created_at,
			COALESCE(le.payload->'origin_weather', le.payload->'weather'->'origin') AS origin_weather,
			COALESCE(le.payload->'dest_weather', le.payload->'weather'->'destination') AS dest_weather,
			(le.payload->>'riskIdx')::float8 AS risk_idx
		 FROM operations_projection op
		 JOIN ledger_events le ON le.hash = op.event_hash
		 ORDER BY op.created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select operations: %w", err)
	}
	defer rows.Close()

	var res []model.OperationView
	for rows.Next() {
		var (
			v             model.OperationView
			decision      string
			originWeather []byte
			destWeather   []byte
		)
		if err := rows.Scan(
			&v.OpID, &v.Origin.Lat, &v.Origin.Lon, &v.Destination.Lat, &v.Destination.Lon,
			&v.CargoValue, &v.SLAHours, &v.PenaltyValue, &decision,
			&v.Cost, &v.BudgetLeft, &v.EventHash, &v.CreatedAt,
			&originWeather, &destWeather, &v.RiskIdx,
		); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}

		v.Decision = model.Decision(decision)
		v.OriginWeather = originWeather
		v.DestWeather = destWeather
		res = append(res, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
