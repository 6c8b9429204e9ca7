package worker

import (
	"github.com/mmeshcher/freightguard/internal/model"
	"github.com/mmeshcher/freightguard/internal/risk"
	"github.com/mmeshcher/freightguard/internal/weather"
)

// DecisionPayload это полезная нагрузка события OPERATION_DECIDED. Погода передаётся в двух
// формах: сводки origin_weather/dest_weather и оценки риска weather.origin/destination.
type DecisionPayload struct {
	OpID          string          `json:"opId"`
	Origin        model.Point     `json:"origin"`
	Destination   model.Point     `json:"destination"`
	CargoValue    float64         `json:"cargoValue"`
	SLAHours      int             `json:"slaHours"`
	PenaltyValue  float64         `json:"penaltyValue"`
	Decision      model.Decision  `json:"decision"`
	Cost          float64         `json:"cost"`
	RiskIdx       float64         `json:"riskIdx"`
	BudgetLeft    float64         `json:"budgetLeft"`
	Reason        *string         `json:"reason"`
	OriginWeather weather.Summary `json:"origin_weather"`
	DestWeather   weather.Summary `json:"dest_weather"`
	Weather       LegRisks        `json:"weather"`
}

// LegRisks это оценки риска по плечам маршрута.
type LegRisks struct {
	Origin      risk.Assessment `json:"origin"`
	Destination risk.Assessment `json:"destination"`
}
