// Package risk вычисляет индекс погодного риска, решение по операции и его стоимость.
// Все функции чистые и не выполняют ввода-вывода.
package risk

import (
	"math"

	"github.com/mmeshcher/freightguard/internal/model"
	"github.com/mmeshcher/freightguard/internal/money"
	"github.com/mmeshcher/freightguard/internal/weather"
)

const (
	windScale  = 20.0
	gustScale  = 25.0
	rainScale  = 10.0
	frostLimit = 0.0
	heatLimit  = 35.0
	tempBonus  = 0.3
	components = 3.0

	approveBelow = 0.20
	blockFrom    = 0.70

	cargoRate   = 0.01
	penaltyRate = 0.02
)

// Features это признаки погоды, из которых складывается индекс.
type Features struct {
	Temp   float64 `json:"temp"`
	Wind   float64 `json:"wind"`
	Gust   float64 `json:"gust"`
	Rain1h float64 `json:"rain1h"`
}

// Assessment это индекс риска одной точки маршрута вместе с признаками.
type Assessment struct {
	Idx      float64  `json:"idx"`
	Features Features `json:"features"`
}

// FromObservation оценивает риск по наблюдению. Отсутствующие поля считаются нулями.
func FromObservation(obs *weather.Observation) Assessment {
	f := Features{}
	if obs != nil {
		f.Temp = value(obs.Main.Temp)
		f.Wind = value(obs.Wind.Speed)
		f.Gust = value(obs.Wind.Gust)
		if obs.Rain != nil {
			f.Rain1h = value(obs.Rain.OneHour)
		}
	}

	score := math.Min(1, f.Wind/windScale) + math.Min(1, f.Gust/gustScale) + math.Min(1, f.Rain1h/rainScale)
	if f.Temp <= frostLimit {
		score += tempBonus
	}
	if f.Temp >= heatLimit {
		score += tempBonus
	}

	return Assessment{
		Idx:      clamp(score / components),
		Features: f,
	}
}

// Combine возвращает индекс двухплечевой операции: худшее из плеч.
func Combine(origin, destination Assessment) float64 {
	return math.Max(origin.Idx, destination.Idx)
}

// Decide сопоставляет индексу риска решение.
func Decide(idx float64) model.Decision {
	switch {
	case idx < approveBelow:
		return model.DecisionApproved
	case idx < blockFrom:
		return model.DecisionApprovedWithCost
	default:
		return model.DecisionBlocked
	}
}

// CostFor возвращает стоимость решения. Ненулевая только для APPROVED_WITH_COST.
func CostFor(decision model.Decision, cargoValue, penaltyValue, idx float64) float64 {
	if decision != model.DecisionApprovedWithCost {
		return 0
	}
	cost := money.Round2(cargoValue*idx*cargoRate + penaltyValue*idx*penaltyRate)
	return math.Max(0, cost)
}

func value(p *float64) float64 {
	if p == nil || math.IsNaN(*p) {
		return 0
	}
	return *p
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
