// Package money содержит арифметику денежных величин с округлением до копеек.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

const places = 2

// Round2 округляет значение до двух знаков после запятой.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Sub вычитает b из a и округляет результат до двух знаков.
func Sub(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(places).InexactFloat64()
}

// IsPositive сообщает, является ли значение конечным положительным числом.
func IsPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
