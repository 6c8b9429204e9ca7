// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"math"

	"github.com/mmeshcher/freightguard/internal/model"
)

// Коды ошибок валидации, возвращаемые клиенту как есть.
var (
	ErrMissingRoute = errors.New("missing_origin_or_destination")
	ErrCoordinates  = errors.New("invalid_coordinates")
	ErrCargoValue   = errors.New("invalid_cargoValue")
	ErrSLAHours     = errors.New("invalid_slaHours")
	ErrPenaltyValue = errors.New("invalid_penaltyValue")
)

// PointInput это точка маршрута в том виде, в каком её прислал клиент.
type PointInput struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// OperationInput это тело запроса на создание операции.
type OperationInput struct {
	Origin       *PointInput `json:"origin"`
	Destination  *PointInput `json:"destination"`
	CargoValue   *float64    `json:"cargoValue"`
	SLAHours     *float64    `json:"slaHours"`
	PenaltyValue *float64    `json:"penaltyValue"`
}

// ValidateOperation проверяет запрос и возвращает полезную нагрузку команды без opId.
// Проверки выполняются по порядку, возвращается первая найденная ошибка.
func ValidateOperation(in OperationInput) (model.OperationRequest, error) {
	if in.Origin == nil || in.Destination == nil {
		return model.OperationRequest{}, ErrMissingRoute
	}

	coords := []*float64{in.Origin.Lat, in.Origin.Lon, in.Destination.Lat, in.Destination.Lon}
	for _, c := range coords {
		if !isFinite(c) {
			return model.OperationRequest{}, ErrCoordinates
		}
	}

	if !isFinite(in.CargoValue) || *in.CargoValue <= 0 {
		return model.OperationRequest{}, ErrCargoValue
	}

	if !isFinite(in.SLAHours) || *in.SLAHours <= 0 || *in.SLAHours != math.Trunc(*in.SLAHours) ||
		*in.SLAHours > math.MaxInt32 {
		return model.OperationRequest{}, ErrSLAHours
	}

	if !isFinite(in.PenaltyValue) || *in.PenaltyValue < 0 {
		return model.OperationRequest{}, ErrPenaltyValue
	}

	return model.OperationRequest{
		Origin:       model.Point{Lat: *in.Origin.Lat, Lon: *in.Origin.Lon},
		Destination:  model.Point{Lat: *in.Destination.Lat, Lon: *in.Destination.Lon},
		CargoValue:   *in.CargoValue,
		SLAHours:     int(*in.SLAHours),
		PenaltyValue: *in.PenaltyValue,
	}, nil
}

func isFinite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
