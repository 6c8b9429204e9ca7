package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/freightguard/internal/model"
)

func f(v float64) *float64 { return &v }

func validInput() OperationInput {
	return OperationInput{
		Origin:       &PointInput{Lat: f(55.75), Lon: f(37.61)},
		Destination:  &PointInput{Lat: f(59.93), Lon: f(30.31)},
		CargoValue:   f(10000),
		SLAHours:     f(24),
		PenaltyValue: f(500),
	}
}

func TestValidateOperation_OK(t *testing.T) {
	req, err := ValidateOperation(validInput())
	require.NoError(t, err)

	assert.Equal(t, model.OperationRequest{
		Origin:       model.Point{Lat: 55.75, Lon: 37.61},
		Destination:  model.Point{Lat: 59.93, Lon: 30.31},
		CargoValue:   10000,
		SLAHours:     24,
		PenaltyValue: 500,
	}, req)
}

func TestValidateOperation_ZeroPenaltyAllowed(t *testing.T) {
	in := validInput()
	in.PenaltyValue = f(0)

	_, err := ValidateOperation(in)
	require.NoError(t, err)
}

func TestValidateOperation_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *OperationInput)
		want   error
	}{
		{
			name:   "missing origin",
			mutate: func(in *OperationInput) { in.Origin = nil },
			want:   ErrMissingRoute,
		},
		{
			name:   "missing destination",
			mutate: func(in *OperationInput) { in.Destination = nil },
			want:   ErrMissingRoute,
		},
		{
			name:   "missing lat",
			mutate: func(in *OperationInput) { in.Origin.Lat = nil },
			want:   ErrCoordinates,
		},
		{
			name:   "infinite lon",
			mutate: func(in *OperationInput) { in.Destination.Lon = f(math.Inf(1)) },
			want:   ErrCoordinates,
		},
		{
			name:   "zero cargo value",
			mutate: func(in *OperationInput) { in.CargoValue = f(0) },
			want:   ErrCargoValue,
		},
		{
			name:   "missing cargo value",
			mutate: func(in *OperationInput) { in.CargoValue = nil },
			want:   ErrCargoValue,
		},
		{
			name:   "fractional sla",
			mutate: func(in *OperationInput) { in.SLAHours = f(1.5) },
			want:   ErrSLAHours,
		},
		{
			name:   "negative sla",
			mutate: func(in *OperationInput) { in.SLAHours = f(-3) },
			want:   ErrSLAHours,
		},
		{
			name:   "negative penalty",
			mutate: func(in *OperationInput) { in.PenaltyValue = f(-0.01) },
			want:   ErrPenaltyValue,
		},
		{
			name:   "first failing check wins",
			mutate: func(in *OperationInput) { in.CargoValue = f(-1); in.PenaltyValue = f(-1) },
			want:   ErrCargoValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := ValidateOperation(in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
