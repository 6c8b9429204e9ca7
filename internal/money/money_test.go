package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "integer", in: 55, want: 55},
		{name: "round down", in: 12.344, want: 12.34},
		{name: "round half up", in: 12.345, want: 12.35},
		{name: "float noise", in: 50.000000000001 + 5, want: 55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Round2(tt.in))
		})
	}
}

func TestSub(t *testing.T) {
	assert.Equal(t, 0.7, Sub(1000.1, 999.4))
	assert.Equal(t, 945.0, Sub(1000, 55))
	assert.Equal(t, 0.0, Sub(10, 10))
}

func TestIsPositive(t *testing.T) {
	assert.True(t, IsPositive(0.01))
	assert.False(t, IsPositive(0))
	assert.False(t, IsPositive(-1))
	assert.False(t, IsPositive(math.Inf(1)))
	assert.False(t, IsPositive(math.NaN()))
}
