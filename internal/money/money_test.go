package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 103.0, want: 103.0},
		{in: 2.675, want: 2.68},
		{in: 1.999999999, want: 2.0},
		{in: -3.14159, want: -3.14},
		{in: 0, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

func TestSum(t *testing.T) {
	assert.Equal(t, 0.3, Sum(0.1, 0.2))
	assert.Equal(t, 41.96, Sum(20, 21.83, 0.126))
	assert.Equal(t, 0.0, Sum())
}
