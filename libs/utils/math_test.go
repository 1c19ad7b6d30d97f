package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMathHelpers(t *testing.T) {
	data := []float64{4, 1, 3, 2}

	assert.Equal(t, 4.0, Max(data...))
	assert.Equal(t, 1.0, Min(data...))
	assert.Equal(t, 2.5, Median(data...))
	assert.Equal(t, 2.5, Avg(data...))

	assert.Equal(t, 3.0, Median(1, 3, 4))

	assert.Equal(t, -1.0, Max())
	assert.Equal(t, -1.0, Min())
	assert.Equal(t, -1.0, Median())
	assert.Equal(t, -1.0, Avg())
}
