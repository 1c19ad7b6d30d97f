package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBFTQuorum(t *testing.T) {
	testCases := []struct {
		n      int
		quorum int
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 3},
		{5, 4},
		{6, 5},
		{7, 5},
		{10, 7},
		{100, 67},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.quorum, BFTQuorum(tc.n), "n=%d", tc.n)
		// smallest integer strictly greater than 2n/3
		assert.Greater(t, 3*tc.quorum, 2*tc.n, "n=%d", tc.n)
		assert.LessOrEqual(t, 3*(tc.quorum-1), 2*tc.n, "n=%d", tc.n)
	}
}

func TestMaxFaulty(t *testing.T) {
	assert.Equal(t, 0, MaxFaulty(1))
	assert.Equal(t, 1, MaxFaulty(4))
	assert.Equal(t, 2, MaxFaulty(7))
	// quorum of honest nodes survives f failures: n-f >= quorum
	for n := 1; n < 50; n++ {
		assert.GreaterOrEqual(t, n-MaxFaulty(n), BFTQuorum(n), "n=%d", n)
	}
}
