package order

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestBeside_NoNeighbourUsesStep(t *testing.T) {
	var a Allocator

	got, err := a.Beside(2, Before, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.5, got)

	got, err = a.Beside(2, After, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)
}

func TestBeside_CustomStep(t *testing.T) {
	a := Allocator{Step: 10}
	got, err := a.Beside(5, After, nil)
	require.NoError(t, err)
	assert.Equal(t, 15.0, got)
}

func TestBeside_NeighbourBisects(t *testing.T) {
	var a Allocator

	// A fixed +0.5 would land after the 1.2 sibling; bisecting keeps it between.
	got, err := a.Beside(1, After, ptr(1.2))
	require.NoError(t, err)
	assert.Greater(t, got, 1.0)
	assert.Less(t, got, 1.2)

	got, err = a.Beside(3, Before, ptr(2))
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)
}

func TestBeside_PrecisionExhausted(t *testing.T) {
	var a Allocator
	x := 1.0
	_, err := a.Beside(x, After, ptr(math.Nextafter(x, 2)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOrderExhausted)
}

func TestBeside_RepeatedInsertShrinksGap(t *testing.T) {
	var a Allocator
	lo, hi := 1.0, 2.0
	var err error
	steps := 0
	for ; steps < 200; steps++ {
		var mid float64
		mid, err = a.Beside(lo, After, &hi)
		if err != nil {
			break
		}
		hi = mid
	}
	require.ErrorIs(t, err, ErrOrderExhausted)
	assert.Greater(t, steps, 40, "float64 should survive a few dozen halvings")
}

func TestChild(t *testing.T) {
	var a Allocator
	assert.Equal(t, 1.5, a.Child(1, nil))
	assert.Equal(t, 7.5, a.Child(1, ptr(7)))
}

func TestAppend(t *testing.T) {
	var a Allocator
	assert.Equal(t, 0.0, a.Append(nil))
	assert.Equal(t, 4.5, a.Append([]float64{1, 4, 2}))
}

func TestSideString(t *testing.T) {
	assert.Equal(t, "before", Before.String())
	assert.Equal(t, "after", After.String())
}

func TestBeside_EqualNeighbourUsesStep(t *testing.T) {
	var a Allocator

	got, err := a.Beside(1, Before, ptr(1))
	require.NoError(t, err)
	assert.Equal(t, 0.5, got)

	got, err = a.Beside(1, After, ptr(1))
	require.NoError(t, err)
	assert.Equal(t, 1.5, got)
}
