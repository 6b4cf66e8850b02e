package slr

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseVectorSetGetRemove(t *testing.T) {
	var v SparseVector
	assert.True(t, v.IsEmpty())
	assert.Equal(t, -1, v.MaxIndex())

	assert.True(t, v.Set(5, 1.5))
	assert.True(t, v.Set(2, -3))
	assert.True(t, v.Set(9, 4))
	assert.False(t, v.Set(5, 2.5))

	assert.Equal(t, 3, v.Len())
	assert.Equal(t, 2.5, v.Get(5))
	assert.Equal(t, -3.0, v.Get(2))
	assert.Equal(t, 0.0, v.Get(3))
	assert.Equal(t, 9, v.MaxIndex())
	assert.Equal(t, []Entry{{2, -3}, {5, 2.5}, {9, 4}}, v.Entries())

	assert.False(t, v.Set(2, 0))
	assert.Equal(t, []Entry{{5, 2.5}, {9, 4}}, v.Entries())

	v.Remove(7)
	v.Remove(9)
	assert.Equal(t, "{5:2.5}", v.String())
}

func TestSparseVectorAppend(t *testing.T) {
	var v SparseVector
	v.Append(1, 1)
	v.Append(4, 0)
	v.Append(3, 2)
	v.Append(2, 5)
	v.Append(3, 7)
	assert.Equal(t, []Entry{{1, 1}, {2, 5}, {3, 7}}, v.Entries())
}

func TestNewSparseVector(t *testing.T) {
	v, err := NewSparseVector([]int{4, 1, 3}, []float64{4, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{1, 1}, {4, 4}}, v.Entries())

	_, err = NewSparseVector([]int{1, 2}, []float64{1})
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = NewSparseVector([]int{-1}, []float64{1})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestObservationTotals(t *testing.T) {
	observations := threeObservations(t)
	assert.Equal(t, 30.0, TotalWeights(observations))
	assert.Equal(t, 10.0, TotalSuccesses(observations))
	assert.Equal(t, 10, NumFeaturesOf(observations))
	assert.Equal(t, 1, NewUnitObservation(SparseVector{}, 1).Trials)
}
