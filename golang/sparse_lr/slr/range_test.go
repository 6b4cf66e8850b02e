package slr

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	var collected []int
	r := NewRange(1, 8, 3)
	assert.Equal(t, 3, r.Len())
	for r.HasNext() {
		collected = append(collected, r.GetNext())
	}
	assert.Equal(t, []int{1, 4, 7}, collected)

	collected = nil
	r = NewRange(5, 0, -2)
	assert.Equal(t, 3, r.Len())
	for r.HasNext() {
		collected = append(collected, r.GetNext())
	}
	assert.Equal(t, []int{5, 3, 1}, collected)

	assert.Equal(t, 0, NewRange(3, 3, 1).Len())
}

func bounds(ranges []DatasetRange[int]) [][2]int {
	result := make([][2]int, len(ranges))
	for k, r := range ranges {
		result[k] = [2]int{r.Begin, r.End}
	}
	return result
}

func TestSplitIntoRanges(t *testing.T) {
	ranges, err := SplitIntoRanges(make([]int, 8), 3)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 8}}, bounds(ranges))

	ranges, err = SplitIntoRanges(make([]int, 4), 4)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}}, bounds(ranges))
}

func TestSplitIntoRangesIsExhaustiveAndDisjoint(t *testing.T) {
	for length := 1; length <= 40; length++ {
		dataset := make([]int, length)
		for i := range dataset {
			dataset[i] = i
		}
		for numRanges := 1; numRanges <= length; numRanges++ {
			ranges, err := SplitIntoRanges(dataset, numRanges)
			require.NoError(t, err)
			require.Len(t, ranges, numRanges)

			next := 0
			total := 0
			for _, r := range ranges {
				require.Equal(t, next, r.Begin, "length %d ranges %d", length, numRanges)
				require.Positive(t, r.Len())
				for it := r.Indices(); it.HasNext(); {
					require.Equal(t, next, r.Items()[it.GetNext()-r.Begin])
					next++
				}
				total += r.Len()
			}
			require.Equal(t, length, total)
			require.Equal(t, length, next)
		}
	}
}

func TestSplitIntoRangesErrors(t *testing.T) {
	_, err := SplitIntoRanges(make([]int, 3), 0)
	assert.True(t, errors.Is(err, ErrInvalidParameter))
	_, err = SplitIntoRanges(make([]int, 3), 4)
	assert.True(t, errors.Is(err, ErrInvalidParameter))
	assert.Equal(t, 3, shardCount(8, 3))
	assert.Equal(t, 1, shardCount(0, 3))
}
