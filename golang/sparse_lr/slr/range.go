package slr

import "github.com/cockroachdb/errors"

//IntIterable is the interface for iteration over a collection of integers.
type IntIterable interface {
	HasNext() bool
	GetNext() int
	Len() int
}

//Range is an iterator over the half interval [begin, end) with the step step.
type Range struct {
	begin, end, step, pos int
}

//NewRange initializes a new iterator over a half interval.
func NewRange(start, end, step int) *Range {
	return &Range{start, end, step, start}
}

//GetNext returns the next element from the iterator and moves iterator to the next position.
func (r *Range) GetNext() int {
	val := r.pos
	r.pos += r.step
	return val
}

//HasNext checks whether there are more values in the iterator.
func (r *Range) HasNext() bool {
	if r.step > 0 {
		return r.pos < r.end
	}
	return r.pos > r.end
}

//Len returns the total number of values the iterator visits.
func (r *Range) Len() int {
	if r.step > 0 {
		if r.end <= r.begin {
			return 0
		}
		return (r.end - r.begin + r.step - 1) / r.step
	}
	if r.begin <= r.end {
		return 0
	}
	return (r.begin - r.end - r.step - 1) / -r.step
}

//DatasetRange is a view of the contiguous part [Begin, End) of a shared dataset.
//It never copies the backing data.
type DatasetRange[T any] struct {
	Begin, End int
	dataset    []T
}

//Dataset returns the whole backing dataset.
func (r DatasetRange[T]) Dataset() []T {
	return r.dataset
}

//Items returns the elements covered by the range.
func (r DatasetRange[T]) Items() []T {
	return r.dataset[r.Begin:r.End]
}

//Len returns the number of elements covered by the range.
func (r DatasetRange[T]) Len() int {
	return r.End - r.Begin
}

//Indices returns an iterator over the dataset indices covered by the range.
func (r DatasetRange[T]) Indices() *Range {
	return NewRange(r.Begin, r.End, 1)
}

//SplitIntoRanges partitions dataset into exactly numRanges contiguous disjoint ranges of
//length len/numRanges. The last range absorbs the remainder.
func SplitIntoRanges[T any](dataset []T, numRanges int) ([]DatasetRange[T], error) {
	if numRanges < 1 {
		return nil, errors.Wrapf(ErrInvalidParameter, "number of ranges must be positive, got %d", numRanges)
	}
	if numRanges > len(dataset) {
		return nil, errors.Wrapf(ErrInvalidParameter, "%d ranges requested for %d elements", numRanges, len(dataset))
	}
	step := len(dataset) / numRanges
	ranges := make([]DatasetRange[T], numRanges)
	for k := range ranges {
		end := (k + 1) * step
		if k == numRanges-1 {
			end = len(dataset)
		}
		ranges[k] = DatasetRange[T]{Begin: k * step, End: end, dataset: dataset}
	}
	return ranges, nil
}

//shardCount clamps the requested thread count to the dataset size.
func shardCount(threadsNum, n int) int {
	if threadsNum > n {
		threadsNum = n
	}
	if threadsNum < 1 {
		threadsNum = 1
	}
	return threadsNum
}
