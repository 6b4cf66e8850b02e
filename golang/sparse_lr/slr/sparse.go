package slr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

//Entry is one nonzero element of a SparseVector.
type Entry struct {
	Index int
	Value float64
}

//SparseVector maps feature indices to nonzero values. Entries are kept sorted by index
//and indices are unique. A value set to exactly zero is removed.
type SparseVector struct {
	entries []Entry
}

//NewSparseVector builds a vector from parallel index and value slices.
func NewSparseVector(indices []int, values []float64) (SparseVector, error) {
	var v SparseVector
	if len(indices) != len(values) {
		return v, errors.Wrapf(ErrShapeMismatch, "%d indices and %d values", len(indices), len(values))
	}
	for i, index := range indices {
		if index < 0 {
			return v, errors.Wrapf(ErrShapeMismatch, "negative feature index %d", index)
		}
		v.Set(index, values[i])
	}
	return v, nil
}

//Len returns the number of stored entries.
func (v SparseVector) Len() int {
	return len(v.entries)
}

//IsEmpty reports whether the vector has no nonzero entries.
func (v SparseVector) IsEmpty() bool {
	return len(v.entries) == 0
}

//Entries returns the entries in ascending index order. The slice must not be modified.
func (v SparseVector) Entries() []Entry {
	return v.entries
}

func (v SparseVector) search(index int) int {
	return sort.Search(len(v.entries), func(k int) bool { return v.entries[k].Index >= index })
}

//Get returns the value stored at index or zero.
func (v SparseVector) Get(index int) float64 {
	k := v.search(index)
	if k < len(v.entries) && v.entries[k].Index == index {
		return v.entries[k].Value
	}
	return 0
}

//Set inserts or overwrites the value at index. It returns true when a new entry was added.
//Setting zero deletes the entry.
func (v *SparseVector) Set(index int, value float64) bool {
	if value == 0 {
		v.Remove(index)
		return false
	}
	k := v.search(index)
	if k < len(v.entries) && v.entries[k].Index == index {
		v.entries[k].Value = value
		return false
	}
	v.entries = append(v.entries, Entry{})
	copy(v.entries[k+1:], v.entries[k:])
	v.entries[k] = Entry{Index: index, Value: value}
	return true
}

//Append adds an entry whose index is greater than every stored index. Zero values are ignored.
//Out of order indices fall back to Set.
func (v *SparseVector) Append(index int, value float64) {
	if value == 0 {
		return
	}
	if n := len(v.entries); n > 0 && v.entries[n-1].Index >= index {
		v.Set(index, value)
		return
	}
	v.entries = append(v.entries, Entry{Index: index, Value: value})
}

//Remove deletes the entry at index if present.
func (v *SparseVector) Remove(index int) {
	k := v.search(index)
	if k < len(v.entries) && v.entries[k].Index == index {
		v.entries = append(v.entries[:k], v.entries[k+1:]...)
	}
}

//MaxIndex returns the largest stored index or -1 for an empty vector.
func (v SparseVector) MaxIndex() int {
	if len(v.entries) == 0 {
		return -1
	}
	return v.entries[len(v.entries)-1].Index
}

func (v SparseVector) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for k, e := range v.entries {
		if k > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%d:%g", e.Index, e.Value))
	}
	sb.WriteString("}")
	return sb.String()
}
