// Package dataset provides the immutable input sequence a histogram is
// computed over.
package dataset

import (
	"github.com/histobench/internal/histogram"
	apperrors "github.com/histobench/pkg/errors"
)

// MaxSize is the largest number of elements a dataset may hold (4 GiB of int32).
const MaxSize = 1 << 30

// Dataset is an ordered, read-only sequence of values in [0, Range()).
type Dataset struct {
	values []int32
	rng    int
}

// FromSlice builds a dataset over a copy of values and checks that every
// value lies in [0, rng).
func FromSlice(values []int32, rng int) (*Dataset, error) {
	if err := checkShape(len(values), rng); err != nil {
		return nil, err
	}
	for i, v := range values {
		if v < 0 || int(v) >= rng {
			return nil, apperrors.InvalidConfig("value %d at index %d outside [0, %d)", v, i, rng)
		}
	}
	cp := make([]int32, len(values))
	copy(cp, values)
	return &Dataset{values: cp, rng: rng}, nil
}

// Wrap builds a dataset over values without copying or checking them.
// The caller gives up ownership of values.
func Wrap(values []int32, rng int) *Dataset {
	return &Dataset{values: values, rng: rng}
}

// Constant builds a dataset of n copies of v.
func Constant(n int, v int32, rng int) (*Dataset, error) {
	if err := checkShape(n, rng); err != nil {
		return nil, err
	}
	if v < 0 || int(v) >= rng {
		return nil, apperrors.InvalidConfig("value %d outside [0, %d)", v, rng)
	}
	values := make([]int32, n)
	if v != 0 {
		for i := range values {
			values[i] = v
		}
	}
	return &Dataset{values: values, rng: rng}, nil
}

// Len returns the number of elements.
func (d *Dataset) Len() int {
	return len(d.values)
}

// Range returns the exclusive upper bound of the values.
func (d *Dataset) Range() int {
	return d.rng
}

// At returns element i.
func (d *Dataset) At(i int) int32 {
	return d.values[i]
}

// Values returns the backing slice. It must not be modified.
func (d *Dataset) Values() []int32 {
	return d.values
}

// Bytes returns the memory held by the values.
func (d *Dataset) Bytes() int64 {
	return int64(len(d.values)) * 4
}

func checkShape(n, rng int) error {
	if n < 0 || n > MaxSize {
		return apperrors.Newf(apperrors.CodeAllocation, "dataset size %d outside [0, %d]", n, MaxSize)
	}
	return histogram.CheckRange(rng)
}
