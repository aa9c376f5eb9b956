// Package ndarray provides a minimal N-dimensional float64 array container
// used as the payload type for template spectrum archives.
package ndarray

import "fmt"

// Array is an N-dimensional array stored in row-major order, so the last
// axis varies fastest in the flat backing slice.
type Array struct {
	shape []int
	data  []float64
}

// New returns a zero-filled array with the given shape. Every axis length
// must be positive.
func New(shape ...int) *Array {
	size := 1
	for _, n := range shape {
		if n <= 0 {
			panic(fmt.Sprintf("ndarray: axis length %d is not positive", n))
		}
		size *= n
	}
	a := &Array{
		shape: make([]int, len(shape)),
		data:  make([]float64, size),
	}
	copy(a.shape, shape)
	return a
}

// FromSlice wraps an existing row-major flat slice. The slice is used
// directly, not copied; it is an error if its length disagrees with the
// product of the axis lengths.
func FromSlice(shape []int, data []float64) (*Array, error) {
	size := 1
	for _, n := range shape {
		if n <= 0 {
			return nil, fmt.Errorf("ndarray: axis length %d is not positive", n)
		}
		size *= n
	}
	if len(data) != size {
		return nil, fmt.Errorf("ndarray: have %d values, shape %v needs %d", len(data), shape, size)
	}
	a := &Array{shape: make([]int, len(shape)), data: data}
	copy(a.shape, shape)
	return a, nil
}

// Rank returns the number of axes.
func (a *Array) Rank() int { return len(a.shape) }

// Shape returns a copy of the axis lengths.
func (a *Array) Shape() []int {
	s := make([]int, len(a.shape))
	copy(s, a.shape)
	return s
}

// Dim returns the length of the given axis.
func (a *Array) Dim(axis int) int { return a.shape[axis] }

// Len returns the total number of elements.
func (a *Array) Len() int { return len(a.data) }

// Data returns the flat row-major backing slice, not a copy.
func (a *Array) Data() []float64 { return a.data }

func (a *Array) index(idx ...int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: %d indices for rank-%d array", len(idx), len(a.shape)))
	}
	k := 0
	for i, j := range idx {
		if j < 0 || j >= a.shape[i] {
			panic(fmt.Sprintf("ndarray: index %d out of range on axis %d (length %d)", j, i, a.shape[i]))
		}
		k = k*a.shape[i] + j
	}
	return k
}

// At returns the element at the given multi-index.
func (a *Array) At(idx ...int) float64 { return a.data[a.index(idx...)] }

// Set assigns the element at the given multi-index.
func (a *Array) Set(v float64, idx ...int) { a.data[a.index(idx...)] = v }

// Copy returns a deep copy sharing no storage with the receiver.
func (a *Array) Copy() *Array {
	b := New(a.shape...)
	copy(b.data, a.data)
	return b
}
