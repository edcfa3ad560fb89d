package model

import "fmt"

// Element types an NDArray can carry.
const (
	DTypeFloat64 = "float64"
	DTypeInt64   = "int64"
	DTypeUint8   = "uint8"
)

// NDArray is a dense numeric array with an explicit shape and element type.
// Exactly one of the data slices is populated, matching DType. Shape and
// element type survive serialization intact.
type NDArray struct {
	DType string    `msgpack:"dtype" json:"dtype"`
	Shape []int     `msgpack:"shape" json:"shape"`
	F64   []float64 `msgpack:"f64,omitempty" json:"f64,omitempty"`
	I64   []int64   `msgpack:"i64,omitempty" json:"i64,omitempty"`
	U8    []byte    `msgpack:"u8,omitempty" json:"u8,omitempty"`
}

// NewFloat64s builds a float64 NDArray. The product of shape must match
// len(data).
func NewFloat64s(shape []int, data []float64) (*NDArray, error) {
	a := &NDArray{DType: DTypeFloat64, Shape: shape, F64: data}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// NewInt64s builds an int64 NDArray.
func NewInt64s(shape []int, data []int64) (*NDArray, error) {
	a := &NDArray{DType: DTypeInt64, Shape: shape, I64: data}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// NewUint8s builds a uint8 NDArray.
func NewUint8s(shape []int, data []byte) (*NDArray, error) {
	a := &NDArray{DType: DTypeUint8, Shape: shape, U8: data}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Len returns the number of elements implied by the shape.
func (a *NDArray) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Validate checks that the shape is well formed and that the populated data
// slice matches DType and the shape's element count.
func (a *NDArray) Validate() error {
	for _, d := range a.Shape {
		if d < 0 {
			return fmt.Errorf("ndarray: negative dimension %d", d)
		}
	}
	want := a.Len()
	var got int
	switch a.DType {
	case DTypeFloat64:
		got = len(a.F64)
	case DTypeInt64:
		got = len(a.I64)
	case DTypeUint8:
		got = len(a.U8)
	default:
		return fmt.Errorf("ndarray: unknown dtype %q", a.DType)
	}
	if got != want {
		return fmt.Errorf("ndarray: shape %v implies %d elements, data has %d", a.Shape, want, got)
	}
	return nil
}

// Equal reports field-for-field equality with another array.
func (a *NDArray) Equal(b *NDArray) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.DType != b.DType || len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	switch a.DType {
	case DTypeFloat64:
		if len(a.F64) != len(b.F64) {
			return false
		}
		for i := range a.F64 {
			if a.F64[i] != b.F64[i] {
				return false
			}
		}
	case DTypeInt64:
		if len(a.I64) != len(b.I64) {
			return false
		}
		for i := range a.I64 {
			if a.I64[i] != b.I64[i] {
				return false
			}
		}
	case DTypeUint8:
		if len(a.U8) != len(b.U8) {
			return false
		}
		for i := range a.U8 {
			if a.U8[i] != b.U8[i] {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of the array.
func (a *NDArray) Clone() *NDArray {
	if a == nil {
		return nil
	}
	out := &NDArray{DType: a.DType, Shape: append([]int(nil), a.Shape...)}
	out.F64 = append([]float64(nil), a.F64...)
	out.I64 = append([]int64(nil), a.I64...)
	out.U8 = append([]byte(nil), a.U8...)
	return out
}
