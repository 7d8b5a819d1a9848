package tensor

import (
	"fmt"
)

func (t *Tensor) Clone() (*Tensor, error) {
	result, err := Zeros(t.Shape, t.DType)
	if err != nil {
		return nil, err
	}

	switch t.DType {
	case Float32:
		copy(result.Data.([]float32), t.Data.([]float32))
	case Int32:
		copy(result.Data.([]int32), t.Data.([]int32))
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", t.DType)
	}

	return result, nil
}

func (t *Tensor) GetFloat32Data() ([]float32, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("tensor is %s, not Float32", t.DType)
	}
	return t.Data.([]float32), nil
}

func (t *Tensor) GetInt32Data() ([]int32, error) {
	if t.DType != Int32 {
		return nil, fmt.Errorf("tensor is %s, not Int32", t.DType)
	}
	return t.Data.([]int32), nil
}

func (t *Tensor) At(indices ...int) (float64, error) {
	if len(indices) != len(t.Shape) {
		return 0, fmt.Errorf("expected %d indices, got %d", len(t.Shape), len(indices))
	}

	idx := 0
	for i, index := range indices {
		if index < 0 || index >= t.Shape[i] {
			return 0, fmt.Errorf("index %d out of range [0, %d) for dimension %d", index, t.Shape[i], i)
		}
		idx += index * t.Strides[i]
	}

	switch t.DType {
	case Float32:
		return float64(t.Data.([]float32)[idx]), nil
	case Int32:
		return float64(t.Data.([]int32)[idx]), nil
	default:
		return 0, fmt.Errorf("unsupported dtype: %s", t.DType)
	}
}

func (t *Tensor) SetAt(value float64, indices ...int) error {
	if len(indices) != len(t.Shape) {
		return fmt.Errorf("expected %d indices, got %d", len(t.Shape), len(indices))
	}

	idx := 0
	for i, index := range indices {
		if index < 0 || index >= t.Shape[i] {
			return fmt.Errorf("index %d out of range [0, %d) for dimension %d", index, t.Shape[i], i)
		}
		idx += index * t.Strides[i]
	}

	switch t.DType {
	case Float32:
		t.Data.([]float32)[idx] = float32(value)
	case Int32:
		t.Data.([]int32)[idx] = int32(value)
	default:
		return fmt.Errorf("unsupported dtype: %s", t.DType)
	}
	return nil
}

func (t *Tensor) Size() []int {
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)
	return shape
}

func (t *Tensor) Numel() int {
	return t.NumElems
}

func (t *Tensor) Dim() int {
	return len(t.Shape)
}

// Zero clears the tensor contents in place.
func (t *Tensor) Zero() {
	switch t.DType {
	case Float32:
		data := t.Data.([]float32)
		for i := range data {
			data[i] = 0
		}
	case Int32:
		data := t.Data.([]int32)
		for i := range data {
			data[i] = 0
		}
	}
}

func (t *Tensor) Equal(other *Tensor) (bool, error) {
	if t.DType != other.DType {
		return false, nil
	}
	if !shapesEqual(t.Shape, other.Shape) {
		return false, nil
	}

	switch t.DType {
	case Float32:
		a := t.Data.([]float32)
		b := other.Data.([]float32)
		for i := range a {
			if a[i] != b[i] {
				return false, nil
			}
		}
	case Int32:
		a := t.Data.([]int32)
		b := other.Data.([]int32)
		for i := range a {
			if a[i] != b[i] {
				return false, nil
			}
		}
	default:
		return false, fmt.Errorf("unsupported dtype: %s", t.DType)
	}

	return true, nil
}
