package tensor

import (
	"fmt"
)

// MatMul computes the matrix product of two rank-2 Float32 tensors.
func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	if t1.DType != Float32 || t2.DType != Float32 {
		return nil, fmt.Errorf("MatMul requires Float32 tensors, got %s and %s", t1.DType, t2.DType)
	}
	if len(t1.Shape) != 2 || len(t2.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires rank-2 tensors, got shapes %v and %v", t1.Shape, t2.Shape)
	}
	if t1.Shape[1] != t2.Shape[0] {
		return nil, fmt.Errorf("MatMul inner dimension mismatch: %v vs %v", t1.Shape, t2.Shape)
	}

	m, k, n := t1.Shape[0], t1.Shape[1], t2.Shape[1]
	result, err := Zeros([]int{m, n}, Float32)
	if err != nil {
		return nil, err
	}

	a := t1.Data.([]float32)
	b := t2.Data.([]float32)
	out := result.Data.([]float32)

	for i := 0; i < m; i++ {
		for p := 0; p < k; p++ {
			av := a[i*k+p]
			if av == 0 {
				continue
			}
			row := b[p*n : (p+1)*n]
			outRow := out[i*n : (i+1)*n]
			for j := range row {
				outRow[j] += av * row[j]
			}
		}
	}

	return result, nil
}

// Transpose swaps the two dimensions of a rank-2 tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Transpose requires a rank-2 tensor, got shape %v", t.Shape)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	result, err := Zeros([]int{cols, rows}, t.DType)
	if err != nil {
		return nil, err
	}

	switch t.DType {
	case Float32:
		in := t.Data.([]float32)
		out := result.Data.([]float32)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				out[j*rows+i] = in[i*cols+j]
			}
		}
	case Int32:
		in := t.Data.([]int32)
		out := result.Data.([]int32)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				out[j*rows+i] = in[i*cols+j]
			}
		}
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", t.DType)
	}

	return result, nil
}

// Reshape returns a view-copy of the tensor with a new shape holding the
// same number of elements.
func Reshape(t *Tensor, newShape []int) (*Tensor, error) {
	if err := validateShape(newShape); err != nil {
		return nil, err
	}
	if calculateNumElements(newShape) != t.NumElems {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) to %v", t.Shape, t.NumElems, newShape)
	}

	shape := make([]int, len(newShape))
	copy(shape, newShape)

	return &Tensor{
		Shape:    shape,
		Strides:  calculateStrides(shape),
		DType:    t.DType,
		Data:     t.Data,
		NumElems: t.NumElems,
	}, nil
}

// Flatten collapses all trailing dimensions, keeping the leading (batch)
// dimension intact.
func Flatten(t *Tensor) (*Tensor, error) {
	if len(t.Shape) < 2 {
		return Reshape(t, []int{1, t.NumElems})
	}
	return Reshape(t, []int{t.Shape[0], t.NumElems / t.Shape[0]})
}
