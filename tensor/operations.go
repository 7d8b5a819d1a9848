package tensor

import (
	"fmt"
	"math"
)

func checkCompatibility(t1, t2 *Tensor) error {
	if t1.DType != t2.DType {
		return fmt.Errorf("dtype mismatch: %s vs %s", t1.DType, t2.DType)
	}
	if !shapesEqual(t1.Shape, t2.Shape) {
		return fmt.Errorf("shape mismatch: %v vs %v", t1.Shape, t2.Shape)
	}
	return nil
}

func elementwise(t1, t2 *Tensor, f32 func(a, b float32) float32, i32 func(a, b int32) int32) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}

	result, err := Zeros(t1.Shape, t1.DType)
	if err != nil {
		return nil, err
	}

	switch t1.DType {
	case Float32:
		a := t1.Data.([]float32)
		b := t2.Data.([]float32)
		out := result.Data.([]float32)
		for i := range out {
			out[i] = f32(a[i], b[i])
		}
	case Int32:
		a := t1.Data.([]int32)
		b := t2.Data.([]int32)
		out := result.Data.([]int32)
		for i := range out {
			out[i] = i32(a[i], b[i])
		}
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", t1.DType)
	}

	return result, nil
}

func Add(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2,
		func(a, b float32) float32 { return a + b },
		func(a, b int32) int32 { return a + b })
}

func Sub(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2,
		func(a, b float32) float32 { return a - b },
		func(a, b int32) int32 { return a - b })
}

func Mul(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2,
		func(a, b float32) float32 { return a * b },
		func(a, b int32) int32 { return a * b })
}

func Div(t1, t2 *Tensor) (*Tensor, error) {
	if t1.DType == Int32 {
		return nil, fmt.Errorf("division not supported for Int32 tensors")
	}
	return elementwise(t1, t2,
		func(a, b float32) float32 { return a / b },
		nil)
}

// Scale multiplies every element of a Float32 tensor by a scalar.
func Scale(t *Tensor, s float64) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("Scale requires a Float32 tensor, got %s", t.DType)
	}

	result, err := Zeros(t.Shape, Float32)
	if err != nil {
		return nil, err
	}

	in := t.Data.([]float32)
	out := result.Data.([]float32)
	f := float32(s)
	for i := range out {
		out[i] = in[i] * f
	}
	return result, nil
}

func ReLU(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("ReLU requires a Float32 tensor, got %s", t.DType)
	}

	result, err := Zeros(t.Shape, Float32)
	if err != nil {
		return nil, err
	}

	in := t.Data.([]float32)
	out := result.Data.([]float32)
	for i := range out {
		if in[i] > 0 {
			out[i] = in[i]
		}
	}
	return result, nil
}

func Exp(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("Exp requires a Float32 tensor, got %s", t.DType)
	}

	result, err := Zeros(t.Shape, Float32)
	if err != nil {
		return nil, err
	}

	in := t.Data.([]float32)
	out := result.Data.([]float32)
	for i := range out {
		out[i] = float32(math.Exp(float64(in[i])))
	}
	return result, nil
}

func Log(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("Log requires a Float32 tensor, got %s", t.DType)
	}

	result, err := Zeros(t.Shape, Float32)
	if err != nil {
		return nil, err
	}

	in := t.Data.([]float32)
	out := result.Data.([]float32)
	for i := range out {
		out[i] = float32(math.Log(float64(in[i])))
	}
	return result, nil
}

func Sqrt(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("Sqrt requires a Float32 tensor, got %s", t.DType)
	}

	result, err := Zeros(t.Shape, Float32)
	if err != nil {
		return nil, err
	}

	in := t.Data.([]float32)
	out := result.Data.([]float32)
	for i := range out {
		out[i] = float32(math.Sqrt(float64(in[i])))
	}
	return result, nil
}
