package engine

import (
	"fmt"
	"math/rand"

	"github.com/tsawler/bordernet/layers"
	"github.com/tsawler/bordernet/tensor"
)

type reluExec struct {
	name        string
	cachedInput *tensor.Tensor
}

func newReLUExec(spec *layers.LayerSpec) *reluExec {
	return &reluExec{name: spec.Name}
}

func (r *reluExec) Forward(input *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	output, err := tensor.ReLU(input)
	if err != nil {
		return nil, err
	}
	if training {
		r.cachedInput = input
	}
	return output, nil
}

func (r *reluExec) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if r.cachedInput == nil {
		return nil, fmt.Errorf("relu backward called before training forward")
	}

	gradInput, err := tensor.Zeros(r.cachedInput.Shape, tensor.Float32)
	if err != nil {
		return nil, err
	}
	x, _ := r.cachedInput.GetFloat32Data()
	gy, _ := gradOutput.GetFloat32Data()
	gx, _ := gradInput.GetFloat32Data()
	for i := range x {
		if x[i] > 0 {
			gx[i] = gy[i]
		}
	}

	r.cachedInput = nil
	return gradInput, nil
}

func (r *reluExec) Parameters() []*tensor.Tensor { return nil }
func (r *reluExec) Gradients() []*tensor.Tensor  { return nil }
func (r *reluExec) NamedTensors() []NamedTensor  { return nil }

// dropoutExec uses inverted dropout: surviving activations are scaled
// by 1/(1-rate) during training so eval mode is the identity.
type dropoutExec struct {
	name string
	rate float64
	rng  *rand.Rand

	cachedMask []float32
}

func newDropoutExec(spec *layers.LayerSpec, rng *rand.Rand) (*dropoutExec, error) {
	rate, err := spec.FloatParam("rate")
	if err != nil {
		return nil, err
	}
	if rate < 0 || rate >= 1 {
		return nil, fmt.Errorf("dropout rate must be in [0, 1), got %g", rate)
	}
	return &dropoutExec{name: spec.Name, rate: rate, rng: rng}, nil
}

func (d *dropoutExec) Forward(input *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	if !training || d.rate == 0 {
		return input, nil
	}

	output, err := tensor.Zeros(input.Shape, tensor.Float32)
	if err != nil {
		return nil, err
	}
	x, _ := input.GetFloat32Data()
	y, _ := output.GetFloat32Data()

	scale := float32(1.0 / (1.0 - d.rate))
	mask := make([]float32, len(x))
	for i := range x {
		if d.rng.Float64() >= d.rate {
			mask[i] = scale
			y[i] = x[i] * scale
		}
	}

	d.cachedMask = mask
	return output, nil
}

func (d *dropoutExec) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if d.cachedMask == nil {
		// Rate zero keeps forward as identity; pass the gradient through.
		if d.rate == 0 {
			return gradOutput, nil
		}
		return nil, fmt.Errorf("dropout backward called before training forward")
	}

	gradInput, err := tensor.Zeros(gradOutput.Shape, tensor.Float32)
	if err != nil {
		return nil, err
	}
	gy, _ := gradOutput.GetFloat32Data()
	gx, _ := gradInput.GetFloat32Data()
	for i := range gy {
		gx[i] = gy[i] * d.cachedMask[i]
	}

	d.cachedMask = nil
	return gradInput, nil
}

func (d *dropoutExec) Parameters() []*tensor.Tensor { return nil }
func (d *dropoutExec) Gradients() []*tensor.Tensor  { return nil }
func (d *dropoutExec) NamedTensors() []NamedTensor  { return nil }

type flattenExec struct {
	name        string
	cachedShape []int
}

func newFlattenExec(spec *layers.LayerSpec) *flattenExec {
	return &flattenExec{name: spec.Name}
}

func (f *flattenExec) Forward(input *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	output, err := tensor.Flatten(input)
	if err != nil {
		return nil, err
	}
	if training {
		f.cachedShape = input.Shape
	}
	return output, nil
}

func (f *flattenExec) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if f.cachedShape == nil {
		return nil, fmt.Errorf("flatten backward called before training forward")
	}
	gradInput, err := tensor.Reshape(gradOutput, f.cachedShape)
	if err != nil {
		return nil, err
	}
	f.cachedShape = nil
	return gradInput, nil
}

func (f *flattenExec) Parameters() []*tensor.Tensor { return nil }
func (f *flattenExec) Gradients() []*tensor.Tensor  { return nil }
func (f *flattenExec) NamedTensors() []NamedTensor  { return nil }
