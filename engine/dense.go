package engine

import (
	"fmt"
	"math/rand"

	"github.com/tsawler/bordernet/layers"
	"github.com/tsawler/bordernet/tensor"
)

// denseExec is a fully connected layer over 2D input [batch, features].
type denseExec struct {
	name       string
	inputSize  int
	outputSize int
	useBias    bool

	weight *tensor.Tensor // [in, out]
	bias   *tensor.Tensor // [out]
	gradW  *tensor.Tensor
	gradB  *tensor.Tensor

	cachedInput *tensor.Tensor
}

func newDenseExec(spec *layers.LayerSpec, rng *rand.Rand) (*denseExec, error) {
	inSize, err := spec.IntParam("input_size")
	if err != nil {
		return nil, err
	}
	outSize, err := spec.IntParam("output_size")
	if err != nil {
		return nil, err
	}
	useBias, err := spec.BoolParam("use_bias")
	if err != nil {
		return nil, err
	}

	weight, err := tensor.KaimingUniform([]int{inSize, outSize}, inSize, rng)
	if err != nil {
		return nil, err
	}
	gradW, err := tensor.Zeros([]int{inSize, outSize}, tensor.Float32)
	if err != nil {
		return nil, err
	}

	exec := &denseExec{
		name:       spec.Name,
		inputSize:  inSize,
		outputSize: outSize,
		useBias:    useBias,
		weight:     weight,
		gradW:      gradW,
	}

	if useBias {
		exec.bias, err = tensor.KaimingUniform([]int{outSize}, inSize, rng)
		if err != nil {
			return nil, err
		}
		exec.gradB, err = tensor.Zeros([]int{outSize}, tensor.Float32)
		if err != nil {
			return nil, err
		}
	}

	return exec, nil
}

func (d *denseExec) Forward(input *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 {
		return nil, fmt.Errorf("dense expects 2D input, got shape %v", input.Shape)
	}
	if input.Shape[1] != d.inputSize {
		return nil, fmt.Errorf("dense expects %d input features, got %d", d.inputSize, input.Shape[1])
	}

	output, err := tensor.MatMul(input, d.weight)
	if err != nil {
		return nil, err
	}

	if d.useBias {
		y, _ := output.GetFloat32Data()
		b, _ := d.bias.GetFloat32Data()
		batch := input.Shape[0]
		for n := 0; n < batch; n++ {
			row := n * d.outputSize
			for j := 0; j < d.outputSize; j++ {
				y[row+j] += b[j]
			}
		}
	}

	if training {
		d.cachedInput = input
	}
	return output, nil
}

func (d *denseExec) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if d.cachedInput == nil {
		return nil, fmt.Errorf("dense backward called before training forward")
	}

	wT, err := tensor.Transpose(d.weight)
	if err != nil {
		return nil, err
	}
	gradInput, err := tensor.MatMul(gradOutput, wT)
	if err != nil {
		return nil, err
	}

	xT, err := tensor.Transpose(d.cachedInput)
	if err != nil {
		return nil, err
	}
	dW, err := tensor.MatMul(xT, gradOutput)
	if err != nil {
		return nil, err
	}

	gw, _ := d.gradW.GetFloat32Data()
	dwData, _ := dW.GetFloat32Data()
	for i := range gw {
		gw[i] += dwData[i]
	}

	if d.useBias {
		gb, _ := d.gradB.GetFloat32Data()
		gy, _ := gradOutput.GetFloat32Data()
		batch := gradOutput.Shape[0]
		for n := 0; n < batch; n++ {
			row := n * d.outputSize
			for j := 0; j < d.outputSize; j++ {
				gb[j] += gy[row+j]
			}
		}
	}

	d.cachedInput = nil
	return gradInput, nil
}

func (d *denseExec) Parameters() []*tensor.Tensor {
	if d.useBias {
		return []*tensor.Tensor{d.weight, d.bias}
	}
	return []*tensor.Tensor{d.weight}
}

func (d *denseExec) Gradients() []*tensor.Tensor {
	if d.useBias {
		return []*tensor.Tensor{d.gradW, d.gradB}
	}
	return []*tensor.Tensor{d.gradW}
}

func (d *denseExec) NamedTensors() []NamedTensor {
	named := []NamedTensor{
		{Name: d.name + ".weight", Layer: d.name, Role: "weight", Tensor: d.weight, Trainable: true},
	}
	if d.useBias {
		named = append(named, NamedTensor{Name: d.name + ".bias", Layer: d.name, Role: "bias", Tensor: d.bias, Trainable: true})
	}
	return named
}
