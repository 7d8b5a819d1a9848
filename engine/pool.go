package engine

import (
	"fmt"
	"math"

	"github.com/tsawler/bordernet/layers"
	"github.com/tsawler/bordernet/tensor"
)

// maxPoolExec records the argmax of each pooling window so the backward
// pass can route gradients to the winning input element.
type maxPoolExec struct {
	name     string
	poolSize int
	stride   int

	cachedArgmax []int
	cachedShape  []int
}

func newMaxPoolExec(spec *layers.LayerSpec) (*maxPoolExec, error) {
	poolSize, err := spec.IntParam("pool_size")
	if err != nil {
		return nil, err
	}
	stride, err := spec.IntParam("stride")
	if err != nil {
		return nil, err
	}
	return &maxPoolExec{name: spec.Name, poolSize: poolSize, stride: stride}, nil
}

func (p *maxPoolExec) Forward(input *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("max pool expects 4D input, got shape %v", input.Shape)
	}

	batch, channels, inH, inW := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	outH := (inH-p.poolSize)/p.stride + 1
	outW := (inW-p.poolSize)/p.stride + 1

	output, err := tensor.Zeros([]int{batch, channels, outH, outW}, tensor.Float32)
	if err != nil {
		return nil, err
	}

	x, _ := input.GetFloat32Data()
	y, _ := output.GetFloat32Data()

	argmax := make([]int, batch*channels*outH*outW)
	inPlane := inH * inW
	outPlane := outH * outW

	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			xBase := (n*channels + c) * inPlane
			yBase := (n*channels + c) * outPlane
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					best := float32(math.Inf(-1))
					bestIdx := -1
					for kh := 0; kh < p.poolSize; kh++ {
						ih := oh*p.stride + kh
						for kw := 0; kw < p.poolSize; kw++ {
							iw := ow*p.stride + kw
							idx := xBase + ih*inW + iw
							if x[idx] > best {
								best = x[idx]
								bestIdx = idx
							}
						}
					}
					outIdx := yBase + oh*outW + ow
					y[outIdx] = best
					argmax[outIdx] = bestIdx
				}
			}
		}
	}

	if training {
		p.cachedArgmax = argmax
		p.cachedShape = input.Shape
	}
	return output, nil
}

func (p *maxPoolExec) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if p.cachedArgmax == nil {
		return nil, fmt.Errorf("max pool backward called before training forward")
	}

	gradInput, err := tensor.Zeros(p.cachedShape, tensor.Float32)
	if err != nil {
		return nil, err
	}

	gy, _ := gradOutput.GetFloat32Data()
	gx, _ := gradInput.GetFloat32Data()
	for i, src := range p.cachedArgmax {
		gx[src] += gy[i]
	}

	p.cachedArgmax = nil
	return gradInput, nil
}

func (p *maxPoolExec) Parameters() []*tensor.Tensor { return nil }
func (p *maxPoolExec) Gradients() []*tensor.Tensor  { return nil }
func (p *maxPoolExec) NamedTensors() []NamedTensor  { return nil }
