package engine

import (
	"fmt"
	"math/rand"

	"github.com/tsawler/bordernet/layers"
	"github.com/tsawler/bordernet/tensor"
)

// convExec implements 2D convolution with NCHW layout.
type convExec struct {
	name        string
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int
	useBias     bool

	weight *tensor.Tensor // [outC, inC, k, k]
	bias   *tensor.Tensor // [outC]
	gradW  *tensor.Tensor
	gradB  *tensor.Tensor

	cachedInput *tensor.Tensor
}

func newConvExec(spec *layers.LayerSpec, rng *rand.Rand) (*convExec, error) {
	inC, err := spec.IntParam("input_channels")
	if err != nil {
		return nil, err
	}
	outC, err := spec.IntParam("output_channels")
	if err != nil {
		return nil, err
	}
	kernel, err := spec.IntParam("kernel_size")
	if err != nil {
		return nil, err
	}
	stride, err := spec.IntParam("stride")
	if err != nil {
		return nil, err
	}
	padding, err := spec.IntParam("padding")
	if err != nil {
		return nil, err
	}
	useBias, err := spec.BoolParam("use_bias")
	if err != nil {
		return nil, err
	}

	fanIn := inC * kernel * kernel
	weight, err := tensor.KaimingUniform([]int{outC, inC, kernel, kernel}, fanIn, rng)
	if err != nil {
		return nil, err
	}
	gradW, err := tensor.Zeros([]int{outC, inC, kernel, kernel}, tensor.Float32)
	if err != nil {
		return nil, err
	}

	exec := &convExec{
		name:        spec.Name,
		inChannels:  inC,
		outChannels: outC,
		kernelSize:  kernel,
		stride:      stride,
		padding:     padding,
		useBias:     useBias,
		weight:      weight,
		gradW:       gradW,
	}

	if useBias {
		exec.bias, err = tensor.KaimingUniform([]int{outC}, fanIn, rng)
		if err != nil {
			return nil, err
		}
		exec.gradB, err = tensor.Zeros([]int{outC}, tensor.Float32)
		if err != nil {
			return nil, err
		}
	}

	return exec, nil
}

func (c *convExec) Forward(input *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("conv expects 4D input, got shape %v", input.Shape)
	}
	if input.Shape[1] != c.inChannels {
		return nil, fmt.Errorf("conv expects %d input channels, got %d", c.inChannels, input.Shape[1])
	}

	batch, inH, inW := input.Shape[0], input.Shape[2], input.Shape[3]
	outH := (inH+2*c.padding-c.kernelSize)/c.stride + 1
	outW := (inW+2*c.padding-c.kernelSize)/c.stride + 1

	output, err := tensor.Zeros([]int{batch, c.outChannels, outH, outW}, tensor.Float32)
	if err != nil {
		return nil, err
	}

	x, _ := input.GetFloat32Data()
	w, _ := c.weight.GetFloat32Data()
	y, _ := output.GetFloat32Data()
	var b []float32
	if c.useBias {
		b, _ = c.bias.GetFloat32Data()
	}

	k := c.kernelSize
	inPlane := inH * inW
	outPlane := outH * outW

	for n := 0; n < batch; n++ {
		xBase := n * c.inChannels * inPlane
		yBase := n * c.outChannels * outPlane
		for oc := 0; oc < c.outChannels; oc++ {
			var biasVal float32
			if c.useBias {
				biasVal = b[oc]
			}
			wBase := oc * c.inChannels * k * k
			for oh := 0; oh < outH; oh++ {
				ihStart := oh*c.stride - c.padding
				for ow := 0; ow < outW; ow++ {
					iwStart := ow*c.stride - c.padding
					sum := biasVal
					for ic := 0; ic < c.inChannels; ic++ {
						xPlane := xBase + ic*inPlane
						wPlane := wBase + ic*k*k
						for kh := 0; kh < k; kh++ {
							ih := ihStart + kh
							if ih < 0 || ih >= inH {
								continue
							}
							xRow := xPlane + ih*inW
							wRow := wPlane + kh*k
							for kw := 0; kw < k; kw++ {
								iw := iwStart + kw
								if iw < 0 || iw >= inW {
									continue
								}
								sum += x[xRow+iw] * w[wRow+kw]
							}
						}
					}
					y[yBase+oc*outPlane+oh*outW+ow] = sum
				}
			}
		}
	}

	if training {
		c.cachedInput = input
	}
	return output, nil
}

func (c *convExec) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if c.cachedInput == nil {
		return nil, fmt.Errorf("conv backward called before training forward")
	}

	input := c.cachedInput
	batch, inH, inW := input.Shape[0], input.Shape[2], input.Shape[3]
	outH, outW := gradOutput.Shape[2], gradOutput.Shape[3]

	gradInput, err := tensor.Zeros(input.Shape, tensor.Float32)
	if err != nil {
		return nil, err
	}

	x, _ := input.GetFloat32Data()
	w, _ := c.weight.GetFloat32Data()
	gy, _ := gradOutput.GetFloat32Data()
	gx, _ := gradInput.GetFloat32Data()
	gw, _ := c.gradW.GetFloat32Data()
	var gb []float32
	if c.useBias {
		gb, _ = c.gradB.GetFloat32Data()
	}

	k := c.kernelSize
	inPlane := inH * inW
	outPlane := outH * outW

	for n := 0; n < batch; n++ {
		xBase := n * c.inChannels * inPlane
		yBase := n * c.outChannels * outPlane
		for oc := 0; oc < c.outChannels; oc++ {
			wBase := oc * c.inChannels * k * k
			for oh := 0; oh < outH; oh++ {
				ihStart := oh*c.stride - c.padding
				for ow := 0; ow < outW; ow++ {
					iwStart := ow*c.stride - c.padding
					grad := gy[yBase+oc*outPlane+oh*outW+ow]
					if grad == 0 {
						continue
					}
					if c.useBias {
						gb[oc] += grad
					}
					for ic := 0; ic < c.inChannels; ic++ {
						xPlane := xBase + ic*inPlane
						wPlane := wBase + ic*k*k
						for kh := 0; kh < k; kh++ {
							ih := ihStart + kh
							if ih < 0 || ih >= inH {
								continue
							}
							xRow := xPlane + ih*inW
							wRow := wPlane + kh*k
							for kw := 0; kw < k; kw++ {
								iw := iwStart + kw
								if iw < 0 || iw >= inW {
									continue
								}
								gw[wRow+kw] += x[xRow+iw] * grad
								gx[xRow+iw] += w[wRow+kw] * grad
							}
						}
					}
				}
			}
		}
	}

	c.cachedInput = nil
	return gradInput, nil
}

func (c *convExec) Parameters() []*tensor.Tensor {
	if c.useBias {
		return []*tensor.Tensor{c.weight, c.bias}
	}
	return []*tensor.Tensor{c.weight}
}

func (c *convExec) Gradients() []*tensor.Tensor {
	if c.useBias {
		return []*tensor.Tensor{c.gradW, c.gradB}
	}
	return []*tensor.Tensor{c.gradW}
}

func (c *convExec) NamedTensors() []NamedTensor {
	named := []NamedTensor{
		{Name: c.name + ".weight", Layer: c.name, Role: "weight", Tensor: c.weight, Trainable: true},
	}
	if c.useBias {
		named = append(named, NamedTensor{Name: c.name + ".bias", Layer: c.name, Role: "bias", Tensor: c.bias, Trainable: true})
	}
	return named
}
