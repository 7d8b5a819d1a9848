package engine

import (
	"fmt"
	"math"

	"github.com/tsawler/bordernet/layers"
	"github.com/tsawler/bordernet/tensor"
)

// batchNormExec normalizes per channel over the batch and spatial
// dimensions. Training mode uses batch statistics and updates running
// statistics; eval mode uses the running statistics.
type batchNormExec struct {
	name     string
	features int
	eps      float64
	momentum float64

	gamma *tensor.Tensor // [C]
	beta  *tensor.Tensor // [C]
	gradG *tensor.Tensor
	gradB *tensor.Tensor

	runningMean *tensor.Tensor // [C]
	runningVar  *tensor.Tensor // [C]

	cachedXHat   []float32
	cachedInvStd []float32
	cachedShape  []int
}

func newBatchNormExec(spec *layers.LayerSpec) (*batchNormExec, error) {
	features, err := spec.IntParam("num_features")
	if err != nil {
		return nil, err
	}
	eps, err := spec.FloatParam("eps")
	if err != nil {
		return nil, err
	}
	momentum, err := spec.FloatParam("momentum")
	if err != nil {
		return nil, err
	}

	gamma, err := tensor.Ones([]int{features}, tensor.Float32)
	if err != nil {
		return nil, err
	}
	beta, err := tensor.Zeros([]int{features}, tensor.Float32)
	if err != nil {
		return nil, err
	}
	gradG, err := tensor.Zeros([]int{features}, tensor.Float32)
	if err != nil {
		return nil, err
	}
	gradB, err := tensor.Zeros([]int{features}, tensor.Float32)
	if err != nil {
		return nil, err
	}
	runningMean, err := tensor.Zeros([]int{features}, tensor.Float32)
	if err != nil {
		return nil, err
	}
	runningVar, err := tensor.Ones([]int{features}, tensor.Float32)
	if err != nil {
		return nil, err
	}

	return &batchNormExec{
		name:        spec.Name,
		features:    features,
		eps:         eps,
		momentum:    momentum,
		gamma:       gamma,
		beta:        beta,
		gradG:       gradG,
		gradB:       gradB,
		runningMean: runningMean,
		runningVar:  runningVar,
	}, nil
}

func (bn *batchNormExec) Forward(input *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("batch norm expects 4D input, got shape %v", input.Shape)
	}
	if input.Shape[1] != bn.features {
		return nil, fmt.Errorf("batch norm expects %d channels, got %d", bn.features, input.Shape[1])
	}

	batch, channels := input.Shape[0], input.Shape[1]
	plane := input.Shape[2] * input.Shape[3]
	perChannel := batch * plane

	output, err := tensor.Zeros(input.Shape, tensor.Float32)
	if err != nil {
		return nil, err
	}

	x, _ := input.GetFloat32Data()
	y, _ := output.GetFloat32Data()
	g, _ := bn.gamma.GetFloat32Data()
	b, _ := bn.beta.GetFloat32Data()
	rMean, _ := bn.runningMean.GetFloat32Data()
	rVar, _ := bn.runningVar.GetFloat32Data()

	if !training {
		for c := 0; c < channels; c++ {
			invStd := float32(1.0 / math.Sqrt(float64(rVar[c])+bn.eps))
			mean := rMean[c]
			for n := 0; n < batch; n++ {
				base := (n*channels + c) * plane
				for i := 0; i < plane; i++ {
					y[base+i] = g[c]*(x[base+i]-mean)*invStd + b[c]
				}
			}
		}
		return output, nil
	}

	bn.cachedXHat = make([]float32, len(x))
	bn.cachedInvStd = make([]float32, channels)
	bn.cachedShape = input.Shape

	for c := 0; c < channels; c++ {
		var sum float64
		for n := 0; n < batch; n++ {
			base := (n*channels + c) * plane
			for i := 0; i < plane; i++ {
				sum += float64(x[base+i])
			}
		}
		mean := sum / float64(perChannel)

		var sqSum float64
		for n := 0; n < batch; n++ {
			base := (n*channels + c) * plane
			for i := 0; i < plane; i++ {
				d := float64(x[base+i]) - mean
				sqSum += d * d
			}
		}
		variance := sqSum / float64(perChannel)
		invStd := 1.0 / math.Sqrt(variance+bn.eps)
		bn.cachedInvStd[c] = float32(invStd)

		for n := 0; n < batch; n++ {
			base := (n*channels + c) * plane
			for i := 0; i < plane; i++ {
				xhat := float32((float64(x[base+i]) - mean) * invStd)
				bn.cachedXHat[base+i] = xhat
				y[base+i] = g[c]*xhat + b[c]
			}
		}

		// Running statistics use the unbiased variance estimate.
		unbiased := variance
		if perChannel > 1 {
			unbiased = variance * float64(perChannel) / float64(perChannel-1)
		}
		rMean[c] = float32((1-bn.momentum)*float64(rMean[c]) + bn.momentum*mean)
		rVar[c] = float32((1-bn.momentum)*float64(rVar[c]) + bn.momentum*unbiased)
	}

	return output, nil
}

func (bn *batchNormExec) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if bn.cachedXHat == nil {
		return nil, fmt.Errorf("batch norm backward called before training forward")
	}

	batch, channels := bn.cachedShape[0], bn.cachedShape[1]
	plane := bn.cachedShape[2] * bn.cachedShape[3]
	perChannel := float32(batch * plane)

	gradInput, err := tensor.Zeros(bn.cachedShape, tensor.Float32)
	if err != nil {
		return nil, err
	}

	gy, _ := gradOutput.GetFloat32Data()
	gx, _ := gradInput.GetFloat32Data()
	g, _ := bn.gamma.GetFloat32Data()
	gGamma, _ := bn.gradG.GetFloat32Data()
	gBeta, _ := bn.gradB.GetFloat32Data()

	for c := 0; c < channels; c++ {
		var sumGy, sumGyXHat float32
		for n := 0; n < batch; n++ {
			base := (n*channels + c) * plane
			for i := 0; i < plane; i++ {
				sumGy += gy[base+i]
				sumGyXHat += gy[base+i] * bn.cachedXHat[base+i]
			}
		}
		gGamma[c] += sumGyXHat
		gBeta[c] += sumGy

		scale := g[c] * bn.cachedInvStd[c] / perChannel
		for n := 0; n < batch; n++ {
			base := (n*channels + c) * plane
			for i := 0; i < plane; i++ {
				gx[base+i] = scale * (perChannel*gy[base+i] - sumGy - bn.cachedXHat[base+i]*sumGyXHat)
			}
		}
	}

	bn.cachedXHat = nil
	bn.cachedInvStd = nil
	return gradInput, nil
}

func (bn *batchNormExec) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{bn.gamma, bn.beta}
}

func (bn *batchNormExec) Gradients() []*tensor.Tensor {
	return []*tensor.Tensor{bn.gradG, bn.gradB}
}

func (bn *batchNormExec) NamedTensors() []NamedTensor {
	return []NamedTensor{
		{Name: bn.name + ".gamma", Layer: bn.name, Role: "gamma", Tensor: bn.gamma, Trainable: true},
		{Name: bn.name + ".beta", Layer: bn.name, Role: "beta", Tensor: bn.beta, Trainable: true},
		{Name: bn.name + ".running_mean", Layer: bn.name, Role: "running_mean", Tensor: bn.runningMean, Trainable: false},
		{Name: bn.name + ".running_var", Layer: bn.name, Role: "running_var", Tensor: bn.runningVar, Trainable: false},
	}
}
