package optimizer

import (
	"fmt"
	"math"

	"github.com/tsawler/bordernet/tensor"
)

// AdamWConfig holds hyperparameters for the AdamW optimizer.
type AdamWConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

// DefaultAdamWConfig returns the standard AdamW hyperparameters.
func DefaultAdamWConfig() AdamWConfig {
	return AdamWConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.01,
	}
}

// AdamWOptimizer implements Adam with decoupled weight decay. Decay is
// applied directly to the parameter, not folded into the gradient.
type AdamWOptimizer struct {
	config AdamWConfig
	params []*tensor.Tensor
	grads  []*tensor.Tensor

	m [][]float32 // first moment per parameter
	v [][]float32 // second moment per parameter

	stepCount int64
}

// NewAdamWOptimizer pairs parameters with their gradient tensors. The
// slices must stay aligned for the life of the optimizer.
func NewAdamWOptimizer(config AdamWConfig, params, grads []*tensor.Tensor) (*AdamWOptimizer, error) {
	if err := validatePairs(params, grads); err != nil {
		return nil, err
	}
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", config.LearningRate)
	}
	if config.Beta1 < 0 || config.Beta1 >= 1 || config.Beta2 < 0 || config.Beta2 >= 1 {
		return nil, fmt.Errorf("betas must be in [0, 1), got %g and %g", config.Beta1, config.Beta2)
	}

	opt := &AdamWOptimizer{
		config: config,
		params: params,
		grads:  grads,
		m:      make([][]float32, len(params)),
		v:      make([][]float32, len(params)),
	}
	for i, p := range params {
		opt.m[i] = make([]float32, p.NumElems)
		opt.v[i] = make([]float32, p.NumElems)
	}
	return opt, nil
}

func (o *AdamWOptimizer) Step() error {
	o.stepCount++

	beta1 := o.config.Beta1
	beta2 := o.config.Beta2
	biasCorr1 := 1.0 - math.Pow(beta1, float64(o.stepCount))
	biasCorr2 := 1.0 - math.Pow(beta2, float64(o.stepCount))
	lr := o.config.LearningRate
	decay := float32(lr * o.config.WeightDecay)

	for i := range o.params {
		p, err := o.params[i].GetFloat32Data()
		if err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
		g, err := o.grads[i].GetFloat32Data()
		if err != nil {
			return fmt.Errorf("gradient %d: %w", i, err)
		}
		m := o.m[i]
		v := o.v[i]

		for j := range p {
			grad := float64(g[j])
			m[j] = float32(beta1*float64(m[j]) + (1-beta1)*grad)
			v[j] = float32(beta2*float64(v[j]) + (1-beta2)*grad*grad)

			mHat := float64(m[j]) / biasCorr1
			vHat := float64(v[j]) / biasCorr2

			p[j] -= float32(lr * mHat / (math.Sqrt(vHat) + o.config.Epsilon))
			p[j] -= decay * p[j]
		}
	}
	return nil
}

func (o *AdamWOptimizer) UpdateLearningRate(lr float64) {
	o.config.LearningRate = lr
}

func (o *AdamWOptimizer) GetLearningRate() float64 {
	return o.config.LearningRate
}

func (o *AdamWOptimizer) GetStepCount() int64 {
	return o.stepCount
}
