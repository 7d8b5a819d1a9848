package optimizer

import (
	"fmt"

	"github.com/tsawler/bordernet/tensor"
)

// SGDConfig holds hyperparameters for stochastic gradient descent.
type SGDConfig struct {
	LearningRate float64
	Momentum     float64
	WeightDecay  float64
	Nesterov     bool
}

// DefaultSGDConfig returns SGD with momentum 0.9 and no weight decay.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{
		LearningRate: 0.01,
		Momentum:     0.9,
	}
}

// SGDOptimizer implements SGD with optional momentum and Nesterov
// acceleration. Weight decay is classic L2, added to the gradient.
type SGDOptimizer struct {
	config   SGDConfig
	params   []*tensor.Tensor
	grads    []*tensor.Tensor
	velocity [][]float32

	stepCount int64
}

func NewSGDOptimizer(config SGDConfig, params, grads []*tensor.Tensor) (*SGDOptimizer, error) {
	if err := validatePairs(params, grads); err != nil {
		return nil, err
	}
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", config.LearningRate)
	}
	if config.Momentum < 0 || config.Momentum >= 1 {
		return nil, fmt.Errorf("momentum must be in [0, 1), got %g", config.Momentum)
	}
	if config.Nesterov && config.Momentum == 0 {
		return nil, fmt.Errorf("nesterov acceleration requires nonzero momentum")
	}

	opt := &SGDOptimizer{
		config: config,
		params: params,
		grads:  grads,
	}
	if config.Momentum > 0 {
		opt.velocity = make([][]float32, len(params))
		for i, p := range params {
			opt.velocity[i] = make([]float32, p.NumElems)
		}
	}
	return opt, nil
}

func (o *SGDOptimizer) Step() error {
	o.stepCount++

	lr := float32(o.config.LearningRate)
	momentum := float32(o.config.Momentum)
	decay := float32(o.config.WeightDecay)

	for i := range o.params {
		p, err := o.params[i].GetFloat32Data()
		if err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
		g, err := o.grads[i].GetFloat32Data()
		if err != nil {
			return fmt.Errorf("gradient %d: %w", i, err)
		}

		if momentum == 0 {
			for j := range p {
				p[j] -= lr * (g[j] + decay*p[j])
			}
			continue
		}

		vel := o.velocity[i]
		for j := range p {
			grad := g[j] + decay*p[j]
			vel[j] = momentum*vel[j] + grad
			if o.config.Nesterov {
				p[j] -= lr * (grad + momentum*vel[j])
			} else {
				p[j] -= lr * vel[j]
			}
		}
	}
	return nil
}

func (o *SGDOptimizer) UpdateLearningRate(lr float64) {
	o.config.LearningRate = lr
}

func (o *SGDOptimizer) GetLearningRate() float64 {
	return o.config.LearningRate
}

func (o *SGDOptimizer) GetStepCount() int64 {
	return o.stepCount
}
