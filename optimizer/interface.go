// Package optimizer provides gradient descent optimizers that update
// model parameters in place from accumulated gradients.
package optimizer

import (
	"fmt"

	"github.com/tsawler/bordernet/tensor"
)

// Optimizer applies one update step to a fixed set of parameters.
type Optimizer interface {
	// Step updates every parameter from its paired gradient.
	Step() error

	// UpdateLearningRate changes the learning rate for subsequent steps.
	UpdateLearningRate(lr float64)

	// GetLearningRate returns the current learning rate.
	GetLearningRate() float64

	// GetStepCount returns the number of completed steps.
	GetStepCount() int64
}

func validatePairs(params, grads []*tensor.Tensor) error {
	if len(params) == 0 {
		return fmt.Errorf("optimizer requires at least one parameter")
	}
	if len(params) != len(grads) {
		return fmt.Errorf("parameter count %d does not match gradient count %d", len(params), len(grads))
	}
	for i := range params {
		if params[i] == nil || grads[i] == nil {
			return fmt.Errorf("parameter %d or its gradient is nil", i)
		}
		if params[i].NumElems != grads[i].NumElems {
			return fmt.Errorf("parameter %d has %d elements but gradient has %d",
				i, params[i].NumElems, grads[i].NumElems)
		}
	}
	return nil
}
