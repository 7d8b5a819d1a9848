package engine

import (
	"fmt"
	"math/rand"

	"github.com/tsawler/bordernet/layers"
	"github.com/tsawler/bordernet/tensor"
)

// layerExec is a single executable layer. Forward caches whatever its
// Backward pass needs; Backward returns the gradient with respect to the
// layer input and accumulates parameter gradients internally.
type layerExec interface {
	Forward(input *tensor.Tensor, training bool) (*tensor.Tensor, error)
	Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	Gradients() []*tensor.Tensor
	NamedTensors() []NamedTensor
}

// NamedTensor identifies a trainable parameter or a persistent buffer
// (batch norm running statistics) for checkpointing.
type NamedTensor struct {
	Name      string // e.g. "conv1.weight"
	Layer     string
	Role      string // "weight", "bias", "gamma", "beta", "running_mean", "running_var"
	Tensor    *tensor.Tensor
	Trainable bool
}

// ModelEngine executes a compiled model specification on the CPU.
type ModelEngine struct {
	spec      *layers.ModelSpec
	execs     []layerExec
	batchSize int
}

// NewModelEngine builds executable layers from a compiled spec and
// initializes their parameters using the supplied random source.
func NewModelEngine(spec *layers.ModelSpec, rng *rand.Rand) (*ModelEngine, error) {
	if spec == nil {
		return nil, fmt.Errorf("model spec cannot be nil")
	}
	if !spec.Compiled {
		return nil, fmt.Errorf("model spec must be compiled before execution")
	}
	if rng == nil {
		return nil, fmt.Errorf("random source cannot be nil")
	}

	engine := &ModelEngine{
		spec:      spec,
		execs:     make([]layerExec, 0, len(spec.Layers)),
		batchSize: spec.InputShape[0],
	}

	for i := range spec.Layers {
		layerSpec := &spec.Layers[i]
		exec, err := buildLayerExec(layerSpec, rng)
		if err != nil {
			return nil, fmt.Errorf("failed to build layer %s: %w", layerSpec.Name, err)
		}
		engine.execs = append(engine.execs, exec)
	}

	return engine, nil
}

func buildLayerExec(spec *layers.LayerSpec, rng *rand.Rand) (layerExec, error) {
	switch spec.Type {
	case layers.Conv2D:
		return newConvExec(spec, rng)
	case layers.BatchNorm:
		return newBatchNormExec(spec)
	case layers.ReLU:
		return newReLUExec(spec), nil
	case layers.MaxPool2D:
		return newMaxPoolExec(spec)
	case layers.Dropout:
		return newDropoutExec(spec, rng)
	case layers.Flatten:
		return newFlattenExec(spec), nil
	case layers.Dense:
		return newDenseExec(spec, rng)
	default:
		return nil, fmt.Errorf("unsupported layer type: %s", spec.Type.String())
	}
}

// Forward runs the full model on a batch. The batch dimension may be
// smaller than the compiled batch size (final partial batch).
func (e *ModelEngine) Forward(input *tensor.Tensor, training bool) (*tensor.Tensor, error) {
	if input == nil {
		return nil, fmt.Errorf("input tensor cannot be nil")
	}
	current := input
	for i, exec := range e.execs {
		out, err := exec.Forward(current, training)
		if err != nil {
			return nil, fmt.Errorf("forward pass failed at layer %s: %w", e.spec.Layers[i].Name, err)
		}
		current = out
	}
	return current, nil
}

// Backward propagates the loss gradient through all layers in reverse,
// accumulating parameter gradients. Must follow a training-mode Forward.
func (e *ModelEngine) Backward(gradOutput *tensor.Tensor) error {
	if gradOutput == nil {
		return fmt.Errorf("output gradient cannot be nil")
	}
	current := gradOutput
	for i := len(e.execs) - 1; i >= 0; i-- {
		grad, err := e.execs[i].Backward(current)
		if err != nil {
			return fmt.Errorf("backward pass failed at layer %s: %w", e.spec.Layers[i].Name, err)
		}
		current = grad
	}
	return nil
}

// Parameters returns all trainable parameter tensors in layer order.
func (e *ModelEngine) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, exec := range e.execs {
		params = append(params, exec.Parameters()...)
	}
	return params
}

// Gradients returns gradient tensors aligned with Parameters.
func (e *ModelEngine) Gradients() []*tensor.Tensor {
	var grads []*tensor.Tensor
	for _, exec := range e.execs {
		grads = append(grads, exec.Gradients()...)
	}
	return grads
}

// ZeroGradients resets all accumulated parameter gradients.
func (e *ModelEngine) ZeroGradients() {
	for _, exec := range e.execs {
		for _, g := range exec.Gradients() {
			g.Zero()
		}
	}
}

// NamedTensors returns every parameter and persistent buffer with a
// stable name, suitable for checkpoint serialization.
func (e *ModelEngine) NamedTensors() []NamedTensor {
	var named []NamedTensor
	for _, exec := range e.execs {
		named = append(named, exec.NamedTensors()...)
	}
	return named
}

// LoadNamedTensors restores parameters and buffers from checkpoint data.
// Every tensor the model owns must be present with a matching shape.
func (e *ModelEngine) LoadNamedTensors(weights map[string]*tensor.Tensor) error {
	for _, nt := range e.NamedTensors() {
		src, ok := weights[nt.Name]
		if !ok {
			return fmt.Errorf("checkpoint missing tensor %s", nt.Name)
		}
		dst := nt.Tensor
		if len(src.Shape) != len(dst.Shape) {
			return fmt.Errorf("tensor %s rank mismatch: checkpoint %v, model %v", nt.Name, src.Shape, dst.Shape)
		}
		for i := range src.Shape {
			if src.Shape[i] != dst.Shape[i] {
				return fmt.Errorf("tensor %s shape mismatch: checkpoint %v, model %v", nt.Name, src.Shape, dst.Shape)
			}
		}
		srcData, err := src.GetFloat32Data()
		if err != nil {
			return fmt.Errorf("tensor %s: %w", nt.Name, err)
		}
		dstData, err := dst.GetFloat32Data()
		if err != nil {
			return fmt.Errorf("tensor %s: %w", nt.Name, err)
		}
		copy(dstData, srcData)
	}
	return nil
}

// Spec returns the compiled model specification this engine executes.
func (e *ModelEngine) Spec() *layers.ModelSpec {
	return e.spec
}
