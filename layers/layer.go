package layers

import (
	"fmt"
)

// LayerType represents the type of neural network layer
type LayerType int

const (
	Dense LayerType = iota
	Conv2D
	ReLU
	MaxPool2D
	Dropout
	BatchNorm
	Flatten
)

func (lt LayerType) String() string {
	switch lt {
	case Dense:
		return "Dense"
	case Conv2D:
		return "Conv2D"
	case ReLU:
		return "ReLU"
	case MaxPool2D:
		return "MaxPool2D"
	case Dropout:
		return "Dropout"
	case BatchNorm:
		return "BatchNorm"
	case Flatten:
		return "Flatten"
	default:
		return "Unknown"
	}
}

// LayerSpec defines layer configuration for the execution engine.
// This is pure configuration - no execution logic.
type LayerSpec struct {
	Type       LayerType              `json:"type"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`

	// Shape information (computed during model compilation)
	InputShape  []int `json:"input_shape,omitempty"`
	OutputShape []int `json:"output_shape,omitempty"`

	// Parameter metadata (computed during model compilation)
	ParameterShapes [][]int `json:"parameter_shapes,omitempty"`
	ParameterCount  int64   `json:"parameter_count,omitempty"`
}

// ModelSpec defines a complete neural network model as layer configuration.
type ModelSpec struct {
	Layers []LayerSpec `json:"layers"`

	// Compiled model information
	TotalParameters int64   `json:"total_parameters"`
	ParameterShapes [][]int `json:"parameter_shapes"`
	InputShape      []int   `json:"input_shape"`
	OutputShape     []int   `json:"output_shape"`
	Compiled        bool    `json:"compiled"`
}

// IntParam reads an integer layer parameter, tolerating the float64 that a
// JSON round trip produces.
func (ls *LayerSpec) IntParam(key string) (int, error) {
	v, ok := ls.Parameters[key]
	if !ok {
		return 0, fmt.Errorf("layer %s: missing parameter %q", ls.Name, key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("layer %s: parameter %q is %T, not an integer", ls.Name, key, v)
	}
}

// FloatParam reads a float layer parameter.
func (ls *LayerSpec) FloatParam(key string) (float64, error) {
	v, ok := ls.Parameters[key]
	if !ok {
		return 0, fmt.Errorf("layer %s: missing parameter %q", ls.Name, key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("layer %s: parameter %q is %T, not a float", ls.Name, key, v)
	}
}

// BoolParam reads a boolean layer parameter.
func (ls *LayerSpec) BoolParam(key string) (bool, error) {
	v, ok := ls.Parameters[key]
	if !ok {
		return false, fmt.Errorf("layer %s: missing parameter %q", ls.Name, key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("layer %s: parameter %q is %T, not a bool", ls.Name, key, v)
	}
	return b, nil
}

// ModelBuilder helps construct neural network models
type ModelBuilder struct {
	layers     []LayerSpec
	inputShape []int
	compiled   bool
}

// NewModelBuilder creates a new model builder for the given input shape.
// The input shape includes the batch dimension, e.g. [B, 3, 224, 224].
func NewModelBuilder(inputShape []int) *ModelBuilder {
	return &ModelBuilder{
		layers:     make([]LayerSpec, 0),
		inputShape: inputShape,
		compiled:   false,
	}
}

// AddLayer adds a layer to the model
func (mb *ModelBuilder) AddLayer(layer LayerSpec) *ModelBuilder {
	mb.layers = append(mb.layers, layer)
	mb.compiled = false // Invalidate compilation
	return mb
}

// AddConv2D adds a Conv2D layer to the model.
// Input channels are computed during compilation.
func (mb *ModelBuilder) AddConv2D(outputChannels, kernelSize, stride, padding int, useBias bool, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: Conv2D,
		Name: name,
		Parameters: map[string]interface{}{
			"output_channels": outputChannels,
			"kernel_size":     kernelSize,
			"stride":          stride,
			"padding":         padding,
			"use_bias":        useBias,
		},
	})
}

// AddBatchNorm adds a Batch Normalization layer to the model.
// The feature count is computed during compilation.
func (mb *ModelBuilder) AddBatchNorm(eps, momentum float64, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: BatchNorm,
		Name: name,
		Parameters: map[string]interface{}{
			"eps":      eps,
			"momentum": momentum,
		},
	})
}

// AddReLU adds a ReLU activation to the model
func (mb *ModelBuilder) AddReLU(name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type:       ReLU,
		Name:       name,
		Parameters: map[string]interface{}{},
	})
}

// AddMaxPool2D adds a max-pooling layer to the model
func (mb *ModelBuilder) AddMaxPool2D(poolSize, stride int, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: MaxPool2D,
		Name: name,
		Parameters: map[string]interface{}{
			"pool_size": poolSize,
			"stride":    stride,
		},
	})
}

// AddDropout adds a Dropout layer to the model
func (mb *ModelBuilder) AddDropout(rate float64, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: Dropout,
		Name: name,
		Parameters: map[string]interface{}{
			"rate": rate,
		},
	})
}

// AddFlatten adds a layer collapsing all non-batch dimensions
func (mb *ModelBuilder) AddFlatten(name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type:       Flatten,
		Name:       name,
		Parameters: map[string]interface{}{},
	})
}

// AddDense adds a dense layer to the model.
// Input size is computed during compilation.
func (mb *ModelBuilder) AddDense(outputSize int, useBias bool, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: Dense,
		Name: name,
		Parameters: map[string]interface{}{
			"output_size": outputSize,
			"use_bias":    useBias,
		},
	})
}

// Compile computes per-layer input/output shapes and parameter metadata,
// producing an executable ModelSpec.
func (mb *ModelBuilder) Compile() (*ModelSpec, error) {
	if len(mb.layers) == 0 {
		return nil, fmt.Errorf("cannot compile model with no layers")
	}
	if len(mb.inputShape) < 2 {
		return nil, fmt.Errorf("input shape must include batch and feature dimensions, got %v", mb.inputShape)
	}

	spec := &ModelSpec{
		Layers:     make([]LayerSpec, len(mb.layers)),
		InputShape: append([]int(nil), mb.inputShape...),
	}
	copy(spec.Layers, mb.layers)

	current := append([]int(nil), mb.inputShape...)
	for i := range spec.Layers {
		layer := &spec.Layers[i]
		layer.InputShape = append([]int(nil), current...)

		output, paramShapes, err := inferLayer(layer, current)
		if err != nil {
			return nil, fmt.Errorf("failed to compile layer %d (%s): %w", i, layer.Name, err)
		}

		layer.OutputShape = output
		layer.ParameterShapes = paramShapes
		layer.ParameterCount = 0
		for _, shape := range paramShapes {
			count := int64(1)
			for _, dim := range shape {
				count *= int64(dim)
			}
			layer.ParameterCount += count
		}

		spec.ParameterShapes = append(spec.ParameterShapes, paramShapes...)
		spec.TotalParameters += layer.ParameterCount
		current = output
	}

	spec.OutputShape = current
	spec.Compiled = true
	mb.compiled = true
	return spec, nil
}

// inferLayer computes the output shape and learnable parameter shapes for a
// single layer given its input shape.
func inferLayer(layer *LayerSpec, input []int) ([]int, [][]int, error) {
	switch layer.Type {
	case Conv2D:
		if len(input) != 4 {
			return nil, nil, fmt.Errorf("Conv2D expects NCHW input, got shape %v", input)
		}
		outC, err := layer.IntParam("output_channels")
		if err != nil {
			return nil, nil, err
		}
		kernel, err := layer.IntParam("kernel_size")
		if err != nil {
			return nil, nil, err
		}
		stride, err := layer.IntParam("stride")
		if err != nil {
			return nil, nil, err
		}
		padding, err := layer.IntParam("padding")
		if err != nil {
			return nil, nil, err
		}
		useBias, err := layer.BoolParam("use_bias")
		if err != nil {
			return nil, nil, err
		}

		inC, h, w := input[1], input[2], input[3]
		outH := (h+2*padding-kernel)/stride + 1
		outW := (w+2*padding-kernel)/stride + 1
		if outH <= 0 || outW <= 0 {
			return nil, nil, fmt.Errorf("kernel %d with stride %d and padding %d does not fit %dx%d input", kernel, stride, padding, h, w)
		}

		layer.Parameters["input_channels"] = inC

		params := [][]int{{outC, inC, kernel, kernel}}
		if useBias {
			params = append(params, []int{outC})
		}
		return []int{input[0], outC, outH, outW}, params, nil

	case BatchNorm:
		if len(input) != 4 {
			return nil, nil, fmt.Errorf("BatchNorm expects NCHW input, got shape %v", input)
		}
		features := input[1]
		layer.Parameters["num_features"] = features
		// gamma and beta
		return append([]int(nil), input...), [][]int{{features}, {features}}, nil

	case ReLU:
		return append([]int(nil), input...), nil, nil

	case MaxPool2D:
		if len(input) != 4 {
			return nil, nil, fmt.Errorf("MaxPool2D expects NCHW input, got shape %v", input)
		}
		pool, err := layer.IntParam("pool_size")
		if err != nil {
			return nil, nil, err
		}
		stride, err := layer.IntParam("stride")
		if err != nil {
			return nil, nil, err
		}

		h, w := input[2], input[3]
		outH := (h-pool)/stride + 1
		outW := (w-pool)/stride + 1
		if outH <= 0 || outW <= 0 {
			return nil, nil, fmt.Errorf("pool %d with stride %d does not fit %dx%d input", pool, stride, h, w)
		}
		return []int{input[0], input[1], outH, outW}, nil, nil

	case Dropout:
		if _, err := layer.FloatParam("rate"); err != nil {
			return nil, nil, err
		}
		return append([]int(nil), input...), nil, nil

	case Flatten:
		features := 1
		for _, dim := range input[1:] {
			features *= dim
		}
		return []int{input[0], features}, nil, nil

	case Dense:
		if len(input) != 2 {
			return nil, nil, fmt.Errorf("Dense expects flattened [B, features] input, got shape %v (add a Flatten layer)", input)
		}
		outSize, err := layer.IntParam("output_size")
		if err != nil {
			return nil, nil, err
		}
		useBias, err := layer.BoolParam("use_bias")
		if err != nil {
			return nil, nil, err
		}

		inSize := input[1]
		layer.Parameters["input_size"] = inSize

		params := [][]int{{inSize, outSize}}
		if useBias {
			params = append(params, []int{outSize})
		}
		return []int{input[0], outSize}, params, nil

	default:
		return nil, nil, fmt.Errorf("unsupported layer type: %s", layer.Type)
	}
}

// Summary returns a human-readable description of the compiled model.
func (ms *ModelSpec) Summary() string {
	if !ms.Compiled {
		return "ModelSpec (not compiled)"
	}

	out := fmt.Sprintf("ModelSpec: %d layers, %d parameters, input %v -> output %v\n",
		len(ms.Layers), ms.TotalParameters, ms.InputShape, ms.OutputShape)
	for i, layer := range ms.Layers {
		out += fmt.Sprintf("  (%d) %-10s %-8s %v -> %v", i, layer.Name, layer.Type, layer.InputShape, layer.OutputShape)
		if layer.ParameterCount > 0 {
			out += fmt.Sprintf("  params: %d", layer.ParameterCount)
		}
		out += "\n"
	}
	return out
}
