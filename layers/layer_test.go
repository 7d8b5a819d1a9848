package layers

import (
	"testing"
)

func TestModelBuilderCompile(t *testing.T) {
	spec, err := NewModelBuilder([]int{4, 3, 32, 32}).
		AddConv2D(8, 3, 1, 1, true, "conv1").
		AddBatchNorm(1e-5, 0.1, "bn1").
		AddReLU("relu1").
		AddMaxPool2D(2, 2, "pool1").
		AddFlatten("flatten").
		AddDense(10, true, "fc").
		Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if !spec.Compiled {
		t.Error("spec should be marked compiled")
	}

	wantOut := []int{4, 10}
	if spec.OutputShape[0] != wantOut[0] || spec.OutputShape[1] != wantOut[1] {
		t.Errorf("expected output shape %v, got %v", wantOut, spec.OutputShape)
	}

	// conv: 8*3*3*3 weights + 8 bias; bn: 8 gamma + 8 beta; fc: (8*16*16)*10 + 10
	wantParams := int64(8*3*3*3+8) + 16 + int64(8*16*16*10+10)
	if spec.TotalParameters != wantParams {
		t.Errorf("expected %d parameters, got %d", wantParams, spec.TotalParameters)
	}
}

func TestCompileShapePropagation(t *testing.T) {
	spec, err := NewModelBuilder([]int{1, 3, 8, 8}).
		AddConv2D(4, 3, 1, 1, false, "conv").
		AddMaxPool2D(2, 2, "pool").
		Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	conv := spec.Layers[0]
	if conv.OutputShape[2] != 8 || conv.OutputShape[3] != 8 {
		t.Errorf("padded 3x3 conv should preserve spatial dims, got %v", conv.OutputShape)
	}

	pool := spec.Layers[1]
	if pool.OutputShape[2] != 4 || pool.OutputShape[3] != 4 {
		t.Errorf("2x2 pool should halve spatial dims, got %v", pool.OutputShape)
	}
}

func TestCompileDenseWithoutFlatten(t *testing.T) {
	_, err := NewModelBuilder([]int{1, 3, 8, 8}).
		AddDense(2, true, "fc").
		Compile()
	if err == nil {
		t.Error("expected error for Dense on unflattened input")
	}
}

func TestCompileEmptyModel(t *testing.T) {
	if _, err := NewModelBuilder([]int{1, 3, 8, 8}).Compile(); err == nil {
		t.Error("expected error compiling empty model")
	}
}

func TestBuildBorderNet(t *testing.T) {
	spec, err := BuildBorderNet(32, 224, 2, 0.2)
	if err != nil {
		t.Fatalf("BuildBorderNet failed: %v", err)
	}

	if spec.OutputShape[0] != 32 || spec.OutputShape[1] != 2 {
		t.Errorf("expected output shape [32 2], got %v", spec.OutputShape)
	}

	// Four pooling halvings: 224 -> 112 -> 56 -> 28 -> 14.
	var flat *LayerSpec
	for i := range spec.Layers {
		if spec.Layers[i].Type == Flatten {
			flat = &spec.Layers[i]
		}
	}
	if flat == nil {
		t.Fatal("model has no Flatten layer")
	}
	if flat.InputShape[1] != 256 || flat.InputShape[2] != 14 || flat.InputShape[3] != 14 {
		t.Errorf("expected flatten input [_, 256, 14, 14], got %v", flat.InputShape)
	}
	if flat.OutputShape[1] != 256*14*14 {
		t.Errorf("expected %d flattened features, got %d", 256*14*14, flat.OutputShape[1])
	}
}

func TestIntParamJSONRoundTripTolerance(t *testing.T) {
	ls := LayerSpec{
		Name:       "fc",
		Parameters: map[string]interface{}{"output_size": float64(10)},
	}
	n, err := ls.IntParam("output_size")
	if err != nil {
		t.Fatalf("IntParam failed: %v", err)
	}
	if n != 10 {
		t.Errorf("expected 10, got %d", n)
	}
}
