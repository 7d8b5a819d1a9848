package layers

// BuildBorderNet constructs the border-detection CNN: four blocks of
// Conv3x3(pad 1) -> BatchNorm -> ReLU -> MaxPool2x2, widening 3->32->64->128->256,
// then Dense(512) -> ReLU -> Dropout -> Dense(numClasses) producing raw logits.
// A 224x224 input flattens to 256*14*14 before the classifier head.
func BuildBorderNet(batchSize, imageSize, numClasses int, dropoutRate float64) (*ModelSpec, error) {
	builder := NewModelBuilder([]int{batchSize, 3, imageSize, imageSize})

	channels := []int{32, 64, 128, 256}
	for i, c := range channels {
		n := i + 1
		builder.
			AddConv2D(c, 3, 1, 1, true, convName("conv", n)).
			AddBatchNorm(1e-5, 0.1, convName("bn", n)).
			AddReLU(convName("relu", n)).
			AddMaxPool2D(2, 2, convName("pool", n))
	}

	return builder.
		AddFlatten("flatten").
		AddDense(512, true, "fc1").
		AddReLU("relu_fc1").
		AddDropout(dropoutRate, "dropout").
		AddDense(numClasses, true, "fc2").
		Compile()
}

func convName(prefix string, n int) string {
	return prefix + string(rune('0'+n))
}
