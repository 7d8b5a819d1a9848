// Package training provides the epoch loop, loss, metrics, learning
// rate scheduling, and plot data collection for model training.
package training

import (
	"fmt"
	"math"

	"github.com/tsawler/bordernet/tensor"
)

// Softmax converts a [batch, classes] logit tensor to probabilities.
// Each row is shifted by its max before exponentiation for stability.
func Softmax(logits *tensor.Tensor) (*tensor.Tensor, error) {
	if len(logits.Shape) != 2 {
		return nil, fmt.Errorf("softmax expects 2D logits, got shape %v", logits.Shape)
	}

	batch, classes := logits.Shape[0], logits.Shape[1]
	output, err := tensor.Zeros(logits.Shape, tensor.Float32)
	if err != nil {
		return nil, err
	}

	x, _ := logits.GetFloat32Data()
	y, _ := output.GetFloat32Data()

	for n := 0; n < batch; n++ {
		row := n * classes
		maxVal := x[row]
		for j := 1; j < classes; j++ {
			if x[row+j] > maxVal {
				maxVal = x[row+j]
			}
		}
		var sum float64
		for j := 0; j < classes; j++ {
			e := math.Exp(float64(x[row+j] - maxVal))
			y[row+j] = float32(e)
			sum += e
		}
		for j := 0; j < classes; j++ {
			y[row+j] = float32(float64(y[row+j]) / sum)
		}
	}
	return output, nil
}

// CrossEntropyLoss computes the mean cross entropy between logits and
// integer class labels, along with the gradient with respect to the
// logits. The gradient is softmax(logits) minus the one-hot labels,
// divided by the batch size.
func CrossEntropyLoss(logits *tensor.Tensor, labels []int32) (float64, *tensor.Tensor, error) {
	if len(logits.Shape) != 2 {
		return 0, nil, fmt.Errorf("cross entropy expects 2D logits, got shape %v", logits.Shape)
	}
	batch, classes := logits.Shape[0], logits.Shape[1]
	if len(labels) != batch {
		return 0, nil, fmt.Errorf("label count %d does not match batch size %d", len(labels), batch)
	}

	probs, err := Softmax(logits)
	if err != nil {
		return 0, nil, err
	}

	grad, err := probs.Clone()
	if err != nil {
		return 0, nil, err
	}

	p, _ := probs.GetFloat32Data()
	g, _ := grad.GetFloat32Data()

	var loss float64
	invBatch := float32(1.0 / float64(batch))
	for n := 0; n < batch; n++ {
		label := labels[n]
		if label < 0 || int(label) >= classes {
			return 0, nil, fmt.Errorf("label %d out of range for %d classes", label, classes)
		}
		prob := float64(p[n*classes+int(label)])
		if prob < 1e-12 {
			prob = 1e-12
		}
		loss -= math.Log(prob)
		g[n*classes+int(label)] -= 1
	}
	for i := range g {
		g[i] *= invBatch
	}

	return loss / float64(batch), grad, nil
}

// Predictions returns the argmax class for each row of a logit or
// probability tensor.
func Predictions(scores *tensor.Tensor) ([]int32, error) {
	if len(scores.Shape) != 2 {
		return nil, fmt.Errorf("predictions expect 2D scores, got shape %v", scores.Shape)
	}
	batch, classes := scores.Shape[0], scores.Shape[1]
	data, err := scores.GetFloat32Data()
	if err != nil {
		return nil, err
	}

	preds := make([]int32, batch)
	for n := 0; n < batch; n++ {
		row := n * classes
		best := 0
		for j := 1; j < classes; j++ {
			if data[row+j] > data[row+best] {
				best = j
			}
		}
		preds[n] = int32(best)
	}
	return preds, nil
}
