package training

import (
	"math"
	"testing"

	"github.com/tsawler/bordernet/tensor"
)

func TestSoftmaxRowsSumToOne(t *testing.T) {
	logits, err := tensor.NewTensor([]int{2, 3}, tensor.Float32, []float32{1, 2, 3, -1, 0, 1})
	if err != nil {
		t.Fatalf("failed to create logits: %v", err)
	}
	probs, err := Softmax(logits)
	if err != nil {
		t.Fatalf("softmax failed: %v", err)
	}
	data, _ := probs.GetFloat32Data()
	for n := 0; n < 2; n++ {
		var sum float64
		for j := 0; j < 3; j++ {
			p := float64(data[n*3+j])
			if p <= 0 || p >= 1 {
				t.Errorf("probability out of range: %g", p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("row %d: probabilities sum to %g", n, sum)
		}
	}
}

func TestSoftmaxUniformLogits(t *testing.T) {
	logits, _ := tensor.NewTensor([]int{1, 2}, tensor.Float32, []float32{0, 0})
	probs, err := Softmax(logits)
	if err != nil {
		t.Fatalf("softmax failed: %v", err)
	}
	data, _ := probs.GetFloat32Data()
	for _, p := range data {
		if math.Abs(float64(p)-0.5) > 1e-6 {
			t.Errorf("expected 0.5, got %g", p)
		}
	}
}

func TestSoftmaxLargeLogitsStable(t *testing.T) {
	logits, _ := tensor.NewTensor([]int{1, 2}, tensor.Float32, []float32{1000, 1000})
	probs, err := Softmax(logits)
	if err != nil {
		t.Fatalf("softmax failed: %v", err)
	}
	data, _ := probs.GetFloat32Data()
	for _, p := range data {
		if math.IsNaN(float64(p)) || math.Abs(float64(p)-0.5) > 1e-6 {
			t.Errorf("expected stable 0.5, got %g", p)
		}
	}
}

func TestCrossEntropyLossKnownValue(t *testing.T) {
	// Equal logits over two classes give loss ln(2).
	logits, _ := tensor.NewTensor([]int{1, 2}, tensor.Float32, []float32{0, 0})
	loss, grad, err := CrossEntropyLoss(logits, []int32{0})
	if err != nil {
		t.Fatalf("loss failed: %v", err)
	}
	if math.Abs(loss-math.Ln2) > 1e-5 {
		t.Errorf("expected loss ln(2)=%g, got %g", math.Ln2, loss)
	}

	// Gradient is softmax minus one-hot over the batch.
	g, _ := grad.GetFloat32Data()
	want := []float32{-0.5, 0.5}
	for i := range want {
		if math.Abs(float64(g[i]-want[i])) > 1e-5 {
			t.Errorf("grad[%d]: expected %g, got %g", i, want[i], g[i])
		}
	}
}

func TestCrossEntropyLossBatchMean(t *testing.T) {
	logits, _ := tensor.NewTensor([]int{2, 2}, tensor.Float32, []float32{5, -5, -5, 5})
	loss, _, err := CrossEntropyLoss(logits, []int32{0, 1})
	if err != nil {
		t.Fatalf("loss failed: %v", err)
	}
	// Confident correct predictions give near-zero loss.
	if loss > 0.01 {
		t.Errorf("expected near-zero loss for confident predictions, got %g", loss)
	}
}

func TestCrossEntropyLossLabelOutOfRange(t *testing.T) {
	logits, _ := tensor.NewTensor([]int{1, 2}, tensor.Float32, []float32{0, 0})
	if _, _, err := CrossEntropyLoss(logits, []int32{2}); err == nil {
		t.Error("expected error for out-of-range label")
	}
	if _, _, err := CrossEntropyLoss(logits, []int32{0, 1}); err == nil {
		t.Error("expected error for label count mismatch")
	}
}

func TestPredictionsArgmax(t *testing.T) {
	scores, _ := tensor.NewTensor([]int{3, 2}, tensor.Float32, []float32{
		0.9, 0.1,
		0.2, 0.8,
		0.5, 0.4,
	})
	preds, err := Predictions(scores)
	if err != nil {
		t.Fatalf("predictions failed: %v", err)
	}
	want := []int32{0, 1, 0}
	for i := range want {
		if preds[i] != want[i] {
			t.Errorf("prediction %d: expected %d, got %d", i, want[i], preds[i])
		}
	}
}
