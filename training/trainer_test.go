package training

import (
	"math/rand"
	"testing"

	"github.com/tsawler/bordernet/engine"
	"github.com/tsawler/bordernet/layers"
	"github.com/tsawler/bordernet/optimizer"
)

// sliceSource serves fixed in-memory batches.
type sliceSource struct {
	batches [][]float32
	labels  [][]int32
	shape   []int
	cursor  int
}

func (s *sliceSource) NumBatches() int     { return len(s.batches) }
func (s *sliceSource) SampleShape() []int  { return s.shape }
func (s *sliceSource) Reset()              { s.cursor = 0 }
func (s *sliceSource) NumSamples() int {
	total := 0
	for _, l := range s.labels {
		total += len(l)
	}
	return total
}

func (s *sliceSource) NextBatch() ([]float32, []int32, int, error) {
	batch := s.batches[s.cursor]
	labels := s.labels[s.cursor]
	s.cursor++
	return batch, labels, len(labels), nil
}

// separableSource builds a linearly separable two-feature problem:
// class 0 near (1, 0), class 1 near (0, 1).
func separableSource(batches, batchSize int, seed int64) *sliceSource {
	rng := rand.New(rand.NewSource(seed))
	src := &sliceSource{shape: []int{2}}
	for b := 0; b < batches; b++ {
		data := make([]float32, 0, batchSize*2)
		labels := make([]int32, 0, batchSize)
		for i := 0; i < batchSize; i++ {
			label := int32(i % 2)
			noise := func() float32 { return float32(rng.Float64()*0.2 - 0.1) }
			if label == 0 {
				data = append(data, 1+noise(), 0+noise())
			} else {
				data = append(data, 0+noise(), 1+noise())
			}
			labels = append(labels, label)
		}
		src.batches = append(src.batches, data)
		src.labels = append(src.labels, labels)
	}
	return src
}

func newTestTrainer(t *testing.T, epochs int) (*Trainer, *VisualizationCollector) {
	t.Helper()
	spec, err := layers.NewModelBuilder([]int{8, 2}).
		AddDense(8, true, "fc1").
		AddReLU("relu1").
		AddDense(2, true, "fc2").
		Compile()
	if err != nil {
		t.Fatalf("failed to compile model: %v", err)
	}
	eng, err := engine.NewModelEngine(spec, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	config := optimizer.DefaultAdamWConfig()
	config.LearningRate = 0.01
	config.WeightDecay = 0
	opt, err := optimizer.NewAdamWOptimizer(config, eng.Parameters(), eng.Gradients())
	if err != nil {
		t.Fatalf("failed to create optimizer: %v", err)
	}
	collector := NewVisualizationCollector("test-model")
	sched := NewReduceLROnPlateauScheduler(0.1, 2, 1e-4, "min")
	trainer, err := NewTrainer(eng, opt, sched, collector, TrainerConfig{Epochs: epochs})
	if err != nil {
		t.Fatalf("failed to create trainer: %v", err)
	}
	return trainer, collector
}

func TestTrainerLearnsSeparableData(t *testing.T) {
	trainer, _ := newTestTrainer(t, 1)
	train := separableSource(20, 8, 1)

	firstLoss, _, err := trainer.TrainEpoch(train, 1)
	if err != nil {
		t.Fatalf("first epoch failed: %v", err)
	}
	var lastLoss float64
	for epoch := 2; epoch <= 5; epoch++ {
		lastLoss, _, err = trainer.TrainEpoch(train, epoch)
		if err != nil {
			t.Fatalf("epoch %d failed: %v", epoch, err)
		}
	}
	if lastLoss >= firstLoss {
		t.Errorf("expected loss to decrease: first %g, last %g", firstLoss, lastLoss)
	}
}

func TestTrainerEvaluate(t *testing.T) {
	trainer, _ := newTestTrainer(t, 1)
	train := separableSource(20, 8, 1)
	val := separableSource(4, 8, 2)

	for epoch := 1; epoch <= 5; epoch++ {
		if _, _, err := trainer.TrainEpoch(train, epoch); err != nil {
			t.Fatalf("training failed: %v", err)
		}
	}

	result, err := trainer.Evaluate(val)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if result.Accuracy < 0.9 {
		t.Errorf("expected high accuracy on separable data, got %g", result.Accuracy)
	}
	n := val.NumSamples()
	if len(result.Labels) != n || len(result.Predictions) != n || len(result.Scores) != n {
		t.Errorf("expected %d per-sample results, got %d/%d/%d",
			n, len(result.Labels), len(result.Predictions), len(result.Scores))
	}
	for _, s := range result.Scores {
		if s < 0 || s > 1 {
			t.Errorf("score out of probability range: %g", s)
		}
	}
}

func TestTrainerFitTracksHistoryAndBestModel(t *testing.T) {
	trainer, collector := newTestTrainer(t, 3)
	train := separableSource(10, 8, 1)
	val := separableSource(2, 8, 2)
	test := separableSource(2, 8, 3)

	saves := 0
	var savedEpochs []int
	var savedLosses []float64
	trainer.OnBestModel = func(epoch int, valLoss float64) error {
		saves++
		savedEpochs = append(savedEpochs, epoch)
		savedLosses = append(savedLosses, valLoss)
		return nil
	}

	if err := trainer.Fit(train, val, test); err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if len(trainer.History()) != 3 {
		t.Errorf("expected 3 history entries, got %d", len(trainer.History()))
	}
	for _, stats := range trainer.History() {
		if stats.TestLoss <= 0 {
			t.Errorf("epoch %d: expected positive test loss, got %g", stats.Epoch, stats.TestLoss)
		}
	}
	if saves == 0 {
		t.Fatal("expected at least one best-model save")
	}
	for i := 1; i < saves; i++ {
		if savedEpochs[i] <= savedEpochs[i-1] {
			t.Errorf("save epochs not increasing: %v", savedEpochs)
		}
		if savedLosses[i] >= savedLosses[i-1] {
			t.Errorf("saved losses not improving: %v", savedLosses)
		}
	}
	if savedLosses[saves-1] != trainer.BestValidationLoss() {
		t.Errorf("last saved loss %g does not match best validation loss %g",
			savedLosses[saves-1], trainer.BestValidationLoss())
	}
	if trainer.BestValidationLoss() <= 0 {
		t.Errorf("expected positive best validation loss, got %g", trainer.BestValidationLoss())
	}

	plot := collector.GenerateLossCurvesPlot()
	if len(plot.Series) != 3 || len(plot.Series[0].Data) != 3 {
		t.Error("collector did not record epoch data during fit")
	}
}

func TestTrainerFitWithoutTestSource(t *testing.T) {
	trainer, collector := newTestTrainer(t, 2)
	train := separableSource(10, 8, 1)
	val := separableSource(2, 8, 2)

	if err := trainer.Fit(train, val, nil); err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	for _, stats := range trainer.History() {
		if stats.TestLoss != 0 {
			t.Errorf("expected zero test loss without a test source, got %g", stats.TestLoss)
		}
	}
	plot := collector.GenerateLossCurvesPlot()
	if len(plot.Series) != 2 {
		t.Errorf("expected 2 series without a test source, got %d", len(plot.Series))
	}
}

func TestNewTrainerValidation(t *testing.T) {
	if _, err := NewTrainer(nil, nil, nil, nil, TrainerConfig{Epochs: 1}); err == nil {
		t.Error("expected error for nil engine")
	}
}
