package training

import (
	"fmt"

	"github.com/tsawler/bordernet/engine"
	"github.com/tsawler/bordernet/optimizer"
	"github.com/tsawler/bordernet/tensor"
)

// BatchSource yields batches of flattened NCHW image data with integer
// class labels. Reset is called at the start of every epoch; a training
// source reshuffles there, while validation and test sources keep a
// fixed order.
type BatchSource interface {
	// NumBatches returns the number of batches per epoch.
	NumBatches() int

	// NumSamples returns the total number of samples.
	NumSamples() int

	// SampleShape returns the per-sample shape, e.g. [3, 224, 224].
	SampleShape() []int

	// Reset rewinds the source to the first batch.
	Reset()

	// NextBatch returns the next batch. The data slice holds batchSize
	// samples in NCHW order. Returns an error when exhausted or when a
	// sample cannot be loaded.
	NextBatch() (data []float32, labels []int32, batchSize int, err error)
}

// EpochStats records one epoch of training history.
type EpochStats struct {
	Epoch        int     `json:"epoch"`
	TrainLoss    float64 `json:"train_loss"`
	TrainAcc     float64 `json:"train_accuracy"`
	ValLoss      float64 `json:"val_loss"`
	ValAcc       float64 `json:"val_accuracy"`
	TestLoss     float64 `json:"test_loss,omitempty"`
	TestAcc      float64 `json:"test_accuracy,omitempty"`
	LearningRate float64 `json:"learning_rate"`
}

// EvalResult holds the outcome of a full evaluation pass.
type EvalResult struct {
	Loss        float64
	Accuracy    float64
	Labels      []int32
	Predictions []int32
	// Scores holds the positive-class probability for each sample.
	Scores []float32
}

// TrainerConfig configures the epoch loop.
type TrainerConfig struct {
	Epochs           int
	ProgressInterval int // batches between progress lines, 0 disables
	ClassNames       []string
}

// Trainer drives the train/validate loop over a model engine.
type Trainer struct {
	engine    *engine.ModelEngine
	optimizer optimizer.Optimizer
	scheduler *ReduceLROnPlateauScheduler
	collector *VisualizationCollector
	config    TrainerConfig

	history     []EpochStats
	bestValLoss float64

	// OnBestModel is called whenever validation loss improves. It is
	// where checkpoint saving hooks in.
	OnBestModel func(epoch int, valLoss float64) error
}

// NewTrainer wires an engine, optimizer, and plateau scheduler together.
// The scheduler and collector may be nil.
func NewTrainer(eng *engine.ModelEngine, opt optimizer.Optimizer, sched *ReduceLROnPlateauScheduler, collector *VisualizationCollector, config TrainerConfig) (*Trainer, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if opt == nil {
		return nil, fmt.Errorf("optimizer cannot be nil")
	}
	if config.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", config.Epochs)
	}
	return &Trainer{
		engine:    eng,
		optimizer: opt,
		scheduler: sched,
		collector: collector,
		config:    config,
	}, nil
}

// History returns per-epoch statistics collected so far.
func (t *Trainer) History() []EpochStats {
	return t.history
}

func (t *Trainer) batchTensor(data []float32, batchSize int, sampleShape []int) (*tensor.Tensor, error) {
	shape := append([]int{batchSize}, sampleShape...)
	return tensor.NewTensor(shape, tensor.Float32, data)
}

// TrainEpoch runs one pass over the training source in training mode,
// returning mean loss and accuracy.
func (t *Trainer) TrainEpoch(source BatchSource, epoch int) (float64, float64, error) {
	source.Reset()

	var totalLoss float64
	correct, seen := 0, 0
	numBatches := source.NumBatches()

	for batch := 0; batch < numBatches; batch++ {
		data, labels, batchSize, err := source.NextBatch()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to load training batch %d: %w", batch, err)
		}

		input, err := t.batchTensor(data, batchSize, source.SampleShape())
		if err != nil {
			return 0, 0, err
		}

		t.engine.ZeroGradients()
		logits, err := t.engine.Forward(input, true)
		if err != nil {
			return 0, 0, err
		}
		loss, grad, err := CrossEntropyLoss(logits, labels)
		if err != nil {
			return 0, 0, err
		}
		if err := t.engine.Backward(grad); err != nil {
			return 0, 0, err
		}
		if err := t.optimizer.Step(); err != nil {
			return 0, 0, err
		}

		preds, err := Predictions(logits)
		if err != nil {
			return 0, 0, err
		}
		for i := range preds {
			if preds[i] == labels[i] {
				correct++
			}
		}
		seen += batchSize
		totalLoss += loss * float64(batchSize)

		if t.config.ProgressInterval > 0 && (batch+1)%t.config.ProgressInterval == 0 {
			fmt.Printf("Epoch %d, Batch %d/%d, Loss: %.4f\n", epoch, batch+1, numBatches, loss)
		}
	}

	if seen == 0 {
		return 0, 0, fmt.Errorf("training source produced no samples")
	}
	return totalLoss / float64(seen), float64(correct) / float64(seen), nil
}

// Evaluate runs one pass in eval mode and returns per-sample results.
func (t *Trainer) Evaluate(source BatchSource) (*EvalResult, error) {
	source.Reset()

	result := &EvalResult{}
	var totalLoss float64
	correct, seen := 0, 0
	numBatches := source.NumBatches()

	for batch := 0; batch < numBatches; batch++ {
		data, labels, batchSize, err := source.NextBatch()
		if err != nil {
			return nil, fmt.Errorf("failed to load evaluation batch %d: %w", batch, err)
		}

		input, err := t.batchTensor(data, batchSize, source.SampleShape())
		if err != nil {
			return nil, err
		}
		logits, err := t.engine.Forward(input, false)
		if err != nil {
			return nil, err
		}
		loss, _, err := CrossEntropyLoss(logits, labels)
		if err != nil {
			return nil, err
		}
		probs, err := Softmax(logits)
		if err != nil {
			return nil, err
		}
		preds, err := Predictions(logits)
		if err != nil {
			return nil, err
		}

		probData, _ := probs.GetFloat32Data()
		classes := probs.Shape[1]
		for i := 0; i < batchSize; i++ {
			if preds[i] == labels[i] {
				correct++
			}
			result.Labels = append(result.Labels, labels[i])
			result.Predictions = append(result.Predictions, preds[i])
			result.Scores = append(result.Scores, probData[i*classes+1])
		}
		seen += batchSize
		totalLoss += loss * float64(batchSize)
	}

	if seen == 0 {
		return nil, fmt.Errorf("evaluation source produced no samples")
	}
	result.Loss = totalLoss / float64(seen)
	result.Accuracy = float64(correct) / float64(seen)
	return result, nil
}

// Fit runs the full training loop: each epoch trains, validates, and
// evaluates the test split, steps the plateau scheduler on validation
// loss, and invokes OnBestModel when validation loss reaches a new
// minimum. The test source may be nil to skip per-epoch test metrics.
func (t *Trainer) Fit(train, val, test BatchSource) error {
	t.bestValLoss = 0

	for epoch := 1; epoch <= t.config.Epochs; epoch++ {
		trainLoss, trainAcc, err := t.TrainEpoch(train, epoch)
		if err != nil {
			return fmt.Errorf("epoch %d training failed: %w", epoch, err)
		}

		valResult, err := t.Evaluate(val)
		if err != nil {
			return fmt.Errorf("epoch %d validation failed: %w", epoch, err)
		}

		var testResult *EvalResult
		if test != nil {
			testResult, err = t.Evaluate(test)
			if err != nil {
				return fmt.Errorf("epoch %d test evaluation failed: %w", epoch, err)
			}
		}

		lr := t.optimizer.GetLearningRate()
		fmt.Printf("Epoch %d/%d:\n", epoch, t.config.Epochs)
		fmt.Printf("  Train Loss: %.4f, Train Acc: %.4f\n", trainLoss, trainAcc)
		fmt.Printf("  Val Loss: %.4f, Val Acc: %.4f\n", valResult.Loss, valResult.Accuracy)
		if testResult != nil {
			fmt.Printf("  Test Loss: %.4f, Test Acc: %.4f\n", testResult.Loss, testResult.Accuracy)
		}

		stats := EpochStats{
			Epoch:        epoch,
			TrainLoss:    trainLoss,
			TrainAcc:     trainAcc,
			ValLoss:      valResult.Loss,
			ValAcc:       valResult.Accuracy,
			LearningRate: lr,
		}
		if testResult != nil {
			stats.TestLoss = testResult.Loss
			stats.TestAcc = testResult.Accuracy
		}
		t.history = append(t.history, stats)
		if t.collector != nil {
			t.collector.RecordEpoch(epoch, trainLoss, trainAcc, valResult.Loss, valResult.Accuracy, lr)
			if testResult != nil {
				t.collector.RecordTestEpoch(epoch, testResult.Loss, testResult.Accuracy)
			}
		}

		if epoch == 1 || valResult.Loss < t.bestValLoss {
			t.bestValLoss = valResult.Loss
			if t.OnBestModel != nil {
				if err := t.OnBestModel(epoch, valResult.Loss); err != nil {
					return fmt.Errorf("failed to save best model at epoch %d: %w", epoch, err)
				}
			}
		}

		if t.scheduler != nil {
			newLR := t.scheduler.Step(valResult.Loss, lr)
			if newLR != lr {
				fmt.Printf("Reducing learning rate to %g\n", newLR)
				t.optimizer.UpdateLearningRate(newLR)
			}
		}
	}
	return nil
}

// BestValidationLoss returns the lowest validation loss seen by Fit.
func (t *Trainer) BestValidationLoss() float64 {
	return t.bestValLoss
}
