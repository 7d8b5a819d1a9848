// Package checkpoints serializes model architecture, weights, and
// training state to JSON so a training run can be resumed or its best
// model reloaded for evaluation.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tsawler/bordernet/engine"
	"github.com/tsawler/bordernet/layers"
	"github.com/tsawler/bordernet/tensor"
)

// Checkpoint is a complete model snapshot: architecture, every
// parameter and persistent buffer, and training progress.
type Checkpoint struct {
	ModelSpec *layers.ModelSpec `json:"model_spec"`
	Weights   []WeightTensor    `json:"weights"`

	TrainingState TrainingState `json:"training_state"`

	Metadata CheckpointMetadata `json:"metadata"`
}

// WeightTensor is a named parameter or buffer with its data.
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
	Layer string    `json:"layer"`
	Type  string    `json:"type"` // "weight", "bias", "gamma", "beta", "running_mean", "running_var"
}

// TrainingState captures training progress at save time.
type TrainingState struct {
	Epoch        int     `json:"epoch"`
	LearningRate float64 `json:"learning_rate"`
	BestValLoss  float64 `json:"best_val_loss"`
}

// CheckpointMetadata describes the checkpoint.
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// FromEngine builds a checkpoint from the engine's current state.
func FromEngine(eng *engine.ModelEngine, state TrainingState, description string) (*Checkpoint, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}

	named := eng.NamedTensors()
	weights := make([]WeightTensor, 0, len(named))
	for _, nt := range named {
		data, err := nt.Tensor.GetFloat32Data()
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", nt.Name, err)
		}
		copied := make([]float32, len(data))
		copy(copied, data)
		weights = append(weights, WeightTensor{
			Name:  nt.Name,
			Shape: append([]int(nil), nt.Tensor.Shape...),
			Data:  copied,
			Layer: nt.Layer,
			Type:  nt.Role,
		})
	}

	return &Checkpoint{
		ModelSpec:     eng.Spec(),
		Weights:       weights,
		TrainingState: state,
		Metadata: CheckpointMetadata{
			Version:     "1.0",
			Framework:   "bordernet",
			CreatedAt:   time.Now(),
			Description: description,
		},
	}, nil
}

// Save writes the checkpoint as JSON, creating parent directories as
// needed. The write goes through a temp file and rename so a crash
// never leaves a truncated checkpoint behind.
func Save(checkpoint *Checkpoint, path string) error {
	if checkpoint == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	payload, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize checkpoint: %w", err)
	}
	return nil
}

// Load reads a JSON checkpoint from disk.
func Load(path string) (*Checkpoint, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(payload, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	if checkpoint.ModelSpec == nil {
		return nil, fmt.Errorf("checkpoint has no model spec")
	}
	if len(checkpoint.Weights) == 0 {
		return nil, fmt.Errorf("checkpoint has no weights")
	}
	return &checkpoint, nil
}

// Restore loads checkpoint weights into an engine. The engine must
// have been built from a spec with the same architecture.
func Restore(checkpoint *Checkpoint, eng *engine.ModelEngine) error {
	if checkpoint == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}
	if eng == nil {
		return fmt.Errorf("engine cannot be nil")
	}

	weights := make(map[string]*tensor.Tensor, len(checkpoint.Weights))
	for _, wt := range checkpoint.Weights {
		t, err := tensor.NewTensor(wt.Shape, tensor.Float32, wt.Data)
		if err != nil {
			return fmt.Errorf("checkpoint tensor %s: %w", wt.Name, err)
		}
		weights[wt.Name] = t
	}
	return eng.LoadNamedTensors(weights)
}
