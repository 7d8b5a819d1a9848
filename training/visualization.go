package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PlotType identifies a plot in the sidecar JSON format.
type PlotType string

const (
	LossCurves           PlotType = "loss_curves"
	AccuracyCurves       PlotType = "accuracy_curves"
	LearningRateSchedule PlotType = "learning_rate_schedule"
	ROCCurvePlot         PlotType = "roc_curve"
	ConfusionMatrixPlot  PlotType = "confusion_matrix"
)

// PlotData is the universal JSON format consumed by the sidecar
// plotting service.
type PlotData struct {
	PlotType  PlotType  `json:"plot_type"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	ModelName string    `json:"model_name"`

	Series []SeriesData `json:"series"`
	Config PlotConfig   `json:"config"`

	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

// SeriesData is a single data series in a plot.
type SeriesData struct {
	Name  string                 `json:"name"`
	Type  string                 `json:"type"` // "line", "scatter", "heatmap"
	Data  []DataPoint            `json:"data"`
	Style map[string]interface{} `json:"style,omitempty"`
}

// DataPoint is flexible enough for line, scatter, and heatmap plots.
type DataPoint struct {
	X     interface{} `json:"x"`
	Y     interface{} `json:"y"`
	Z     interface{} `json:"z,omitempty"`
	Label string      `json:"label,omitempty"`
}

// PlotConfig contains plot-specific configuration.
type PlotConfig struct {
	XAxisLabel    string                 `json:"x_axis_label"`
	YAxisLabel    string                 `json:"y_axis_label"`
	ShowLegend    bool                   `json:"show_legend"`
	ShowGrid      bool                   `json:"show_grid"`
	Width         int                    `json:"width"`
	Height        int                    `json:"height"`
	CustomOptions map[string]interface{} `json:"custom_options,omitempty"`
}

// VisualizationCollector gathers per-epoch training data and evaluation
// results, then renders them as PlotData for the sidecar service.
type VisualizationCollector struct {
	modelName string

	epochs             []int
	trainingLoss       []float64
	trainingAccuracy   []float64
	validationLoss     []float64
	validationAccuracy []float64
	testLoss           []float64
	testAccuracy       []float64
	learningRates      []float64

	rocPoints       []ROCPoint
	rocAUC          float64
	confusionMatrix [][]int
	classNames      []string
}

// NewVisualizationCollector creates an empty collector.
func NewVisualizationCollector(modelName string) *VisualizationCollector {
	return &VisualizationCollector{modelName: modelName}
}

// RecordEpoch appends one epoch of training and validation results.
func (vc *VisualizationCollector) RecordEpoch(epoch int, trainLoss, trainAcc, valLoss, valAcc, learningRate float64) {
	vc.epochs = append(vc.epochs, epoch)
	vc.trainingLoss = append(vc.trainingLoss, trainLoss)
	vc.trainingAccuracy = append(vc.trainingAccuracy, trainAcc)
	vc.validationLoss = append(vc.validationLoss, valLoss)
	vc.validationAccuracy = append(vc.validationAccuracy, valAcc)
	vc.learningRates = append(vc.learningRates, learningRate)
}

// RecordTestEpoch appends one epoch of test-split results. Call it
// after RecordEpoch for the same epoch.
func (vc *VisualizationCollector) RecordTestEpoch(epoch int, testLoss, testAcc float64) {
	vc.testLoss = append(vc.testLoss, testLoss)
	vc.testAccuracy = append(vc.testAccuracy, testAcc)
}

// RecordROCData stores the ROC curve and its AUC.
func (vc *VisualizationCollector) RecordROCData(points []ROCPoint, auc float64) {
	vc.rocPoints = points
	vc.rocAUC = auc
}

// RecordConfusionMatrix stores the confusion matrix with class names.
func (vc *VisualizationCollector) RecordConfusionMatrix(matrix [][]int, classNames []string) {
	vc.confusionMatrix = matrix
	vc.classNames = classNames
}

func (vc *VisualizationCollector) curveSeries(name string, values []float64) SeriesData {
	data := make([]DataPoint, len(values))
	for i, v := range values {
		data[i] = DataPoint{X: vc.epochs[i], Y: v}
	}
	return SeriesData{Name: name, Type: "line", Data: data}
}

// GenerateLossCurvesPlot renders loss per epoch for every recorded
// split.
func (vc *VisualizationCollector) GenerateLossCurvesPlot() PlotData {
	series := []SeriesData{
		vc.curveSeries("Training Loss", vc.trainingLoss),
		vc.curveSeries("Validation Loss", vc.validationLoss),
	}
	if len(vc.testLoss) > 0 {
		series = append(series, vc.curveSeries("Test Loss", vc.testLoss))
	}
	return PlotData{
		PlotType:  LossCurves,
		Title:     "Training and Validation Loss",
		Timestamp: time.Now(),
		ModelName: vc.modelName,
		Series:    series,
		Config: PlotConfig{
			XAxisLabel: "Epoch",
			YAxisLabel: "Loss",
			ShowLegend: true,
			ShowGrid:   true,
			Width:      800,
			Height:     600,
		},
	}
}

// GenerateAccuracyCurvesPlot renders accuracy per epoch for every
// recorded split.
func (vc *VisualizationCollector) GenerateAccuracyCurvesPlot() PlotData {
	series := []SeriesData{
		vc.curveSeries("Training Accuracy", vc.trainingAccuracy),
		vc.curveSeries("Validation Accuracy", vc.validationAccuracy),
	}
	if len(vc.testAccuracy) > 0 {
		series = append(series, vc.curveSeries("Test Accuracy", vc.testAccuracy))
	}
	return PlotData{
		PlotType:  AccuracyCurves,
		Title:     "Training and Validation Accuracy",
		Timestamp: time.Now(),
		ModelName: vc.modelName,
		Series:    series,
		Config: PlotConfig{
			XAxisLabel: "Epoch",
			YAxisLabel: "Accuracy",
			ShowLegend: true,
			ShowGrid:   true,
			Width:      800,
			Height:     600,
		},
	}
}

// GenerateLearningRateSchedulePlot renders the learning rate per epoch.
func (vc *VisualizationCollector) GenerateLearningRateSchedulePlot() PlotData {
	return PlotData{
		PlotType:  LearningRateSchedule,
		Title:     "Learning Rate Schedule",
		Timestamp: time.Now(),
		ModelName: vc.modelName,
		Series: []SeriesData{
			vc.curveSeries("Learning Rate", vc.learningRates),
		},
		Config: PlotConfig{
			XAxisLabel: "Epoch",
			YAxisLabel: "Learning Rate",
			ShowLegend: false,
			ShowGrid:   true,
			Width:      800,
			Height:     600,
		},
	}
}

// GenerateROCCurvePlot renders the ROC curve with a diagonal baseline.
func (vc *VisualizationCollector) GenerateROCCurvePlot() PlotData {
	data := make([]DataPoint, len(vc.rocPoints))
	for i, p := range vc.rocPoints {
		data[i] = DataPoint{X: p.FPR, Y: p.TPR}
	}
	return PlotData{
		PlotType:  ROCCurvePlot,
		Title:     fmt.Sprintf("ROC Curve (AUC = %.4f)", vc.rocAUC),
		Timestamp: time.Now(),
		ModelName: vc.modelName,
		Series: []SeriesData{
			{Name: "ROC", Type: "line", Data: data},
			{
				Name: "Random Classifier",
				Type: "line",
				Data: []DataPoint{{X: 0.0, Y: 0.0}, {X: 1.0, Y: 1.0}},
				Style: map[string]interface{}{
					"dash": true,
				},
			},
		},
		Config: PlotConfig{
			XAxisLabel: "False Positive Rate",
			YAxisLabel: "True Positive Rate",
			ShowLegend: true,
			ShowGrid:   true,
			Width:      800,
			Height:     600,
		},
		Metrics: map[string]interface{}{
			"auc": vc.rocAUC,
		},
	}
}

// GenerateConfusionMatrixPlot renders the confusion matrix as a heatmap.
func (vc *VisualizationCollector) GenerateConfusionMatrixPlot() PlotData {
	var data []DataPoint
	maxCount := 0
	for _, row := range vc.confusionMatrix {
		for _, count := range row {
			if count > maxCount {
				maxCount = count
			}
		}
	}
	for i, row := range vc.confusionMatrix {
		for j, count := range row {
			data = append(data, DataPoint{
				X: j, Y: i, Z: count,
				Label: fmt.Sprintf("%d", count),
			})
		}
	}
	return PlotData{
		PlotType:  ConfusionMatrixPlot,
		Title:     "Confusion Matrix",
		Timestamp: time.Now(),
		ModelName: vc.modelName,
		Series: []SeriesData{
			{Name: "Confusion Matrix", Type: "heatmap", Data: data},
		},
		Config: PlotConfig{
			XAxisLabel: "Predicted",
			YAxisLabel: "Actual",
			ShowLegend: false,
			ShowGrid:   false,
			Width:      600,
			Height:     600,
			CustomOptions: map[string]interface{}{
				"class_names": vc.classNames,
				// Cells at or above half the max count get light text.
				"contrast_threshold": float64(maxCount) / 2.0,
			},
		},
	}
}

// ToJSON serializes plot data for the sidecar service.
func (pd PlotData) ToJSON() ([]byte, error) {
	return json.MarshalIndent(pd, "", "  ")
}

// SaveAll writes every available plot as a JSON file under dir,
// creating the directory if needed. Evaluation plots are skipped when
// their data was never recorded.
func (vc *VisualizationCollector) SaveAll(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}

	plots := []PlotData{
		vc.GenerateLossCurvesPlot(),
		vc.GenerateAccuracyCurvesPlot(),
		vc.GenerateLearningRateSchedulePlot(),
	}
	if len(vc.rocPoints) > 0 {
		plots = append(plots, vc.GenerateROCCurvePlot())
	}
	if len(vc.confusionMatrix) > 0 {
		plots = append(plots, vc.GenerateConfusionMatrixPlot())
	}

	for _, plot := range plots {
		payload, err := plot.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to serialize %s plot: %w", plot.PlotType, err)
		}
		path := filepath.Join(dir, string(plot.PlotType)+".json")
		if err := os.WriteFile(path, payload, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}
