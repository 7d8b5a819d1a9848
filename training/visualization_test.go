package training

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func recordedCollector() *VisualizationCollector {
	vc := NewVisualizationCollector("bordernet")
	vc.RecordEpoch(1, 0.7, 0.55, 0.65, 0.6, 0.001)
	vc.RecordEpoch(2, 0.4, 0.8, 0.45, 0.75, 0.001)
	vc.RecordEpoch(3, 0.2, 0.92, 0.3, 0.88, 0.0001)
	return vc
}

func TestGenerateLossCurvesPlot(t *testing.T) {
	vc := recordedCollector()
	plot := vc.GenerateLossCurvesPlot()

	if plot.PlotType != LossCurves {
		t.Errorf("unexpected plot type %s", plot.PlotType)
	}
	if len(plot.Series) != 2 {
		t.Fatalf("expected 2 series, got %d", len(plot.Series))
	}
	if plot.Series[0].Name != "Training Loss" || plot.Series[1].Name != "Validation Loss" {
		t.Errorf("unexpected series names %q, %q", plot.Series[0].Name, plot.Series[1].Name)
	}
	if len(plot.Series[0].Data) != 3 {
		t.Errorf("expected 3 data points, got %d", len(plot.Series[0].Data))
	}
	if plot.Series[0].Data[2].Y != 0.2 {
		t.Errorf("expected final training loss 0.2, got %v", plot.Series[0].Data[2].Y)
	}
}

func TestGenerateConfusionMatrixPlot(t *testing.T) {
	vc := recordedCollector()
	vc.RecordConfusionMatrix([][]int{{8, 2}, {1, 9}}, []string{"borders", "no_borders"})

	plot := vc.GenerateConfusionMatrixPlot()
	if plot.PlotType != ConfusionMatrixPlot {
		t.Errorf("unexpected plot type %s", plot.PlotType)
	}
	if len(plot.Series[0].Data) != 4 {
		t.Fatalf("expected 4 heatmap cells, got %d", len(plot.Series[0].Data))
	}
	threshold, ok := plot.Config.CustomOptions["contrast_threshold"].(float64)
	if !ok || threshold != 4.5 {
		t.Errorf("expected contrast threshold 4.5 (half of max count), got %v",
			plot.Config.CustomOptions["contrast_threshold"])
	}
}

func TestGenerateROCCurvePlot(t *testing.T) {
	vc := recordedCollector()
	points, auc, err := ROCCurve([]float32{0.9, 0.8, 0.2, 0.1}, []int32{1, 1, 0, 0})
	if err != nil {
		t.Fatalf("roc failed: %v", err)
	}
	vc.RecordROCData(points, auc)

	plot := vc.GenerateROCCurvePlot()
	if len(plot.Series) != 2 {
		t.Fatalf("expected ROC and baseline series, got %d", len(plot.Series))
	}
	if plot.Metrics["auc"] != 1.0 {
		t.Errorf("expected AUC 1.0 in metrics, got %v", plot.Metrics["auc"])
	}
}

func TestSaveAllWritesPlotFiles(t *testing.T) {
	vc := recordedCollector()
	points, auc, err := ROCCurve([]float32{0.9, 0.1}, []int32{1, 0})
	if err != nil {
		t.Fatalf("roc failed: %v", err)
	}
	vc.RecordROCData(points, auc)
	vc.RecordConfusionMatrix([][]int{{1, 0}, {0, 1}}, []string{"borders", "no_borders"})

	dir := filepath.Join(t.TempDir(), "plots")
	if err := vc.SaveAll(dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	wantFiles := []string{
		"loss_curves.json",
		"accuracy_curves.json",
		"learning_rate_schedule.json",
		"roc_curve.json",
		"confusion_matrix.json",
	}
	for _, name := range wantFiles {
		path := filepath.Join(dir, name)
		payload, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("missing plot file %s: %v", name, err)
		}
		var plot PlotData
		if err := json.Unmarshal(payload, &plot); err != nil {
			t.Errorf("plot file %s is not valid JSON: %v", name, err)
		}
	}
}

func TestSaveAllSkipsMissingEvaluationPlots(t *testing.T) {
	vc := recordedCollector()
	dir := t.TempDir()
	if err := vc.SaveAll(dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "roc_curve.json")); !os.IsNotExist(err) {
		t.Error("expected roc_curve.json to be skipped without recorded data")
	}
}
