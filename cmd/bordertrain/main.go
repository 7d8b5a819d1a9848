// Command bordertrain trains the border detection CNN on a folder of
// labeled images, keeps the best checkpoint by validation loss, and
// writes evaluation metrics and plot data for the sidecar plotter.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tsawler/bordernet/checkpoints"
	"github.com/tsawler/bordernet/config"
	"github.com/tsawler/bordernet/engine"
	"github.com/tsawler/bordernet/layers"
	"github.com/tsawler/bordernet/optimizer"
	"github.com/tsawler/bordernet/training"
	"github.com/tsawler/bordernet/vision/dataloader"
	"github.com/tsawler/bordernet/vision/dataset"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	dataDir := flag.String("data", "", "override data directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func printHostReport() {
	fmt.Println("=== Host ===")
	if info, err := host.Info(); err == nil {
		fmt.Printf("OS: %s %s (%s)\n", info.Platform, info.PlatformVersion, info.KernelArch)
	}
	if counts, err := cpu.Counts(true); err == nil {
		fmt.Printf("CPUs: %d logical, GOMAXPROCS: %d\n", counts, runtime.GOMAXPROCS(0))
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Printf("Memory: %.1f GB total, %.1f GB available\n",
			float64(vm.Total)/1e9, float64(vm.Available)/1e9)
	}
	fmt.Println()
}

func run(cfg config.Config) error {
	printHostReport()

	rng := rand.New(rand.NewSource(cfg.Seed))

	ds, err := dataset.NewBorderDataset(cfg.DataDir, cfg.AugmentNegatives)
	if err != nil {
		return err
	}
	fmt.Print(ds.Summary())

	train, val, test, err := ds.SplitTrainValTest(rng)
	if err != nil {
		return err
	}
	fmt.Printf("Split: %d train, %d val, %d test\n\n", train.Len(), val.Len(), test.Len())

	loaderCfg := dataloader.Config{
		BatchSize:       cfg.BatchSize,
		ImageSize:       cfg.ImageSize,
		CacheSize:       cfg.CacheSize,
		PrefetchWorkers: cfg.PrefetchWorkers,
	}
	trainCfg := loaderCfg
	trainCfg.Shuffle = true
	trainLoader, err := dataloader.New(train, trainCfg, rng)
	if err != nil {
		return fmt.Errorf("train loader: %w", err)
	}
	valLoader, err := dataloader.New(val, loaderCfg, nil)
	if err != nil {
		return fmt.Errorf("validation loader: %w", err)
	}
	testLoader, err := dataloader.New(test, loaderCfg, nil)
	if err != nil {
		return fmt.Errorf("test loader: %w", err)
	}

	spec, err := layers.BuildBorderNet(cfg.BatchSize, cfg.ImageSize, len(dataset.ClassNames), cfg.DropoutRate)
	if err != nil {
		return fmt.Errorf("failed to build model: %w", err)
	}
	fmt.Print(spec.Summary())

	eng, err := engine.NewModelEngine(spec, rng)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	optCfg := optimizer.DefaultAdamWConfig()
	optCfg.LearningRate = cfg.LearningRate
	optCfg.WeightDecay = cfg.WeightDecay
	opt, err := optimizer.NewAdamWOptimizer(optCfg, eng.Parameters(), eng.Gradients())
	if err != nil {
		return fmt.Errorf("failed to create optimizer: %w", err)
	}

	scheduler := training.NewReduceLROnPlateauScheduler(cfg.SchedulerFactor, cfg.SchedulerPatience, 1e-4, "min")
	collector := training.NewVisualizationCollector("bordernet")

	trainer, err := training.NewTrainer(eng, opt, scheduler, collector, training.TrainerConfig{
		Epochs:           cfg.Epochs,
		ProgressInterval: cfg.ProgressInterval,
		ClassNames:       dataset.ClassNames,
	})
	if err != nil {
		return err
	}
	trainer.OnBestModel = func(epoch int, valLoss float64) error {
		checkpoint, err := checkpoints.FromEngine(eng, checkpoints.TrainingState{
			Epoch:        epoch,
			LearningRate: opt.GetLearningRate(),
			BestValLoss:  valLoss,
		}, "best validation loss")
		if err != nil {
			return err
		}
		fmt.Printf("Saving checkpoint (val loss %.4f) to %s\n", valLoss, cfg.CheckpointPath)
		return checkpoints.Save(checkpoint, cfg.CheckpointPath)
	}

	start := time.Now()
	if err := trainer.Fit(trainLoader, valLoader, testLoader); err != nil {
		return err
	}
	fmt.Printf("\nTraining complete in %s. Best validation loss: %.4f\n",
		time.Since(start).Round(time.Second), trainer.BestValidationLoss())
	fmt.Printf("Train loader %s\n\n", trainLoader.CacheStats())

	// Evaluate the best checkpoint, not the final epoch's weights.
	checkpoint, err := checkpoints.Load(cfg.CheckpointPath)
	if err != nil {
		return fmt.Errorf("failed to reload best checkpoint: %w", err)
	}
	if err := checkpoints.Restore(checkpoint, eng); err != nil {
		return fmt.Errorf("failed to restore best checkpoint: %w", err)
	}
	fmt.Printf("Restored checkpoint from epoch %d for final evaluation\n\n", checkpoint.TrainingState.Epoch)

	result, err := trainer.Evaluate(testLoader)
	if err != nil {
		return fmt.Errorf("test evaluation failed: %w", err)
	}
	fmt.Printf("Test Loss: %.4f, Test Accuracy: %.4f\n\n", result.Loss, result.Accuracy)

	cm := training.NewConfusionMatrix(len(dataset.ClassNames))
	if err := cm.Update(result.Predictions, result.Labels); err != nil {
		return err
	}
	fmt.Println("Classification Report:")
	fmt.Println(cm.Report(dataset.ClassNames))
	fmt.Printf("Specificity: %.4f, NPV: %.4f\n\n", cm.Specificity(), cm.NPV())
	fmt.Println("Confusion Matrix:")
	fmt.Println(cm.String())
	collector.RecordConfusionMatrix(cm.Matrix, dataset.ClassNames)

	rocPoints, auc, err := training.ROCCurve(result.Scores, result.Labels)
	if err != nil {
		fmt.Printf("Skipping ROC curve: %v\n", err)
	} else {
		fmt.Printf("AUC-ROC: %.4f\n", auc)
		collector.RecordROCData(rocPoints, auc)
	}

	plotsDir := filepath.Join(cfg.OutputDir, "plots")
	if err := collector.SaveAll(plotsDir); err != nil {
		return err
	}
	fmt.Printf("Plot data written to %s\n", plotsDir)

	if err := writeHistory(trainer, result, auc, cfg.OutputDir); err != nil {
		return err
	}
	return nil
}

type runSummary struct {
	History      []training.EpochStats `json:"history"`
	TestLoss     float64               `json:"test_loss"`
	TestAccuracy float64               `json:"test_accuracy"`
	TestAUC      float64               `json:"test_auc"`
}

func writeHistory(trainer *training.Trainer, result *training.EvalResult, auc float64, outputDir string) error {
	summary := runSummary{
		History:      trainer.History(),
		TestLoss:     result.Loss,
		TestAccuracy: result.Accuracy,
		TestAUC:      auc,
	}
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run summary: %w", err)
	}
	path := filepath.Join(outputDir, "history.json")
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Run summary written to %s\n", path)
	return nil
}
