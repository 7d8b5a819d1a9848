package training

import (
	"fmt"
	"sort"
	"strings"
)

// ConfusionMatrix accumulates classification results. Rows are true
// classes, columns are predicted classes.
type ConfusionMatrix struct {
	NumClasses   int
	Matrix       [][]int
	TotalSamples int
}

// NewConfusionMatrix creates an empty confusion matrix.
func NewConfusionMatrix(numClasses int) *ConfusionMatrix {
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}
	return &ConfusionMatrix{
		NumClasses: numClasses,
		Matrix:     matrix,
	}
}

// Reset clears all accumulated counts.
func (cm *ConfusionMatrix) Reset() {
	for i := range cm.Matrix {
		for j := range cm.Matrix[i] {
			cm.Matrix[i][j] = 0
		}
	}
	cm.TotalSamples = 0
}

// Update adds a batch of predictions against true labels.
func (cm *ConfusionMatrix) Update(predictions, labels []int32) error {
	if len(predictions) != len(labels) {
		return fmt.Errorf("prediction count %d does not match label count %d", len(predictions), len(labels))
	}
	for i := range predictions {
		p, l := int(predictions[i]), int(labels[i])
		if p < 0 || p >= cm.NumClasses || l < 0 || l >= cm.NumClasses {
			return fmt.Errorf("class out of range: predicted %d, true %d", p, l)
		}
		cm.Matrix[l][p]++
		cm.TotalSamples++
	}
	return nil
}

// Accuracy returns the overall fraction of correct predictions.
func (cm *ConfusionMatrix) Accuracy() float64 {
	if cm.TotalSamples == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < cm.NumClasses; i++ {
		correct += cm.Matrix[i][i]
	}
	return float64(correct) / float64(cm.TotalSamples)
}

// Precision returns the precision for a single class.
func (cm *ConfusionMatrix) Precision(class int) float64 {
	predicted := 0
	for i := 0; i < cm.NumClasses; i++ {
		predicted += cm.Matrix[i][class]
	}
	if predicted == 0 {
		return 0
	}
	return float64(cm.Matrix[class][class]) / float64(predicted)
}

// Recall returns the recall for a single class.
func (cm *ConfusionMatrix) Recall(class int) float64 {
	actual := 0
	for j := 0; j < cm.NumClasses; j++ {
		actual += cm.Matrix[class][j]
	}
	if actual == 0 {
		return 0
	}
	return float64(cm.Matrix[class][class]) / float64(actual)
}

// F1 returns the harmonic mean of precision and recall for a class.
func (cm *ConfusionMatrix) F1(class int) float64 {
	p := cm.Precision(class)
	r := cm.Recall(class)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Support returns the number of true samples for a class.
func (cm *ConfusionMatrix) Support(class int) int {
	total := 0
	for j := 0; j < cm.NumClasses; j++ {
		total += cm.Matrix[class][j]
	}
	return total
}

// Specificity returns the binary true negative rate, treating class 1
// as positive.
func (cm *ConfusionMatrix) Specificity() float64 {
	if cm.NumClasses != 2 {
		return 0
	}
	tn := cm.Matrix[0][0]
	fp := cm.Matrix[0][1]
	if tn+fp == 0 {
		return 0
	}
	return float64(tn) / float64(tn+fp)
}

// NPV returns the binary negative predictive value, treating class 1
// as positive.
func (cm *ConfusionMatrix) NPV() float64 {
	if cm.NumClasses != 2 {
		return 0
	}
	tn := cm.Matrix[0][0]
	fn := cm.Matrix[1][0]
	if tn+fn == 0 {
		return 0
	}
	return float64(tn) / float64(tn+fn)
}

// Report formats a per-class classification report.
func (cm *ConfusionMatrix) Report(classNames []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-14s %9s %9s %9s %9s\n", "", "precision", "recall", "f1-score", "support"))
	for c := 0; c < cm.NumClasses; c++ {
		name := fmt.Sprintf("class %d", c)
		if c < len(classNames) {
			name = classNames[c]
		}
		sb.WriteString(fmt.Sprintf("%-14s %9.4f %9.4f %9.4f %9d\n",
			name, cm.Precision(c), cm.Recall(c), cm.F1(c), cm.Support(c)))
	}
	sb.WriteString(fmt.Sprintf("\n%-14s %29.4f %9d\n", "accuracy", cm.Accuracy(), cm.TotalSamples))
	return sb.String()
}

// String formats the raw count matrix.
func (cm *ConfusionMatrix) String() string {
	var sb strings.Builder
	for i := 0; i < cm.NumClasses; i++ {
		for j := 0; j < cm.NumClasses; j++ {
			sb.WriteString(fmt.Sprintf("%6d", cm.Matrix[i][j]))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ROCPoint is a point on the ROC curve.
type ROCPoint struct {
	Threshold float32
	TPR       float64
	FPR       float64
}

// ROCCurve computes the ROC curve and its AUC for binary classification
// from positive-class scores. Returns an error when only one class is
// present, since the curve is undefined without both.
func ROCCurve(scores []float32, labels []int32) ([]ROCPoint, float64, error) {
	if len(scores) != len(labels) {
		return nil, 0, fmt.Errorf("score count %d does not match label count %d", len(scores), len(labels))
	}
	if len(scores) == 0 {
		return nil, 0, fmt.Errorf("cannot compute ROC curve on empty data")
	}

	type predLabel struct {
		score float32
		label int32
	}
	pairs := make([]predLabel, len(scores))
	for i := range scores {
		pairs[i] = predLabel{score: scores[i], label: labels[i]}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})

	totalPos, totalNeg := 0, 0
	for _, pair := range pairs {
		if pair.label == 1 {
			totalPos++
		} else {
			totalNeg++
		}
	}
	if totalPos == 0 || totalNeg == 0 {
		return nil, 0, fmt.Errorf("ROC curve requires both classes, got %d positives and %d negatives", totalPos, totalNeg)
	}

	points := make([]ROCPoint, 0, len(pairs)+1)
	points = append(points, ROCPoint{Threshold: pairs[0].score, TPR: 0, FPR: 0})

	// Trapezoidal AUC, sweeping the threshold from high to low.
	auc := 0.0
	tp, fp := 0, 0
	prevTPR, prevFPR := 0.0, 0.0
	for _, pair := range pairs {
		if pair.label == 1 {
			tp++
		} else {
			fp++
		}
		tpr := float64(tp) / float64(totalPos)
		fpr := float64(fp) / float64(totalNeg)
		auc += (fpr - prevFPR) * (tpr + prevTPR) / 2.0
		points = append(points, ROCPoint{Threshold: pair.score, TPR: tpr, FPR: fpr})
		prevTPR = tpr
		prevFPR = fpr
	}

	return points, auc, nil
}
