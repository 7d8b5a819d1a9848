package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Class labels. Borders are class 0, matching the positive class the
// detector is trained to find.
const (
	LabelBorders   int32 = 0
	LabelNoBorders int32 = 1
)

// ClassNames maps labels to human-readable names.
var ClassNames = []string{"borders", "no_borders"}

// Sample is one training example: an image file plus the quarter-turn
// rotation to apply when loading it. Rotations of the same file count
// as distinct samples.
type Sample struct {
	Path  string
	Label int32
	Angle int // degrees: 0, 90, 180, or 270
}

// BorderDataset holds the indexed samples for border classification.
// Indexing records paths only; no image is decoded until load time.
type BorderDataset struct {
	Samples []Sample

	borderFiles   int
	noBorderFiles int
	augmented     bool
}

var rotationAngles = []int{0, 90, 180, 270}

// NewBorderDataset indexes dataDir. Border images are expanded four
// ways via quarter-turn rotations; no-border images are expanded the
// same way only when augmentNegatives is set. Files are sorted so the
// index order is deterministic.
func NewBorderDataset(dataDir string, augmentNegatives bool) (*BorderDataset, error) {
	if err := CheckDataDir(dataDir); err != nil {
		return nil, err
	}

	borderPaths, err := listImages(filepath.Join(dataDir, BordersDir))
	if err != nil {
		return nil, err
	}
	noBorderPaths, err := listImages(filepath.Join(dataDir, NoBordersDir))
	if err != nil {
		return nil, err
	}

	ds := &BorderDataset{
		borderFiles:   len(borderPaths),
		noBorderFiles: len(noBorderPaths),
		augmented:     augmentNegatives,
	}

	for _, path := range borderPaths {
		for _, angle := range rotationAngles {
			ds.Samples = append(ds.Samples, Sample{Path: path, Label: LabelBorders, Angle: angle})
		}
	}
	for _, path := range noBorderPaths {
		if augmentNegatives {
			for _, angle := range rotationAngles {
				ds.Samples = append(ds.Samples, Sample{Path: path, Label: LabelNoBorders, Angle: angle})
			}
		} else {
			ds.Samples = append(ds.Samples, Sample{Path: path, Label: LabelNoBorders, Angle: 0})
		}
	}

	return ds, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && IsSupportedImage(entry.Name()) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Len returns the number of samples after augmentation.
func (ds *BorderDataset) Len() int {
	return len(ds.Samples)
}

// ClassDistribution returns the sample count per class name.
func (ds *BorderDataset) ClassDistribution() map[string]int {
	dist := make(map[string]int)
	for _, s := range ds.Samples {
		dist[ClassNames[s.Label]]++
	}
	return dist
}

// Summary describes the dataset composition.
func (ds *BorderDataset) Summary() string {
	var sb strings.Builder
	dist := ds.ClassDistribution()
	sb.WriteString(fmt.Sprintf("BorderDataset: %d samples\n", ds.Len()))
	sb.WriteString(fmt.Sprintf("  borders:    %d files -> %d samples (4x rotation)\n", ds.borderFiles, dist["borders"]))
	if ds.augmented {
		sb.WriteString(fmt.Sprintf("  no_borders: %d files -> %d samples (4x rotation)\n", ds.noBorderFiles, dist["no_borders"]))
	} else {
		sb.WriteString(fmt.Sprintf("  no_borders: %d files -> %d samples\n", ds.noBorderFiles, dist["no_borders"]))
	}
	return sb.String()
}

// subset builds a dataset view from selected sample indices.
func (ds *BorderDataset) subset(indices []int) *BorderDataset {
	sub := &BorderDataset{
		borderFiles:   ds.borderFiles,
		noBorderFiles: ds.noBorderFiles,
		augmented:     ds.augmented,
	}
	for _, i := range indices {
		sub.Samples = append(sub.Samples, ds.Samples[i])
	}
	return sub
}

// SplitTrainValTest shuffles the samples with the supplied source and
// splits 70/15/15. Train and validation sizes are floored; the test
// set takes the remainder, so every sample lands in exactly one split.
func (ds *BorderDataset) SplitTrainValTest(rng *rand.Rand) (train, val, test *BorderDataset, err error) {
	n := ds.Len()
	if n < 3 {
		return nil, nil, nil, fmt.Errorf("need at least 3 samples to split, have %d", n)
	}
	if rng == nil {
		return nil, nil, nil, fmt.Errorf("random source cannot be nil")
	}

	indices := rng.Perm(n)
	trainSize := int(float64(n) * 0.70)
	valSize := int(float64(n) * 0.15)

	train = ds.subset(indices[:trainSize])
	val = ds.subset(indices[trainSize : trainSize+valSize])
	test = ds.subset(indices[trainSize+valSize:])
	return train, val, test, nil
}
