// Package dataloader batches preprocessed samples for training and
// evaluation. A training loader reshuffles every epoch; evaluation
// loaders keep a fixed order so metrics line up with sample indices.
package dataloader

import (
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/tsawler/bordernet/vision/dataset"
	"github.com/tsawler/bordernet/vision/preprocessing"
)

// Config controls batching behavior.
type Config struct {
	BatchSize int

	// Shuffle reshuffles sample order on every Reset.
	Shuffle bool

	// ImageSize is the square resolution samples are resized to.
	ImageSize int

	// CacheSize is the maximum number of preprocessed samples kept in
	// memory. Zero disables caching.
	CacheSize int

	// PrefetchWorkers sets how many goroutines decode a batch
	// concurrently. Zero loads samples sequentially.
	PrefetchWorkers int
}

// DefaultConfig returns the standard training configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize: 32,
		Shuffle:   true,
		ImageSize: 224,
		CacheSize: 256,
	}
}

// Loader serves batches from an indexed dataset. Any image that fails
// to decode aborts the batch with an error rather than being skipped,
// so a corrupt dataset is caught instead of silently shrinking.
type Loader struct {
	samples []dataset.Sample
	config  Config
	rng     *rand.Rand
	cache   *SampleCache

	order  []int
	cursor int
}

// New creates a loader over the dataset's samples. The random source
// is required when shuffling is enabled.
func New(ds *dataset.BorderDataset, config Config, rng *rand.Rand) (*Loader, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("dataset cannot be nil or empty")
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.ImageSize <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %d", config.ImageSize)
	}
	if config.Shuffle && rng == nil {
		return nil, fmt.Errorf("shuffling requires a random source")
	}

	loader := &Loader{
		samples: ds.Samples,
		config:  config,
		rng:     rng,
		cache:   NewSampleCache(config.CacheSize),
		order:   make([]int, ds.Len()),
	}
	for i := range loader.order {
		loader.order[i] = i
	}
	loader.Reset()
	return loader, nil
}

// NumSamples returns the total sample count.
func (l *Loader) NumSamples() int {
	return len(l.samples)
}

// NumBatches returns the number of batches per epoch, counting the
// final partial batch.
func (l *Loader) NumBatches() int {
	return (len(l.samples) + l.config.BatchSize - 1) / l.config.BatchSize
}

// SampleShape returns the per-sample tensor shape.
func (l *Loader) SampleShape() []int {
	return []int{3, l.config.ImageSize, l.config.ImageSize}
}

// CacheStats returns sample cache statistics.
func (l *Loader) CacheStats() CacheStats {
	return l.cache.Stats()
}

// Reset rewinds to the first batch, reshuffling when configured.
func (l *Loader) Reset() {
	l.cursor = 0
	if l.config.Shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// NextBatch loads the next batch of samples. Returns the flattened
// NCHW data, labels, and actual batch size.
func (l *Loader) NextBatch() ([]float32, []int32, int, error) {
	if l.cursor >= len(l.samples) {
		return nil, nil, 0, fmt.Errorf("loader exhausted after %d batches", l.NumBatches())
	}

	end := l.cursor + l.config.BatchSize
	if end > len(l.samples) {
		end = len(l.samples)
	}
	indices := l.order[l.cursor:end]
	l.cursor = end

	batchSize := len(indices)
	sampleLen := 3 * l.config.ImageSize * l.config.ImageSize
	data := make([]float32, batchSize*sampleLen)
	labels := make([]int32, batchSize)

	load := func(slot, sampleIdx int) error {
		sample := l.samples[sampleIdx]
		labels[slot] = sample.Label
		loaded, err := l.loadSample(sample)
		if err != nil {
			return err
		}
		copy(data[slot*sampleLen:(slot+1)*sampleLen], loaded)
		return nil
	}

	if l.config.PrefetchWorkers > 0 {
		var group errgroup.Group
		group.SetLimit(l.config.PrefetchWorkers)
		for slot, sampleIdx := range indices {
			slot, sampleIdx := slot, sampleIdx
			group.Go(func() error {
				return load(slot, sampleIdx)
			})
		}
		if err := group.Wait(); err != nil {
			return nil, nil, 0, err
		}
	} else {
		for slot, sampleIdx := range indices {
			if err := load(slot, sampleIdx); err != nil {
				return nil, nil, 0, err
			}
		}
	}

	return data, labels, batchSize, nil
}

func (l *Loader) loadSample(sample dataset.Sample) ([]float32, error) {
	key := Key(sample.Path, sample.Angle)
	if data, ok := l.cache.Get(key); ok {
		return data, nil
	}

	data, err := preprocessing.Process(sample.Path, sample.Angle, preprocessing.Options{
		TargetSize: l.config.ImageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sample: %w", err)
	}
	l.cache.Put(key, data)
	return data, nil
}
