// Package dataset indexes labeled border/no-border image folders and
// splits them into train, validation, and test subsets.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Class folder names expected under the data directory.
const (
	BordersDir   = "borders"
	NoBordersDir = "no_borders"
)

// SupportedExtensions lists the image formats the pipeline can decode.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether a filename has a decodable extension.
func IsSupportedImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// CheckDataDir verifies the expected layout: dataDir exists and holds
// borders/ and no_borders/ subdirectories, each with at least one
// supported image. Each failure mode gets its own error message so the
// user knows exactly what to fix.
func CheckDataDir(dataDir string) error {
	info, err := os.Stat(dataDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("data directory %s does not exist\n%s", dataDir, SetupInstructions(dataDir))
	}
	if err != nil {
		return fmt.Errorf("cannot access data directory %s: %w", dataDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dataDir)
	}

	for _, class := range []string{BordersDir, NoBordersDir} {
		classDir := filepath.Join(dataDir, class)
		info, err := os.Stat(classDir)
		if os.IsNotExist(err) {
			return fmt.Errorf("class directory %s is missing\n%s", classDir, SetupInstructions(dataDir))
		}
		if err != nil {
			return fmt.Errorf("cannot access class directory %s: %w", classDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", classDir)
		}

		count, err := countImages(classDir)
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("class directory %s contains no supported images (%s)",
				classDir, strings.Join(SupportedExtensions, ", "))
		}
	}
	return nil
}

func countImages(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("cannot read directory %s: %w", dir, err)
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && IsSupportedImage(entry.Name()) {
			count++
		}
	}
	return count, nil
}

// SetupInstructions describes the directory layout the pipeline needs.
func SetupInstructions(dataDir string) string {
	return fmt.Sprintf(`Expected directory layout:
  %s/
    %s/       images that contain borders
    %s/    images without borders
Supported formats: %s`,
		dataDir, BordersDir, NoBordersDir, strings.Join(SupportedExtensions, ", "))
}
