package preprocessing

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeTestPNG creates a 4x2 image with a red top-left pixel and white
// everywhere else.
func writeTestPNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.White)
		}
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	path := filepath.Join(dir, "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return path
}

func TestLoadImage(t *testing.T) {
	path := writeTestPNG(t, t.TempDir())
	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 2 {
		t.Errorf("expected 4x2 image, got %v", img.Bounds())
	}
}

func TestLoadImageMissingFile(t *testing.T) {
	if _, err := LoadImage(filepath.Join(t.TempDir(), "absent.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadImageCorruptData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(path, []byte("not image bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadImage(path); err == nil {
		t.Error("expected error for corrupt image data")
	}
}

func redAt(t *testing.T, img image.Image, x, y int) bool {
	t.Helper()
	r, g, b, _ := img.At(x, y).RGBA()
	return r > 0xf000 && g < 0x1000 && b < 0x1000
}

func TestRotateQuarterTurns(t *testing.T) {
	path := writeTestPNG(t, t.TempDir())
	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	tests := []struct {
		angle        int
		wantW, wantH int
		redX, redY   int
	}{
		{0, 4, 2, 0, 0},
		{90, 2, 4, 0, 3},
		{180, 4, 2, 3, 1},
		{270, 2, 4, 1, 0},
	}
	for _, tt := range tests {
		rotated, err := Rotate(img, tt.angle)
		if err != nil {
			t.Fatalf("rotate %d failed: %v", tt.angle, err)
		}
		bounds := rotated.Bounds()
		if bounds.Dx() != tt.wantW || bounds.Dy() != tt.wantH {
			t.Errorf("angle %d: expected %dx%d, got %dx%d",
				tt.angle, tt.wantW, tt.wantH, bounds.Dx(), bounds.Dy())
		}
		if !redAt(t, rotated, tt.redX, tt.redY) {
			t.Errorf("angle %d: red pixel not at (%d,%d)", tt.angle, tt.redX, tt.redY)
		}
	}
}

func TestRotateInvalidAngle(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for _, angle := range []int{45, -90, 360, 91} {
		if _, err := Rotate(img, angle); err == nil {
			t.Errorf("expected error for angle %d", angle)
		}
	}
}

func TestResize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 6))
	resized, err := Resize(img, 224)
	if err != nil {
		t.Fatalf("resize failed: %v", err)
	}
	if resized.Bounds().Dx() != 224 || resized.Bounds().Dy() != 224 {
		t.Errorf("expected 224x224, got %v", resized.Bounds())
	}
	if _, err := Resize(img, 0); err == nil {
		t.Error("expected error for zero target size")
	}
}

func TestToTensorNormalization(t *testing.T) {
	// A uniform mid-gray image should produce constant values equal to
	// (0.5 - mean) / std per channel.
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, gray)
		}
	}

	data := ToTensor(img)
	if len(data) != 3*4 {
		t.Fatalf("expected 12 values, got %d", len(data))
	}

	v := float32(128) / 255.0
	for c := 0; c < 3; c++ {
		want := (v - NormMean[c]) / NormStd[c]
		for i := 0; i < 4; i++ {
			got := data[c*4+i]
			if math.Abs(float64(got-want)) > 1e-3 {
				t.Errorf("channel %d: expected %g, got %g", c, want, got)
			}
		}
	}
}

func TestProcessFullPipeline(t *testing.T) {
	path := writeTestPNG(t, t.TempDir())
	opts := Options{TargetSize: 16}

	data, err := Process(path, 90, opts)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(data) != 3*16*16 {
		t.Errorf("expected %d values, got %d", 3*16*16, len(data))
	}
	for _, v := range data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatal("pipeline produced non-finite values")
		}
	}
}

func TestProcessMissingFile(t *testing.T) {
	if _, err := Process(filepath.Join(t.TempDir(), "no.png"), 0, DefaultOptions()); err == nil {
		t.Error("expected error for missing file")
	}
}
