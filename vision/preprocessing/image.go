// Package preprocessing turns image files into normalized CHW float32
// tensors ready for the model.
package preprocessing

import (
	"fmt"
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageNet channel statistics used for normalization.
var (
	NormMean = [3]float32{0.485, 0.456, 0.406}
	NormStd  = [3]float32{0.229, 0.224, 0.225}
)

// Options controls image preprocessing.
type Options struct {
	// TargetSize is the square output resolution in pixels.
	TargetSize int
}

// DefaultOptions returns the standard 224x224 pipeline.
func DefaultOptions() Options {
	return Options{TargetSize: 224}
}

// LoadImage decodes an image file. The format is detected from the
// stream, not the extension.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// Rotate returns the image rotated counterclockwise by a quarter-turn
// multiple. Angle must be 0, 90, 180, or 270 degrees.
func Rotate(img image.Image, angle int) (image.Image, error) {
	switch angle {
	case 0:
		return img, nil
	case 90, 180, 270:
	default:
		return nil, fmt.Errorf("rotation angle must be a multiple of 90 in [0, 270], got %d", angle)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var out *image.RGBA
	if angle == 180 {
		out = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		out = image.NewRGBA(image.Rect(0, 0, h, w))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			switch angle {
			case 90:
				out.Set(y, w-1-x, c)
			case 180:
				out.Set(w-1-x, h-1-y, c)
			case 270:
				out.Set(h-1-y, x, c)
			}
		}
	}
	return out, nil
}

// Resize scales the image to a square of the given size using bilinear
// interpolation.
func Resize(img image.Image, size int) (image.Image, error) {
	if size <= 0 {
		return nil, fmt.Errorf("target size must be positive, got %d", size)
	}
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out, nil
}

// ToTensor converts an image to CHW float32 data normalized with the
// ImageNet mean and standard deviation. Alpha is discarded.
func ToTensor(img image.Image) []float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := w * h
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := y*w + x
			data[idx] = (float32(r)/65535.0 - NormMean[0]) / NormStd[0]
			data[plane+idx] = (float32(g)/65535.0 - NormMean[1]) / NormStd[1]
			data[2*plane+idx] = (float32(b)/65535.0 - NormMean[2]) / NormStd[2]
		}
	}
	return data
}

// Process runs the full pipeline for one sample: decode, rotate,
// resize, and normalize to CHW float32.
func Process(path string, angle int, opts Options) ([]float32, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	rotated, err := Rotate(img, angle)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", path, err)
	}
	resized, err := Resize(rotated, opts.TargetSize)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", path, err)
	}
	return ToTensor(resized), nil
}
