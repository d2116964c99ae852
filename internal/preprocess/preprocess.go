// Package preprocess turns uploaded image bytes into the fixed-shape tensor
// the classifier consumes.
//
// Images are stretched to Size x Size with bilinear interpolation (no aspect
// preservation, no cropping), mapped to RGB and scaled to [0,1] in
// channel-major order behind a batch dimension of 1. Alpha is ignored and
// grayscale is replicated across the three channels.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	Channels = 3
	Size     = 224

	// MaxPixels bounds width*height of an upload before it is decoded, the
	// same decompression-bomb limit PIL applies by default.
	MaxPixels = 89478485
)

// Shape is the tensor shape every Tensor has: (1, 3, 224, 224).
var Shape = []int64{1, Channels, Size, Size}

// Tensor is a normalized, channel-major image with a leading batch dimension.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// ImageDecodeError is returned when the upload is not a decodable image.
type ImageDecodeError struct {
	Err error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// Preprocess decodes raw and returns its normalized tensor.
func Preprocess(raw []byte) (*Tensor, string, error) {
	if len(raw) == 0 {
		return nil, "", &ImageDecodeError{Err: fmt.Errorf("empty upload")}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", &ImageDecodeError{Err: err}
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxPixels {
		return nil, format, &ImageDecodeError{Err: fmt.Errorf("image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, MaxPixels)}
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", &ImageDecodeError{Err: err}
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, format, &ImageDecodeError{Err: fmt.Errorf("image has zero size %dx%d", b.Dx(), b.Dy())}
	}

	return FromImage(img), format, nil
}

// FromImage resizes an already decoded image and normalizes it.
func FromImage(img image.Image) *Tensor {
	resized := resize.Resize(Size, Size, img, resize.Bilinear)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	data := make([]float32, Channels*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			i := y*width + x
			data[i] = float32(r) / 65535.0
			data[plane+i] = float32(g) / 65535.0
			data[2*plane+i] = float32(b) / 65535.0
		}
	}

	return &Tensor{
		Data:  data,
		Shape: []int64{1, Channels, int64(height), int64(width)},
	}
}
