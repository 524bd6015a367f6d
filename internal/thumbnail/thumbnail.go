// Package thumbnail renders scaled previews of stored images, honouring the
// EXIF orientation written by cameras.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Size limits in pixels for the longest edge.
const (
	DefaultSize = 256
	MaxSize     = 1024
)

// MaxPixels bounds the decoded area of a source image.
const MaxPixels = 64 << 20

var (
	// ErrUnsupported is returned for content that cannot be decoded as an image.
	ErrUnsupported = errors.New("unsupported image format")
	// ErrTooLarge is returned when the declared dimensions exceed MaxPixels.
	ErrTooLarge = errors.New("image dimensions too large")
)

// Render decodes data, applies its EXIF orientation and scales it to fit a
// size x size box. The result is PNG encoded. Images smaller than the box are
// not enlarged.
func Render(data []byte, size int) ([]byte, error) {
	if size <= 0 || size > MaxSize {
		return nil, fmt.Errorf("thumbnail size %d out of range 1..%d", size, MaxSize)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}

	angle, flipped := orientationToAngleAndFlip(orientation(data))
	img = rotate(img, angle, flipped)

	b := img.Bounds()
	if b.Dx() > size || b.Dy() > size {
		w, h := scaleToFit(b.Dx(), b.Dy(), size, size)
		img = imaging.Resize(img, w, h, imaging.Linear)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// orientation reads the EXIF orientation tag, 1 when absent or unreadable.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

const (
	noRotate  = 0
	rotate180 = 180
	left90    = 90
	right90   = 270
)

// orientationToAngleAndFlip maps an EXIF orientation to a counter-clockwise
// rotation followed by an optional horizontal flip.
func orientationToAngleAndFlip(o int) (float64, bool) {
	switch o {
	case 2:
		return noRotate, true
	case 3:
		return rotate180, false
	case 4:
		return rotate180, true
	case 5:
		return right90, true
	case 6:
		return right90, false
	case 7:
		return left90, true
	case 8:
		return left90, false
	default:
		return noRotate, false
	}
}

func rotate(img image.Image, angle float64, flipped bool) image.Image {
	if angle != noRotate {
		img = imaging.Rotate(img, angle, color.Black)
	}
	if flipped {
		img = imaging.FlipH(img)
	}
	return img
}

func scaleToFit(srcW, srcH, dstW, dstH int) (int, int) {
	ratio := float64(srcW) / float64(srcH)
	w := int(math.Round(float64(dstH) * ratio))
	h := dstH
	if w > dstW {
		w = dstW
		h = int(math.Round(float64(dstW) / ratio))
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
