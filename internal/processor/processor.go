// Package processor resizes images held by the file store, e.g. user
// avatars requested as thumbnails.
package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// MaxDimension is the largest width or height a thumbnail may have
const MaxDimension = 2048

// Common errors
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidDimensions = errors.New("invalid thumbnail dimensions")
)

// Resizer resizes images
type Resizer interface {
	// Resize scales imgData to fit width x height. A zero dimension keeps the
	// aspect ratio. It returns the encoded image and its content type.
	Resize(imgData []byte, width, height int) ([]byte, string, error)
}

// Processor implements Resizer with the standard image codecs and
// x/image/draw scaling
type Processor struct {
	quality int
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{quality: 90}
}

// Resize scales the image. PNG input stays PNG; everything else becomes JPEG.
func (p *Processor) Resize(imgData []byte, width, height int) ([]byte, string, error) {
	if width < 0 || height < 0 || width > MaxDimension || height > MaxDimension || (width == 0 && height == 0) {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	contentType, err := DetectImageFormat(imgData)
	if err != nil {
		return nil, "", err
	}

	// Decode the source image
	srcImg, _, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := srcImg.Bounds()
	newWidth, newHeight := CalculateResizeDimensions(bounds.Dx(), bounds.Dy(), width, height)

	dstImg := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))

	// CatmullRom gives high-quality resampling
	draw.CatmullRom.Scale(dstImg, dstImg.Bounds(), srcImg, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if contentType == "image/png" {
		err = png.Encode(&buf, dstImg)
	} else {
		contentType = "image/jpeg"
		err = jpeg.Encode(&buf, dstImg, &jpeg.Options{Quality: p.quality})
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode %dx%d image: %w", newWidth, newHeight, err)
	}

	return buf.Bytes(), contentType, nil
}

// DetectImageFormat detects the image format and returns the content type
func DetectImageFormat(imgData []byte) (string, error) {
	if len(imgData) < 12 {
		return "", fmt.Errorf("%w: image data too small", ErrUnsupportedFormat)
	}

	// JPEG signature
	if bytes.Equal(imgData[0:2], []byte{0xFF, 0xD8}) {
		return "image/jpeg", nil
	}

	// PNG signature
	if bytes.Equal(imgData[0:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png", nil
	}

	return "", ErrUnsupportedFormat
}

// CalculateResizeDimensions calculates new dimensions preserving aspect ratio
// when only one target dimension is given
func CalculateResizeDimensions(origWidth, origHeight, targetWidth, targetHeight int) (newWidth, newHeight int) {
	if origWidth <= 0 || origHeight <= 0 {
		return targetWidth, targetHeight
	}

	// Both target dimensions are specified
	if targetWidth > 0 && targetHeight > 0 {
		return targetWidth, targetHeight
	}

	// Only width: keep aspect ratio
	if targetWidth > 0 {
		newHeight = int(float64(targetWidth) * float64(origHeight) / float64(origWidth))
		return targetWidth, max(newHeight, 1)
	}

	// Only height: keep aspect ratio
	if targetHeight > 0 {
		newWidth = int(float64(targetHeight) * float64(origWidth) / float64(origHeight))
		return max(newWidth, 1), targetHeight
	}

	return origWidth, origHeight
}
