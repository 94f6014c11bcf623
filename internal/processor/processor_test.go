package processor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func createTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestResize(t *testing.T) {
	p := NewProcessor()

	t.Run("PNGStaysPNG", func(t *testing.T) {
		out, contentType, err := p.Resize(createTestPNG(t, 200, 100), 50, 0)
		require.NoError(t, err)
		assert.Equal(t, "image/png", contentType)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, 50, cfg.Width)
		assert.Equal(t, 25, cfg.Height)
	})

	t.Run("JPEG", func(t *testing.T) {
		out, contentType, err := p.Resize(createTestJPEG(t, 100, 100), 32, 32)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", contentType)

		cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 32, cfg.Width)
		assert.Equal(t, 32, cfg.Height)
	})

	t.Run("NotAnImage", func(t *testing.T) {
		_, _, err := p.Resize([]byte("definitely not an image"), 10, 10)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("InvalidDimensions", func(t *testing.T) {
		img := createTestPNG(t, 10, 10)
		for _, dims := range [][2]int{{0, 0}, {-1, 10}, {MaxDimension + 1, 10}} {
			_, _, err := p.Resize(img, dims[0], dims[1])
			assert.ErrorIs(t, err, ErrInvalidDimensions, "%v", dims)
		}
	})
}

func TestDetectImageFormat(t *testing.T) {
	format, err := DetectImageFormat(createTestPNG(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, "image/png", format)

	format, err = DetectImageFormat(createTestJPEG(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", format)

	_, err = DetectImageFormat([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCalculateResizeDimensions(t *testing.T) {
	w, h := CalculateResizeDimensions(800, 600, 400, 0)
	assert.Equal(t, 400, w)
	assert.Equal(t, 300, h)

	w, h = CalculateResizeDimensions(800, 600, 0, 300)
	assert.Equal(t, 400, w)
	assert.Equal(t, 300, h)

	w, h = CalculateResizeDimensions(800, 600, 100, 100)
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)

	w, h = CalculateResizeDimensions(800, 600, 0, 0)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}
