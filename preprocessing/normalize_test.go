package preprocessing

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/anditra/captcha-solver-service/models"
)

func solidPNG(t *testing.T, width, height int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeFillResize(t *testing.T) {
	n, err := NewNormalizer(NormalizeConfig{Width: 8, Height: 4})
	if err != nil {
		t.Fatalf("NewNormalizer failed: %v", err)
	}

	// 5x3 source forced to exactly 8x4 regardless of aspect ratio.
	result, err := n.Preprocess(solidPNG(t, 5, 3, color.NRGBA{R: 255, A: 255}))
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if result.Width != 8 || result.Height != 4 || result.Channels != 3 {
		t.Fatalf("Unexpected dimensions: %+v", result)
	}
	if len(result.Data) != 8*4*3 {
		t.Fatalf("Expected %d values, got %d", 8*4*3, len(result.Data))
	}
}

func TestNormalizePlanarScaling(t *testing.T) {
	n, err := NewNormalizer(NormalizeConfig{Width: 4, Height: 2})
	if err != nil {
		t.Fatalf("NewNormalizer failed: %v", err)
	}

	result, err := n.Preprocess(solidPNG(t, 4, 2, color.NRGBA{R: 255, G: 0, B: 128, A: 255}))
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	channelSize := 4 * 2
	checkPlane := func(plane []float32, want float32, name string) {
		for i, v := range plane {
			if math.Abs(float64(v-want)) > 0.01 {
				t.Fatalf("%s plane[%d]: expected %f, got %f", name, i, want, v)
			}
		}
	}
	checkPlane(result.Data[:channelSize], 1.0, "red")
	checkPlane(result.Data[channelSize:2*channelSize], 0.0, "green")
	checkPlane(result.Data[2*channelSize:], 128.0/255.0, "blue")
}

func TestNormalizeMeanStd(t *testing.T) {
	n, err := NewNormalizer(NormalizeConfig{
		Width:     2,
		Height:    2,
		Normalize: true,
		Mean:      [3]float32{0.5, 0.5, 0.5},
		Std:       [3]float32{0.5, 0.5, 0.5},
	})
	if err != nil {
		t.Fatalf("NewNormalizer failed: %v", err)
	}

	result, err := n.Preprocess(solidPNG(t, 2, 2, color.NRGBA{R: 255, G: 0, B: 0, A: 255}))
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	channelSize := 4
	if got := result.Data[0]; math.Abs(float64(got-1.0)) > 0.02 {
		t.Errorf("Normalized red should be ~1.0, got %f", got)
	}
	if got := result.Data[channelSize]; math.Abs(float64(got+1.0)) > 0.02 {
		t.Errorf("Normalized green should be ~-1.0, got %f", got)
	}
}

func TestNormalizeRejectsZeroStd(t *testing.T) {
	_, err := NewNormalizer(NormalizeConfig{
		Normalize: true,
		Std:       [3]float32{1, 0, 1},
	})
	if err == nil {
		t.Error("Expected an error for a zero std channel")
	}
}

func TestNormalizeBadInput(t *testing.T) {
	n, err := NewNormalizer(NormalizeConfig{Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("NewNormalizer failed: %v", err)
	}
	var inputErr *models.InputError
	if _, err := n.Preprocess(nil); !errors.As(err, &inputErr) {
		t.Errorf("Expected InputError for empty buffer, got %v", err)
	}
	if _, err := n.Preprocess([]byte{1, 2, 3}); !errors.As(err, &inputErr) {
		t.Errorf("Expected InputError for garbage bytes, got %v", err)
	}
}
