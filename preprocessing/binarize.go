package preprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/anditra/captcha-solver-service/models"
)

const (
	DefaultBinarizeWidth     = 200
	DefaultBinarizeHeight    = 50
	DefaultBinarizeThreshold = 254
)

// BinarizeConfig configures the captcha preprocessor. Threshold is the
// alpha cutoff: a pixel is "ink" when its alpha is strictly below it.
// Background fills padding when the source is smaller than the target box;
// it should be fully opaque so padding reads as "off".
type BinarizeConfig struct {
	Width      int
	Height     int
	Channels   int
	Threshold  uint8
	Background color.Color
}

func (c BinarizeConfig) withDefaults() BinarizeConfig {
	if c.Width == 0 {
		c.Width = DefaultBinarizeWidth
	}
	if c.Height == 0 {
		c.Height = DefaultBinarizeHeight
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultBinarizeThreshold
	}
	if c.Background == nil {
		c.Background = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return c
}

// Binarizer normalizes a captcha image to a fixed canvas and binarizes it
// on alpha presence. Oversized sources are center-cropped, undersized ones
// center-padded with the background color; the extra pixel of an odd
// deficit lands on the bottom/right edge.
type Binarizer struct {
	cfg BinarizeConfig
}

func NewBinarizer(cfg BinarizeConfig) (*Binarizer, error) {
	cfg = cfg.withDefaults()
	switch cfg.Channels {
	case 1, 3, 4:
	default:
		return nil, fmt.Errorf("binarizer supports 1, 3 or 4 channels, got %d", cfg.Channels)
	}
	return &Binarizer{cfg: cfg}, nil
}

// Preprocess decodes image bytes and produces a flat width*height*channels
// buffer of 0/1 values in interleaved (channel-last) order. The binarized
// value is replicated across all configured channels.
func (b *Binarizer) Preprocess(imageBytes []byte) (*models.PreprocessResult, error) {
	if len(imageBytes) == 0 {
		return nil, &models.InputError{Reason: "empty image buffer"}
	}
	decoded, err := imaging.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, &models.InputError{Reason: "undecodable image", Cause: err}
	}
	bounds := decoded.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, &models.InputError{
			Reason: fmt.Sprintf("image has no readable dimensions (%dx%d)", bounds.Dx(), bounds.Dy()),
		}
	}

	img := imaging.Clone(decoded)
	if img.Bounds().Dx() > b.cfg.Width || img.Bounds().Dy() > b.cfg.Height {
		cropW := min(img.Bounds().Dx(), b.cfg.Width)
		cropH := min(img.Bounds().Dy(), b.cfg.Height)
		img = imaging.CropCenter(img, cropW, cropH)
	}
	if img.Bounds().Dx() < b.cfg.Width || img.Bounds().Dy() < b.cfg.Height {
		// Paste at the floored center so the extra pixel of an odd deficit
		// pads the bottom/right edge. PasteCenter rounds the origin from
		// the canvas midpoint instead, which can shift it one pixel left.
		origin := image.Pt(
			(b.cfg.Width-img.Bounds().Dx())/2,
			(b.cfg.Height-img.Bounds().Dy())/2,
		)
		canvas := imaging.New(b.cfg.Width, b.cfg.Height, b.cfg.Background)
		img = imaging.Paste(canvas, img, origin)
	}

	data := make([]float32, b.cfg.Width*b.cfg.Height*b.cfg.Channels)
	for y := 0; y < b.cfg.Height; y++ {
		for x := 0; x < b.cfg.Width; x++ {
			var v float32
			if img.NRGBAAt(x, y).A < b.cfg.Threshold {
				v = 1
			}
			base := (y*b.cfg.Width + x) * b.cfg.Channels
			for c := 0; c < b.cfg.Channels; c++ {
				data[base+c] = v
			}
		}
	}

	return &models.PreprocessResult{
		Data:     data,
		Width:    b.cfg.Width,
		Height:   b.cfg.Height,
		Channels: b.cfg.Channels,
	}, nil
}
