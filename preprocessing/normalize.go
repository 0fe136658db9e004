package preprocessing

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/anditra/captcha-solver-service/models"
)

const (
	DefaultNormalizeWidth  = 640
	DefaultNormalizeHeight = 640

	normalizeChannels = 3
)

// NormalizeConfig configures the detector preprocessor. Mean and Std are
// per-channel (RGB) and only consulted when Normalize is set.
type NormalizeConfig struct {
	Width     int
	Height    int
	Normalize bool
	Mean      [3]float32
	Std       [3]float32
}

func (c NormalizeConfig) withDefaults() NormalizeConfig {
	if c.Width == 0 {
		c.Width = DefaultNormalizeWidth
	}
	if c.Height == 0 {
		c.Height = DefaultNormalizeHeight
	}
	if c.Std == [3]float32{} {
		c.Std = [3]float32{1, 1, 1}
	}
	return c
}

// Normalizer fill-resizes an image to exactly width×height (aspect mismatch
// is absorbed by distortion, not cropping), drops alpha and emits a planar
// (channel-first) float buffer scaled to [0,1], optionally normalized with
// per-channel mean and std.
type Normalizer struct {
	cfg NormalizeConfig
}

func NewNormalizer(cfg NormalizeConfig) (*Normalizer, error) {
	cfg = cfg.withDefaults()
	if cfg.Normalize {
		for i, s := range cfg.Std {
			if s == 0 {
				return nil, fmt.Errorf("std value for channel %d must be non-zero", i)
			}
		}
	}
	return &Normalizer{cfg: cfg}, nil
}

func (n *Normalizer) Preprocess(imageBytes []byte) (*models.PreprocessResult, error) {
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

	resized := imaging.Resize(decoded, n.cfg.Width, n.cfg.Height, imaging.Linear)

	channelSize := n.cfg.Width * n.cfg.Height
	data := make([]float32, channelSize*normalizeChannels)
	for y := 0; y < n.cfg.Height; y++ {
		offset := y * n.cfg.Width
		for x := 0; x < n.cfg.Width; x++ {
			i := offset + x
			px := resized.NRGBAAt(x, y)
			data[i] = float32(px.R) / 255.0
			data[channelSize+i] = float32(px.G) / 255.0
			data[channelSize*2+i] = float32(px.B) / 255.0
		}
	}

	if n.cfg.Normalize {
		for c := 0; c < normalizeChannels; c++ {
			plane := data[c*channelSize : (c+1)*channelSize]
			mean, std := n.cfg.Mean[c], n.cfg.Std[c]
			for i := range plane {
				plane[i] = (plane[i] - mean) / std
			}
		}
	}

	return &models.PreprocessResult{
		Data:     data,
		Width:    n.cfg.Width,
		Height:   n.cfg.Height,
		Channels: normalizeChannels,
	}, nil
}
