package services

import (
	"fmt"
	"image/color"

	"github.com/anditra/captcha-solver-service/decoding"
	"github.com/anditra/captcha-solver-service/inference"
	"github.com/anditra/captcha-solver-service/preprocessing"
)

// CaptchaConfig configures the character-sequence captcha pipeline. Zero
// fields take the documented defaults; the config is snapshotted at service
// construction and never read from the caller again.
type CaptchaConfig struct {
	ModelPath string

	// Canvas geometry and binarization, see preprocessing.BinarizeConfig.
	Width      int
	Height     int
	Channels   int
	Threshold  uint8
	Background color.Color

	// Decoding. Depth defaults to the charset size.
	Depth         int
	MinConfidence float32
	Charset       decoding.Charset

	Runtime inference.Options
}

func (c CaptchaConfig) withDefaults() CaptchaConfig {
	if c.Charset == "" {
		c.Charset = decoding.Lowercase
	}
	if c.Depth == 0 {
		c.Depth = c.Charset.Size()
	}
	return c
}

// CaptchaService solves character captchas: binarized canvas in, decoded
// rune sequence out. The model takes a [1, H, W, C] channel-last tensor.
type CaptchaService = Service[rune]

func newCaptchaService(cfg CaptchaConfig, logger Logger, onDispose func()) (*CaptchaService, error) {
	cfg = cfg.withDefaults()
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("captcha service needs a model path")
	}

	binarizer, err := preprocessing.NewBinarizer(preprocessing.BinarizeConfig{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Channels:   cfg.Channels,
		Threshold:  cfg.Threshold,
		Background: cfg.Background,
	})
	if err != nil {
		return nil, fmt.Errorf("captcha preprocessor: %w", err)
	}

	decoder := decoding.NewOneHotDecoder(decoding.OneHotConfig{
		Depth:         cfg.Depth,
		MinConfidence: cfg.MinConfidence,
		Charset:       cfg.Charset,
	})

	open := func() (InferenceSession, error) {
		return inference.Open(cfg.ModelPath, cfg.Runtime)
	}

	return NewService[rune]("captcha", binarizer, decoder, ChannelsLast, open, logger, onDispose), nil
}
