package services

import (
	"fmt"

	"github.com/anditra/captcha-solver-service/decoding"
	"github.com/anditra/captcha-solver-service/inference"
	"github.com/anditra/captcha-solver-service/models"
	"github.com/anditra/captcha-solver-service/preprocessing"
)

// DetectorConfig configures the object-detection pipeline. Defaults target
// a 640×640 COCO-class model with a 0.25 confidence floor.
type DetectorConfig struct {
	ModelPath string

	Width     int
	Height    int
	Normalize bool
	Mean      [3]float32
	Std       [3]float32

	NumClasses    int
	ClassNames    []string
	MinConfidence float32

	Runtime inference.Options
}

func (c DetectorConfig) withDefaults() DetectorConfig {
	if c.NumClasses == 0 && len(c.ClassNames) > 0 {
		c.NumClasses = len(c.ClassNames)
	}
	if c.NumClasses == 0 {
		c.NumClasses = len(cocoClassNames)
	}
	if c.ClassNames == nil {
		c.ClassNames = cocoClassNames
	}
	return c
}

// DetectorService finds objects: normalized [1, C, H, W] tensor in, decoded
// bounding boxes out.
type DetectorService = Service[models.BoundingBox]

func newDetectorService(cfg DetectorConfig, logger Logger, onDispose func()) (*DetectorService, error) {
	cfg = cfg.withDefaults()
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("detector service needs a model path")
	}

	normalizer, err := preprocessing.NewNormalizer(preprocessing.NormalizeConfig{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Normalize: cfg.Normalize,
		Mean:      cfg.Mean,
		Std:       cfg.Std,
	})
	if err != nil {
		return nil, fmt.Errorf("detector preprocessor: %w", err)
	}

	decoder, err := decoding.NewBoxDecoder(decoding.BoxConfig{
		NumClasses:    cfg.NumClasses,
		ClassNames:    cfg.ClassNames,
		MinConfidence: cfg.MinConfidence,
	})
	if err != nil {
		return nil, fmt.Errorf("detector decoder: %w", err)
	}

	open := func() (InferenceSession, error) {
		return inference.Open(cfg.ModelPath, cfg.Runtime)
	}

	if logger != nil {
		logger.Warnf("detector: overlap suppression is not performed; expect duplicate boxes per object")
	}

	return NewService[models.BoundingBox]("detector", normalizer, decoder, ChannelsFirst, open, logger, onDispose), nil
}
