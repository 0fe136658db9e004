package decoding

import (
	"fmt"

	"github.com/anditra/captcha-solver-service/models"
)

const DefaultBoxMinConfidence = 0.25

// BoxConfig configures the simplified bounding-box decoder. ClassNames may
// be shorter than NumClasses; indices past its end decode to a synthetic
// "class_N" name.
type BoxConfig struct {
	NumClasses    int
	ClassNames    []string
	MinConfidence float32
}

func (c BoxConfig) withDefaults() BoxConfig {
	if c.MinConfidence == 0 {
		c.MinConfidence = DefaultBoxMinConfidence
	}
	return c
}

// BoxDecoder reads fixed-stride [x, y, w, h, objectness, classProb...]
// records out of a flat output buffer.
//
// No overlap suppression is performed: overlapping boxes for the same
// object are expected in the output and must be deduplicated downstream.
type BoxDecoder struct {
	cfg BoxConfig
}

func NewBoxDecoder(cfg BoxConfig) (*BoxDecoder, error) {
	if cfg.NumClasses <= 0 {
		return nil, fmt.Errorf("box decoder needs at least one class, got %d", cfg.NumClasses)
	}
	return &BoxDecoder{cfg: cfg.withDefaults()}, nil
}

// Decode emits one result per record whose objectness clears MinConfidence
// and whose objectness × best class probability clears it again. Output
// order is record order, not confidence order.
func (d *BoxDecoder) Decode(raw []float32) ([]models.DecodedResult[models.BoundingBox], error) {
	if len(raw) == 0 {
		return nil, &models.InputError{Reason: "empty output buffer"}
	}
	stride := 5 + d.cfg.NumClasses
	if len(raw)%stride != 0 {
		return nil, &models.ShapeError{Length: len(raw), Stride: stride}
	}

	numBoxes := len(raw) / stride
	results := make([]models.DecodedResult[models.BoundingBox], 0, numBoxes)
	for b := 0; b < numBoxes; b++ {
		record := raw[b*stride : (b+1)*stride]
		objectness := record[4]
		if objectness < d.cfg.MinConfidence {
			continue
		}

		probs := record[5:]
		best := 0
		bestProb := probs[0]
		for i := 1; i < len(probs); i++ {
			if probs[i] > bestProb {
				best = i
				bestProb = probs[i]
			}
		}

		confidence := objectness * bestProb
		if confidence < d.cfg.MinConfidence {
			continue
		}

		box := models.BoundingBox{
			X:          record[0],
			Y:          record[1],
			Width:      record[2],
			Height:     record[3],
			Class:      d.className(best),
			Confidence: confidence,
		}
		results = append(results, models.DecodedResult[models.BoundingBox]{
			Value:      box,
			Confidence: confidence,
			Position:   b,
		})
	}
	return results, nil
}

func (d *BoxDecoder) className(index int) string {
	if index < len(d.cfg.ClassNames) {
		return d.cfg.ClassNames[index]
	}
	return fmt.Sprintf("class_%d", index)
}
