package decoding

import (
	"github.com/anditra/captcha-solver-service/models"
)

// OneHotConfig configures the positional one-hot decoder. Depth is the
// number of scores per sequence position; MinConfidence drops positions
// whose best score falls below it (0 keeps everything non-negative
// models actually emit).
type OneHotConfig struct {
	Depth         int
	MinConfidence float32
	Charset       Charset
}

func (c OneHotConfig) withDefaults() OneHotConfig {
	if c.Charset == "" {
		c.Charset = Lowercase
	}
	return c
}

// OneHotDecoder turns a flat positions×depth score buffer into a decoded
// character sequence by taking the argmax of each block.
type OneHotDecoder struct {
	cfg OneHotConfig
}

func NewOneHotDecoder(cfg OneHotConfig) *OneHotDecoder {
	return &OneHotDecoder{cfg: cfg.withDefaults()}
}

// Decode partitions raw into contiguous blocks of Depth scores. For each
// block the first index attaining the maximum wins; the position only
// contributes a result when that maximum clears MinConfidence, so the
// output can be shorter than the number of blocks and its positions are
// not necessarily contiguous. Output order is ascending position.
func (d *OneHotDecoder) Decode(raw []float32) ([]models.DecodedResult[rune], error) {
	if len(raw) == 0 {
		return nil, &models.InputError{Reason: "empty output buffer"}
	}
	if d.cfg.Depth <= 0 {
		return nil, &models.InputError{Reason: "one-hot depth must be positive"}
	}
	if len(raw)%d.cfg.Depth != 0 {
		return nil, &models.ShapeError{Length: len(raw), Stride: d.cfg.Depth}
	}

	numPositions := len(raw) / d.cfg.Depth
	results := make([]models.DecodedResult[rune], 0, numPositions)
	for pos := 0; pos < numPositions; pos++ {
		block := raw[pos*d.cfg.Depth : (pos+1)*d.cfg.Depth]
		best := 0
		bestScore := block[0]
		for i := 1; i < len(block); i++ {
			// Strict > keeps the earliest index on ties.
			if block[i] > bestScore {
				best = i
				bestScore = block[i]
			}
		}
		if bestScore < d.cfg.MinConfidence {
			continue
		}
		results = append(results, models.DecodedResult[rune]{
			Value:      d.cfg.Charset.Symbol(best),
			Confidence: bestScore,
			Position:   pos,
		})
	}
	return results, nil
}
