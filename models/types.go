package models

import "time"

// PreprocessResult is the tensor-shaped buffer a preprocessor hands to the
// inference session. Data holds exactly Width*Height*Channels values; the
// layout (interleaved vs planar) is fixed by the preprocessor that produced
// it and matched by the pipeline's declared tensor shape.
type PreprocessResult struct {
	Data     []float32
	Width    int
	Height   int
	Channels int
}

// DecodedResult is a single decoded element at a sequence position or box
// index. Position is the index of the block/record in the raw output buffer,
// so a confidence-filtered output keeps gaps rather than renumbering.
type DecodedResult[T any] struct {
	Value      T
	Confidence float32
	Position   int
	Metadata   map[string]any
}

// BoundingBox is a decoded detection in model input coordinates. It only
// ever appears as the Value of a DecodedResult.
type BoundingBox struct {
	X          float32
	Y          float32
	Width      float32
	Height     float32
	Class      string
	Confidence float32
}

// Prediction is the full outcome of one predict call. Raw is the unmodified
// output tensor, kept for diagnostics. InferenceTime covers preprocess,
// session run and decode, but not model loading.
type Prediction[T any] struct {
	Results       []DecodedResult[T]
	Raw           []float32
	InferenceTime time.Duration
}
