package models

import "fmt"

// InputError reports unusable input: an empty buffer, an undecodable image,
// or an image with no readable dimensions. Never retried.
type InputError struct {
	Reason string
	Cause  error
}

func (e *InputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Cause)
	}
	return "invalid input: " + e.Reason
}

func (e *InputError) Unwrap() error { return e.Cause }

// ShapeError reports a raw buffer whose length does not divide evenly into
// the decoder's record stride. Both lengths are part of the message so the
// caller can see the mismatch without digging.
type ShapeError struct {
	Length int
	Stride int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("buffer length %d is not divisible by stride %d", e.Length, e.Stride)
}

// LoadError reports a failed model load. It is fatal for the service
// instance that attempted it until that instance is disposed.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading model %s: %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// InferenceError reports a session invocation that threw or returned no
// output tensor.
type InferenceError struct {
	Reason string
	Cause  error
}

func (e *InferenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("inference failed: %s: %v", e.Reason, e.Cause)
	}
	return "inference failed: " + e.Reason
}

func (e *InferenceError) Unwrap() error { return e.Cause }

// PipelineError wraps any stage failure inside a predict call with the
// pipeline name and the stage that failed. The underlying error stays
// reachable through Unwrap.
type PipelineError struct {
	Pipeline string
	Stage    string
	Cause    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s stage: %v", e.Pipeline, e.Stage, e.Cause)
}

func (e *PipelineError) Unwrap() error { return e.Cause }
