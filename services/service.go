// Package services composes a preprocessor, an inference session and a
// decoder into a model service with a lazy, once-only initialization
// lifecycle. One service instance exists per model kind; see registry.go.
package services

import (
	"errors"
	"sync"
	"time"

	"github.com/anditra/captcha-solver-service/models"
)

// Preprocessor turns raw image bytes into a tensor-shaped float buffer.
type Preprocessor interface {
	Preprocess(imageBytes []byte) (*models.PreprocessResult, error)
}

// Decoder turns a raw output tensor into typed, confidence-scored results.
type Decoder[T any] interface {
	Decode(raw []float32) ([]models.DecodedResult[T], error)
}

// InferenceSession is the narrow contract the service holds on the ONNX
// session. The session is exclusively owned by the service that opened it.
type InferenceSession interface {
	Run(data []float32, shape []int64) ([]float32, error)
	Destroy()
}

// SessionOpener loads the model session. Injected so tests can count loads
// and substitute fakes.
type SessionOpener func() (InferenceSession, error)

// Logger is the write-only sink the service logs to. *logrus.Logger
// satisfies it directly.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// TensorLayout selects how a preprocess result maps onto the session's
// 4-D input shape.
type TensorLayout int

const (
	// ChannelsLast is [1, H, W, C] (captcha pipeline).
	ChannelsLast TensorLayout = iota
	// ChannelsFirst is [1, C, H, W] (detector pipeline).
	ChannelsFirst
)

// Shape builds the rank-4 input shape for a preprocessed buffer.
func (l TensorLayout) Shape(p *models.PreprocessResult) []int64 {
	if l == ChannelsFirst {
		return []int64{1, int64(p.Channels), int64(p.Height), int64(p.Width)}
	}
	return []int64{1, int64(p.Height), int64(p.Width), int64(p.Channels)}
}

// modelState carries one initialization generation. Its fields are written
// once inside the sync.Once, under the service mutex so Dispose can safely
// inspect a generation whose load may still be in flight; a failed load
// stays memoized until Dispose installs a fresh state.
type modelState struct {
	once    sync.Once
	session InferenceSession
	err     error
	ready   bool
}

// Service orchestrates preprocess → infer → decode for one model kind.
type Service[T any] struct {
	name         string
	preprocessor Preprocessor
	decoder      Decoder[T]
	layout       TensorLayout
	open         SessionOpener
	logger       Logger
	onDispose    func()

	mu    sync.RWMutex
	state *modelState
}

// NewService builds a service around the given stages. logger may be nil;
// onDispose, when set, runs after Dispose releases the session (the
// registry uses it to clear the singleton slot).
func NewService[T any](name string, pre Preprocessor, dec Decoder[T], layout TensorLayout, open SessionOpener, logger Logger, onDispose func()) *Service[T] {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Service[T]{
		name:         name,
		preprocessor: pre,
		decoder:      dec,
		layout:       layout,
		open:         open,
		logger:       logger,
		onDispose:    onDispose,
		state:        &modelState{},
	}
}

// Initialize loads the model session at most once per instance. Concurrent
// callers block on the same load instead of starting their own. A failed
// load is memoized: every later call returns the same error until Dispose
// resets the instance.
func (s *Service[T]) Initialize() error {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()

	st.once.Do(func() {
		s.logger.Infof("%s: loading model session", s.name)
		start := time.Now()
		session, err := s.open()

		s.mu.Lock()
		if err != nil {
			st.err = err
		} else {
			st.session = session
			st.ready = true
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Errorf("%s: model load failed: %v", s.name, err)
			return
		}
		s.logger.Infof("%s: model session ready in %v", s.name, time.Since(start))
	})
	return st.err
}

// IsInitialized reports whether the current generation holds a live session.
func (s *Service[T]) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ready
}

// Predict runs the full pipeline on imageBytes. Stage failures come back as
// a PipelineError naming the stage; the service stays in whatever lifecycle
// state it was in. InferenceTime excludes initialization once warm.
func (s *Service[T]) Predict(imageBytes []byte) (*models.Prediction[T], error) {
	if err := s.Initialize(); err != nil {
		return nil, err
	}

	start := time.Now()

	pre, err := s.preprocessor.Preprocess(imageBytes)
	if err != nil {
		return nil, &models.PipelineError{Pipeline: s.name, Stage: "preprocess", Cause: err}
	}

	s.mu.RLock()
	session := s.state.session
	s.mu.RUnlock()
	if session == nil {
		return nil, &models.PipelineError{
			Pipeline: s.name,
			Stage:    "inference",
			Cause:    errors.New("session not available"),
		}
	}

	raw, err := session.Run(pre.Data, s.layout.Shape(pre))
	if err != nil {
		return nil, &models.PipelineError{Pipeline: s.name, Stage: "inference", Cause: err}
	}

	results, err := s.decoder.Decode(raw)
	if err != nil {
		return nil, &models.PipelineError{Pipeline: s.name, Stage: "decode", Cause: err}
	}

	elapsed := time.Since(start)
	s.logger.Debugf("%s: predicted %d results in %v", s.name, len(results), elapsed)

	return &models.Prediction[T]{
		Results:       results,
		Raw:           raw,
		InferenceTime: elapsed,
	}, nil
}

// Dispose releases the session and resets the instance to uninitialized,
// clearing both the success and failure memo. A predict racing with Dispose
// either keeps the old session (and may see an inference error once it is
// destroyed) or finds the fresh uninitialized state; it never observes a
// half-swapped one.
func (s *Service[T]) Dispose() {
	s.mu.Lock()
	session := s.state.session
	s.state = &modelState{}
	s.mu.Unlock()

	if session != nil {
		session.Destroy()
	}
	s.logger.Infof("%s: disposed", s.name)

	if s.onDispose != nil {
		s.onDispose()
	}
}
