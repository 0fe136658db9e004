package services

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anditra/captcha-solver-service/decoding"
	"github.com/anditra/captcha-solver-service/models"
)

type fakeSession struct {
	output    []float32
	runErr    error
	lastShape []int64
	destroyed atomic.Bool
}

func (f *fakeSession) Run(data []float32, shape []int64) ([]float32, error) {
	f.lastShape = shape
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.output, nil
}

func (f *fakeSession) Destroy() { f.destroyed.Store(true) }

type fakePreprocessor struct {
	result *models.PreprocessResult
	err    error
}

func (f *fakePreprocessor) Preprocess([]byte) (*models.PreprocessResult, error) {
	return f.result, f.err
}

func countingOpener(loads *atomic.Int64, session InferenceSession, err error, delay time.Duration) SessionOpener {
	return func() (InferenceSession, error) {
		loads.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		return session, err
	}
}

func onePixelPreprocessor() *fakePreprocessor {
	return &fakePreprocessor{
		result: &models.PreprocessResult{Data: []float32{1}, Width: 1, Height: 1, Channels: 1},
	}
}

func TestInitializeConcurrentDedup(t *testing.T) {
	var loads atomic.Int64
	svc := NewService[rune]("test", onePixelPreprocessor(),
		decoding.NewOneHotDecoder(decoding.OneHotConfig{Depth: 27}),
		ChannelsLast,
		countingOpener(&loads, &fakeSession{}, nil, 30*time.Millisecond),
		nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Initialize(); err != nil {
				t.Errorf("Initialize failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := loads.Load(); got != 1 {
		t.Errorf("Expected exactly one load, got %d", got)
	}
	if !svc.IsInitialized() {
		t.Error("Service should be initialized")
	}
}

func TestInitializeFailureMemo(t *testing.T) {
	var loads atomic.Int64
	loadErr := errors.New("model file corrupt")
	svc := NewService[rune]("test", onePixelPreprocessor(),
		decoding.NewOneHotDecoder(decoding.OneHotConfig{Depth: 27}),
		ChannelsLast,
		countingOpener(&loads, nil, loadErr, 0),
		nil, nil)

	if err := svc.Initialize(); !errors.Is(err, loadErr) {
		t.Fatalf("Expected the load error, got %v", err)
	}
	// The failure stays memoized: no second load attempt.
	if err := svc.Initialize(); !errors.Is(err, loadErr) {
		t.Fatalf("Expected the memoized load error, got %v", err)
	}
	if got := loads.Load(); got != 1 {
		t.Errorf("Failed load should not be retried, got %d attempts", got)
	}
	if svc.IsInitialized() {
		t.Error("Service must not report initialized after a failed load")
	}

	// Dispose clears the memo and the next call retries.
	svc.Dispose()
	if err := svc.Initialize(); !errors.Is(err, loadErr) {
		t.Fatalf("Expected the load error after dispose, got %v", err)
	}
	if got := loads.Load(); got != 2 {
		t.Errorf("Dispose should allow a fresh load attempt, got %d", got)
	}
}

func TestPredictPipeline(t *testing.T) {
	raw := make([]float32, 54)
	raw[4] = 0.93
	raw[27] = 0.40
	session := &fakeSession{output: raw}

	var loads atomic.Int64
	svc := NewService[rune]("captcha", onePixelPreprocessor(),
		decoding.NewOneHotDecoder(decoding.OneHotConfig{Depth: 27, MinConfidence: 0.5}),
		ChannelsLast,
		countingOpener(&loads, session, nil, 0),
		nil, nil)

	prediction, err := svc.Predict([]byte("image"))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if text := models.Text(prediction.Results); text != "e" {
		t.Errorf("Expected decoded text \"e\", got %q", text)
	}
	if len(prediction.Raw) != 54 {
		t.Errorf("Raw buffer should be passed through, got length %d", len(prediction.Raw))
	}
	if prediction.InferenceTime < 0 {
		t.Errorf("Inference time should be non-negative, got %v", prediction.InferenceTime)
	}

	want := []int64{1, 1, 1, 1}
	for i, d := range session.lastShape {
		if d != want[i] {
			t.Errorf("Channel-last shape mismatch at %d: got %v", i, session.lastShape)
			break
		}
	}

	// A second predict must not reload the model.
	if _, err := svc.Predict([]byte("image")); err != nil {
		t.Fatalf("Second predict failed: %v", err)
	}
	if got := loads.Load(); got != 1 {
		t.Errorf("Expected one load across predicts, got %d", got)
	}
}

func TestPredictStageErrors(t *testing.T) {
	var loads atomic.Int64

	t.Run("preprocess", func(t *testing.T) {
		svc := NewService[rune]("test",
			&fakePreprocessor{err: &models.InputError{Reason: "empty image buffer"}},
			decoding.NewOneHotDecoder(decoding.OneHotConfig{Depth: 27}),
			ChannelsLast,
			countingOpener(&loads, &fakeSession{output: make([]float32, 27)}, nil, 0),
			nil, nil)

		_, err := svc.Predict(nil)
		var pipeErr *models.PipelineError
		if !errors.As(err, &pipeErr) || pipeErr.Stage != "preprocess" {
			t.Fatalf("Expected preprocess stage error, got %v", err)
		}
		var inputErr *models.InputError
		if !errors.As(err, &inputErr) {
			t.Errorf("Original error should stay reachable, got %v", err)
		}
	})

	t.Run("inference", func(t *testing.T) {
		svc := NewService[rune]("test", onePixelPreprocessor(),
			decoding.NewOneHotDecoder(decoding.OneHotConfig{Depth: 27}),
			ChannelsLast,
			countingOpener(&loads, &fakeSession{runErr: &models.InferenceError{Reason: "session run"}}, nil, 0),
			nil, nil)

		_, err := svc.Predict([]byte("image"))
		var pipeErr *models.PipelineError
		if !errors.As(err, &pipeErr) || pipeErr.Stage != "inference" {
			t.Fatalf("Expected inference stage error, got %v", err)
		}
	})

	t.Run("decode", func(t *testing.T) {
		svc := NewService[rune]("test", onePixelPreprocessor(),
			decoding.NewOneHotDecoder(decoding.OneHotConfig{Depth: 27}),
			ChannelsLast,
			countingOpener(&loads, &fakeSession{output: make([]float32, 10)}, nil, 0),
			nil, nil)

		_, err := svc.Predict([]byte("image"))
		var pipeErr *models.PipelineError
		if !errors.As(err, &pipeErr) || pipeErr.Stage != "decode" {
			t.Fatalf("Expected decode stage error, got %v", err)
		}
		var shapeErr *models.ShapeError
		if !errors.As(err, &shapeErr) {
			t.Errorf("ShapeError should stay reachable, got %v", err)
		}
	})
}

func TestDisposeReleasesSession(t *testing.T) {
	session := &fakeSession{output: make([]float32, 27)}
	var loads atomic.Int64
	disposed := false
	svc := NewService[rune]("test", onePixelPreprocessor(),
		decoding.NewOneHotDecoder(decoding.OneHotConfig{Depth: 27}),
		ChannelsLast,
		countingOpener(&loads, session, nil, 0),
		nil, func() { disposed = true })

	if err := svc.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	svc.Dispose()

	if !session.destroyed.Load() {
		t.Error("Dispose should destroy the session")
	}
	if svc.IsInitialized() {
		t.Error("Service should be uninitialized after dispose")
	}
	if !disposed {
		t.Error("onDispose hook should run")
	}

	// The instance is rebuildable: the next initialize loads again.
	if err := svc.Initialize(); err != nil {
		t.Fatalf("Initialize after dispose failed: %v", err)
	}
	if got := loads.Load(); got != 2 {
		t.Errorf("Expected a second load after dispose, got %d", got)
	}
}

func TestDisposeDuringInitialize(t *testing.T) {
	var loads atomic.Int64
	session := &fakeSession{output: make([]float32, 27)}
	svc := NewService[rune]("test", onePixelPreprocessor(),
		decoding.NewOneHotDecoder(decoding.OneHotConfig{Depth: 27}),
		ChannelsLast,
		countingOpener(&loads, session, nil, 20*time.Millisecond),
		nil, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := svc.Initialize(); err != nil {
			t.Errorf("Initialize failed: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		svc.Dispose()
	}()
	wg.Wait()

	// The instance must come back up cleanly whichever side won.
	if err := svc.Initialize(); err != nil {
		t.Fatalf("Initialize after racing dispose failed: %v", err)
	}
	if !svc.IsInitialized() {
		t.Error("Service should be initialized after the final load")
	}
	if got := loads.Load(); got < 1 || got > 2 {
		t.Errorf("Expected one or two loads, got %d", got)
	}
}

func TestChannelsFirstShape(t *testing.T) {
	p := &models.PreprocessResult{Width: 640, Height: 480, Channels: 3}
	got := ChannelsFirst.Shape(p)
	want := []int64{1, 3, 480, 640}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected shape %v, got %v", want, got)
		}
	}
	got = ChannelsLast.Shape(p)
	want = []int64{1, 480, 640, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected shape %v, got %v", want, got)
		}
	}
}
