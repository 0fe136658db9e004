package inference

import (
	"runtime"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/anditra/captcha-solver-service/models"
)

// Options tunes session creation. Zero values fall back to one intra/inter
// op thread per CPU, matching the runtime default we ship with.
type Options struct {
	IntraOpThreads int
	InterOpThreads int
}

// Session owns one ONNX model session. Input and output names come from the
// model itself (first declared input and output); shapes are supplied per
// call, so the same wrapper serves channel-first and channel-last models.
// Run allocates a fresh input tensor per call, which keeps concurrent
// predictions from sharing mutable buffers.
type Session struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
}

// Open loads the model at path and binds its first declared input and
// output tensors. Failures are reported as LoadError.
func Open(path string, opts Options) (*Session, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, &models.LoadError{Path: path, Cause: err}
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, &models.LoadError{
			Path:  path,
			Cause: &models.InputError{Reason: "model declares no input or output tensors"},
		}
	}

	sessionOptions, err := ort.NewSessionOptions()
	if err != nil {
		return nil, &models.LoadError{Path: path, Cause: err}
	}
	defer sessionOptions.Destroy()

	intra := opts.IntraOpThreads
	if intra <= 0 {
		intra = runtime.NumCPU()
	}
	inter := opts.InterOpThreads
	if inter <= 0 {
		inter = runtime.NumCPU()
	}
	sessionOptions.SetIntraOpNumThreads(intra)
	sessionOptions.SetInterOpNumThreads(inter)

	session, err := ort.NewDynamicAdvancedSession(
		path,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		sessionOptions,
	)
	if err != nil {
		return nil, &models.LoadError{Path: path, Cause: err}
	}

	return &Session{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
	}, nil
}

// Run feeds data as a tensor of the given shape and returns a copy of the
// first output tensor's flat float data. Shape mismatches against the
// model's declared input surface here, at call time.
func (s *Session) Run(data []float32, shape []int64) ([]float32, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, &models.InferenceError{Reason: "creating input tensor " + s.inputName, Cause: err}
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 1)
	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, &models.InferenceError{Reason: "session run", Cause: err}
	}
	if outputs[0] == nil {
		return nil, &models.InferenceError{Reason: "session returned no output tensor " + s.outputName}
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, &models.InferenceError{Reason: "output tensor " + s.outputName + " is not float32"}
	}

	// Copy out so the caller owns the buffer past the tensor's lifetime.
	src := outputTensor.GetData()
	raw := make([]float32, len(src))
	copy(raw, src)
	return raw, nil
}

// Destroy releases the underlying session. The session must not be used
// afterwards.
func (s *Session) Destroy() {
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
}
