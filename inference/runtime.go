// Package inference wraps the ONNX Runtime behind the narrow contract the
// pipeline services need: a process-wide runtime, and sessions that take a
// flat float buffer in and hand a flat float buffer back.
package inference

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// InitRuntime points the ONNX Runtime at its shared library and initializes
// the environment. The first call wins; later calls return the memoized
// outcome regardless of the path they pass.
func InitRuntime(libraryPath string) error {
	runtimeOnce.Do(func() {
		if libraryPath == "" {
			libraryPath = DefaultLibraryPath()
		}
		ort.SetSharedLibraryPath(libraryPath)
		runtimeErr = ort.InitializeEnvironment()
	})
	if runtimeErr != nil {
		return fmt.Errorf("initializing onnx runtime: %w", runtimeErr)
	}
	return nil
}

// DefaultLibraryPath resolves the bundled ONNX Runtime shared library for
// the current OS and architecture.
func DefaultLibraryPath() string {
	switch runtime.GOOS {
	case "windows":
		return "./lib/onnxruntime.dll"
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "./lib/libonnxruntime_arm64.dylib"
		}
		return "./lib/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./lib/libonnxruntime_arm64.so"
		}
		return "./lib/libonnxruntime.so"
	}
}
