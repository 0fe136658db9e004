// Package config loads the solverd server configuration from YAML, merging
// file values over built-in defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
	Captcha  CaptchaConfig  `yaml:"captcha"`
	Detector DetectorConfig `yaml:"detector"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	// MaxInflight bounds concurrently running predictions across both
	// pipelines. 0 means number of CPUs.
	MaxInflight int64 `yaml:"max_inflight"`
	Debug       bool  `yaml:"debug"`
}

type RuntimeConfig struct {
	// LibraryPath points at the onnxruntime shared library; empty resolves
	// per OS/arch under ./lib.
	LibraryPath string `yaml:"library_path"`
	NumThreads  int    `yaml:"num_threads"`
}

type CaptchaConfig struct {
	Enabled       bool    `yaml:"enabled"`
	ModelPath     string  `yaml:"model_path"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	Channels      int     `yaml:"channels"`
	Threshold     uint8   `yaml:"threshold"`
	Depth         int     `yaml:"depth"`
	MinConfidence float32 `yaml:"min_confidence"`
	Charset       string  `yaml:"charset"`
	// WarmUp loads the model at boot instead of on the first request.
	WarmUp bool `yaml:"warm_up"`
}

type DetectorConfig struct {
	Enabled       bool       `yaml:"enabled"`
	ModelPath     string     `yaml:"model_path"`
	Width         int        `yaml:"width"`
	Height        int        `yaml:"height"`
	Normalize     bool       `yaml:"normalize"`
	Mean          [3]float32 `yaml:"mean"`
	Std           [3]float32 `yaml:"std"`
	ClassNames    []string   `yaml:"class_names"`
	MinConfidence float32    `yaml:"min_confidence"`
	WarmUp        bool       `yaml:"warm_up"`
}

// Default returns the built-in configuration: both pipelines enabled with
// model files expected under ./models.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeoutSec:  60,
			WriteTimeoutSec: 60,
		},
		Captcha: CaptchaConfig{
			Enabled:   true,
			ModelPath: "./models/captcha.onnx",
		},
		Detector: DetectorConfig{
			Enabled:   true,
			ModelPath: "./models/detector.onnx",
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged. Unknown keys are rejected rather than silently
// dropped.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
