package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("Unexpected default addr: %s", cfg.Server.Addr)
	}
	if !cfg.Captcha.Enabled || !cfg.Detector.Enabled {
		t.Error("Both pipelines should be enabled by default")
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  addr: ":9000"
captcha:
  model_path: /opt/models/captcha.onnx
  depth: 27
  min_confidence: 0.5
detector:
  enabled: false
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Expected overridden addr, got %s", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeoutSec != 60 {
		t.Errorf("Defaults should survive partial override, got %d", cfg.Server.ReadTimeoutSec)
	}
	if cfg.Captcha.ModelPath != "/opt/models/captcha.onnx" || cfg.Captcha.Depth != 27 {
		t.Errorf("Captcha overrides not applied: %+v", cfg.Captcha)
	}
	if cfg.Detector.Enabled {
		t.Error("Detector should be disabled by the file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "server:\n  adress: \":9000\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected an error for an unknown key")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected a parse error")
	}
}
