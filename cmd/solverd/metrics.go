package main

import (
	"net/http"
	"os"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/process"
)

// RequestMetrics counts served and failed predictions per pipeline.
type RequestMetrics struct {
	CaptchaServed  atomic.Int64
	CaptchaFailed  atomic.Int64
	DetectorServed atomic.Int64
	DetectorFailed atomic.Int64
}

func NewRequestMetrics() *RequestMetrics {
	return &RequestMetrics{}
}

func (s *AppState) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	response := map[string]any{
		"captcha_served":  s.Metrics.CaptchaServed.Load(),
		"captcha_failed":  s.Metrics.CaptchaFailed.Load(),
		"detector_served": s.Metrics.DetectorServed.Load(),
		"detector_failed": s.Metrics.DetectorFailed.Load(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			response["rss_bytes"] = mem.RSS
		}
		if cpuPercent, err := proc.CPUPercent(); err == nil {
			response["cpu_percent"] = cpuPercent
		}
	}

	writeJSON(w, http.StatusOK, response)
}
