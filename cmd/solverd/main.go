package main

import (
	"flag"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/anditra/captcha-solver-service/config"
	"github.com/anditra/captcha-solver-service/decoding"
	"github.com/anditra/captcha-solver-service/inference"
	"github.com/anditra/captcha-solver-service/services"
)

type AppState struct {
	Logger   *logrus.Logger
	Captcha  *services.CaptchaService
	Detector *services.DetectorService
	Inflight *semaphore.Weighted
	Metrics  *RequestMetrics
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := inference.InitRuntime(cfg.Runtime.LibraryPath); err != nil {
		logger.Fatalf("Failed to initialize ONNX runtime: %v", err)
	}

	state := &AppState{
		Logger:   logger,
		Metrics:  NewRequestMetrics(),
		Inflight: newInflightLimiter(cfg.Server.MaxInflight),
	}

	if cfg.Captcha.Enabled {
		state.Captcha, err = services.Captcha(services.CaptchaConfig{
			ModelPath:     cfg.Captcha.ModelPath,
			Width:         cfg.Captcha.Width,
			Height:        cfg.Captcha.Height,
			Channels:      cfg.Captcha.Channels,
			Threshold:     cfg.Captcha.Threshold,
			Depth:         cfg.Captcha.Depth,
			MinConfidence: cfg.Captcha.MinConfidence,
			Charset:       decoding.Charset(cfg.Captcha.Charset),
			Runtime:       inference.Options{IntraOpThreads: cfg.Runtime.NumThreads},
		}, logger)
		if err != nil {
			logger.Fatalf("Failed to build captcha service: %v", err)
		}
		if cfg.Captcha.WarmUp {
			if err := state.Captcha.Initialize(); err != nil {
				logger.Fatalf("Captcha warm-up failed: %v", err)
			}
		}
	}

	if cfg.Detector.Enabled {
		state.Detector, err = services.Detector(services.DetectorConfig{
			ModelPath:     cfg.Detector.ModelPath,
			Width:         cfg.Detector.Width,
			Height:        cfg.Detector.Height,
			Normalize:     cfg.Detector.Normalize,
			Mean:          cfg.Detector.Mean,
			Std:           cfg.Detector.Std,
			ClassNames:    cfg.Detector.ClassNames,
			MinConfidence: cfg.Detector.MinConfidence,
			Runtime:       inference.Options{IntraOpThreads: cfg.Runtime.NumThreads},
		}, logger)
		if err != nil {
			logger.Fatalf("Failed to build detector service: %v", err)
		}
		if cfg.Detector.WarmUp {
			if err := state.Detector.Initialize(); err != nil {
				logger.Fatalf("Detector warm-up failed: %v", err)
			}
		}
	}

	r := mux.NewRouter()
	r.HandleFunc("/solve-captcha", state.handleSolveCaptcha).Methods("POST")
	r.HandleFunc("/detect-objects", state.handleDetectObjects).Methods("POST")
	r.HandleFunc("/metrics", state.handleMetrics).Methods("GET")
	r.HandleFunc("/healthz", state.handleHealth).Methods("GET")

	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.Server.Addr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	logger.Infof("Starting server on %s", srv.Addr)
	logger.Fatal(srv.ListenAndServe())
}

func newInflightLimiter(max int64) *semaphore.Weighted {
	if max <= 0 {
		max = int64(runtime.NumCPU())
	}
	return semaphore.NewWeighted(max)
}
