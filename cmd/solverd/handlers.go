package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/anditra/captcha-solver-service/models"
)

type CaptchaResponse struct {
	Text        string  `json:"text"`
	Confidence  float32 `json:"confidence"`
	InferenceMs float64 `json:"inference_ms"`
	SymbolCount int     `json:"symbol_count"`
}

type DetectionBox struct {
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Width      float32 `json:"width"`
	Height     float32 `json:"height"`
	Class      string  `json:"class"`
	Confidence float32 `json:"confidence"`
}

type DetectionResponse struct {
	Boxes       []DetectionBox `json:"boxes"`
	InferenceMs float64        `json:"inference_ms"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *AppState) handleSolveCaptcha(w http.ResponseWriter, r *http.Request) {
	if s.Captcha == nil {
		sendErrorResponse(w, "pipeline_disabled", "captcha pipeline is not enabled", http.StatusServiceUnavailable)
		return
	}

	imgBytes, err := readImageRequest(r)
	if err != nil {
		s.Metrics.CaptchaFailed.Add(1)
		sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Inflight.Acquire(r.Context(), 1); err != nil {
		sendErrorResponse(w, "canceled", err.Error(), http.StatusServiceUnavailable)
		return
	}
	prediction, err := s.Captcha.Predict(imgBytes)
	s.Inflight.Release(1)
	if err != nil {
		s.Metrics.CaptchaFailed.Add(1)
		sendErrorResponse(w, "prediction_failed", err.Error(), predictionStatus(err))
		return
	}

	s.Metrics.CaptchaServed.Add(1)
	writeJSON(w, http.StatusOK, CaptchaResponse{
		Text:        models.Text(prediction.Results),
		Confidence:  models.AverageConfidence(prediction.Results),
		InferenceMs: float64(prediction.InferenceTime.Microseconds()) / 1000.0,
		SymbolCount: len(prediction.Results),
	})
}

func (s *AppState) handleDetectObjects(w http.ResponseWriter, r *http.Request) {
	if s.Detector == nil {
		sendErrorResponse(w, "pipeline_disabled", "detector pipeline is not enabled", http.StatusServiceUnavailable)
		return
	}

	imgBytes, err := readImageRequest(r)
	if err != nil {
		s.Metrics.DetectorFailed.Add(1)
		sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Inflight.Acquire(r.Context(), 1); err != nil {
		sendErrorResponse(w, "canceled", err.Error(), http.StatusServiceUnavailable)
		return
	}
	prediction, err := s.Detector.Predict(imgBytes)
	s.Inflight.Release(1)
	if err != nil {
		s.Metrics.DetectorFailed.Add(1)
		sendErrorResponse(w, "prediction_failed", err.Error(), predictionStatus(err))
		return
	}

	boxes := make([]DetectionBox, 0, len(prediction.Results))
	for _, res := range prediction.Results {
		boxes = append(boxes, DetectionBox{
			X:          res.Value.X,
			Y:          res.Value.Y,
			Width:      res.Value.Width,
			Height:     res.Value.Height,
			Class:      res.Value.Class,
			Confidence: res.Value.Confidence,
		})
	}

	s.Metrics.DetectorServed.Add(1)
	writeJSON(w, http.StatusOK, DetectionResponse{
		Boxes:       boxes,
		InferenceMs: float64(prediction.InferenceTime.Microseconds()) / 1000.0,
	})
}

func (s *AppState) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{"status": "ok"}
	if s.Captcha != nil {
		status["captcha_initialized"] = s.Captcha.IsInitialized()
	}
	if s.Detector != nil {
		status["detector_initialized"] = s.Detector.IsInitialized()
	}
	writeJSON(w, http.StatusOK, status)
}

// readImageRequest accepts the three encodings clients use: JSON with a
// base64 image field, multipart with a "file" field, or the raw bytes.
func readImageRequest(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		return readJSONImage(r)
	case strings.HasPrefix(contentType, "multipart/form-data"):
		return readMultipartImage(r)
	default:
		return io.ReadAll(r.Body)
	}
}

func readJSONImage(r *http.Request) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	if req.Image == "" {
		return nil, errors.New("missing image field")
	}
	return base64.StdEncoding.DecodeString(req.Image)
}

func readMultipartImage(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// predictionStatus maps pipeline errors onto HTTP statuses: bad input is
// the client's fault, everything else is ours.
func predictionStatus(err error) int {
	var inputErr *models.InputError
	if errors.As(err, &inputErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
