package services

import "sync"

// One service instance exists per model kind. The accessor builds it on
// first call with the config it was given; later calls return the existing
// instance and ignore their config. Dispose clears the slot so the next
// accessor call rebuilds from scratch.

var (
	captchaMu       sync.Mutex
	captchaInstance *CaptchaService

	detectorMu       sync.Mutex
	detectorInstance *DetectorService
)

// Captcha returns the process-wide captcha service, constructing it on
// first use.
func Captcha(cfg CaptchaConfig, logger Logger) (*CaptchaService, error) {
	captchaMu.Lock()
	defer captchaMu.Unlock()

	if captchaInstance != nil {
		return captchaInstance, nil
	}
	svc, err := newCaptchaService(cfg, logger, func() {
		captchaMu.Lock()
		captchaInstance = nil
		captchaMu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	captchaInstance = svc
	return svc, nil
}

// Detector returns the process-wide detector service, constructing it on
// first use.
func Detector(cfg DetectorConfig, logger Logger) (*DetectorService, error) {
	detectorMu.Lock()
	defer detectorMu.Unlock()

	if detectorInstance != nil {
		return detectorInstance, nil
	}
	svc, err := newDetectorService(cfg, logger, func() {
		detectorMu.Lock()
		detectorInstance = nil
		detectorMu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	detectorInstance = svc
	return svc, nil
}
