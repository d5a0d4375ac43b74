package api

import "github.com/okian/datalens/pkg/logger"

// Option configures the Server.
type Option func(*settings)

type settings struct {
	maxUploadBytes   int64
	maxListLimit     int
	uploadsPerSecond float64
	uploadBurst      int
	logger           logger.Logger
}

func defaultSettings() settings {
	return settings{
		maxUploadBytes: 32 << 20,
		maxListLimit:   100,
		logger:         logger.Nop(),
	}
}

// WithMaxUploadBytes caps the request body size. Larger uploads get 413.
func WithMaxUploadBytes(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithMaxListLimit caps the limit accepted by GET /runs.
func WithMaxListLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxListLimit = n
		}
	}
}

// WithUploadRateLimit limits POST /runs and POST /analyze to rps requests
// per second with the given burst. A non-positive rps disables limiting.
func WithUploadRateLimit(rps float64, burst int) Option {
	return func(s *settings) {
		s.uploadsPerSecond = rps
		s.uploadBurst = burst
	}
}

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
