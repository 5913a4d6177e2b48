// Package logging builds the zap loggers used by the commands and the
// engine.
package logging

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

// New builds a logger. format is "json" (production encoder) or "console"
// (development encoder); level is any zap level name.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// Sampled forwards at most a fixed rate of messages to a logger and counts
// the ones it suppresses. It is used for per-record diagnostics so a corrupt
// file cannot flood the log.
type Sampled struct {
	logger     *zap.Logger
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

// NewSampled allows perSecond messages per second with bursts of burst.
// perSecond <= 0 disables limiting.
func NewSampled(logger *zap.Logger, perSecond float64, burst int) *Sampled {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Sampled{logger: logger, limiter: rate.NewLimiter(limit, burst)}
}

// Warn logs at warn level if the rate allows.
func (s *Sampled) Warn(msg string, fields ...zap.Field) {
	if !s.limiter.Allow() {
		s.suppressed.Add(1)
		return
	}
	if n := s.suppressed.Swap(0); n > 0 {
		fields = append(fields, zap.Int64("suppressed", n))
	}
	s.logger.Warn(msg, fields...)
}

// Suppressed is the number of messages dropped since the last one logged.
func (s *Sampled) Suppressed() int64 { return s.suppressed.Load() }
