package core

import (
	"solidcore/internal/archive"
	"solidcore/internal/blob"
)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithAuditRecorder sets the audit recorder.
func WithAuditRecorder(a AuditRecorder) ServiceOption {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithClock sets the clock used for durations and audit timestamps.
func WithClock(c Clock) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRulesEngine replaces the default rules engine.
func WithRulesEngine(e *RulesEngine) ServiceOption {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithArchiveStore sets where Save and Load keep archives.
func WithArchiveStore(st archive.Store) ServiceOption {
	return func(s *Service) { s.archives = st }
}

// WithBlobStore sets the Export target.
func WithBlobStore(st blob.Store) ServiceOption {
	return func(s *Service) { s.blobs = st }
}

// WithCodec sets the archive encoding used by Save.
func WithCodec(c archive.Codec) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithStream runs operations on the named stream of the document, creating it
// when missing.
func WithStream(name string) ServiceOption {
	return func(s *Service) { s.streamName = name }
}
