// Package logr adapts a zap.Logger into the internal/logger.LogSink
// interface, the way the teacher's own examples/_logger/zap package
// wires a third-party structured logger into the driver's log sink.
package logr

import (
	"go.uber.org/zap"
)

// Sink implements internal/logger.LogSink over a *zap.SugaredLogger.
type Sink struct {
	log *zap.SugaredLogger
}

// New builds a Sink from a zap.Logger, naming it "mongowire" so its
// output is distinguishable alongside an application's own zap logs.
func New(l *zap.Logger) *Sink {
	return &Sink{log: l.Named("mongowire").Sugar()}
}

// NewProduction builds a Sink around zap's default production
// configuration (JSON encoding, info level, sampling).
func NewProduction() (*Sink, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return New(l), nil
}

// Info logs a message at the given level with alternating key/value pairs.
func (s *Sink) Info(level int, msg string, keysAndValues ...interface{}) {
	if level > 0 {
		s.log.Debugw(msg, keysAndValues...)
		return
	}
	s.log.Infow(msg, keysAndValues...)
}

// Sync flushes any buffered log entries.
func (s *Sink) Sync() error {
	return s.log.Sync()
}
