// Package metrics provides the scalar sink collaborators the trainer
// logs through, plus clustering agreement scores.
package metrics

import (
	"github.com/rs/zerolog"
)

// Sink receives named scalar values keyed by training step.
type Sink interface {
	Scalar(name string, value float64, step int)
}

// LogSink writes scalars to a structured logger.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Scalar(name string, value float64, step int) {
	s.Log.Info().Str("name", name).Float64("value", value).Int("step", step).Msg("scalar")
}

// MultiSink fans every scalar out to all member sinks.
type MultiSink []Sink

func (m MultiSink) Scalar(name string, value float64, step int) {
	for _, s := range m {
		s.Scalar(name, value, step)
	}
}

// Discard drops everything. Useful in tests.
type Discard struct{}

func (Discard) Scalar(string, float64, int) {}
