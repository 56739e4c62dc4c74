package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrSuperseded reports that a newer detection started while this one was
// running. The stale result is discarded, never delivered.
var ErrSuperseded = errors.New("detection superseded by a newer request")

// Session serializes detection for one document stream. Each Detect call
// takes a fresh generation number; when a newer call arrives before an older
// one finishes, the older result is dropped on arrival. The last writer
// always wins, so a consumer never renders entities computed from stale text.
type Session struct {
	pipeline   *Pipeline
	generation atomic.Uint64
}

// NewSession creates a session over the pipeline.
func NewSession(p *Pipeline) *Session {
	return &Session{pipeline: p}
}

// Detect runs the pipeline and returns the result only if no newer Detect
// call started in the meantime.
func (s *Session) Detect(ctx context.Context, text string) (*Result, error) {
	gen := s.generation.Add(1)

	result, err := s.pipeline.Detect(ctx, text)
	if err != nil {
		return nil, err
	}

	if s.generation.Load() != gen {
		return nil, ErrSuperseded
	}

	result.Generation = gen
	return result, nil
}

// Generation returns the current generation counter.
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}
