package recognizer

import (
	"context"
)

// NERBackend scores one chunk of text and returns labeled spans with byte
// offsets relative to that chunk. Implementations may use ONNX Runtime or
// other inference engines.
type NERBackend interface {
	// Score runs token classification over text. Span scores are raw model
	// probabilities; filtering by confidence happens in the adapter.
	Score(ctx context.Context, text string) ([]RawSpan, error)
	// IsReady returns whether the backend is initialized and ready.
	IsReady() bool
	// Close releases any native resources.
	Close() error
}

// NewNERBackend creates a backend if supported by the current build. The
// default (no build tags) returns nil to avoid CGO dependencies; the adapter
// then reports ErrModelUnavailable and pattern detection carries the load.
// Implementations are provided in build-tagged files, e.g. backend_onnx.go
// and backend_stub.go.
