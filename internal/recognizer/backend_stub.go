//go:build !onnx
// +build !onnx

package recognizer

import (
	"go.uber.org/zap"
)

// Stub implementation used when the 'onnx' build tag is not set.
func NewNERBackend(logger *zap.Logger, modelDir string, maxLength int) NERBackend {
	return nil
}
