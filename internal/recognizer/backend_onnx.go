//go:build onnx
// +build onnx

package recognizer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// onnxBackend implements NERBackend with a token-classification model run
// through ONNX Runtime (via yalue/onnxruntime_go).
type onnxBackend struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  *wordPieceTokenizer
	labels     []string
	inputNames []string
	maxLength  int
	logger     *zap.Logger
	ready      bool
	mu         sync.Mutex
}

// NewNERBackend initializes the ONNX Runtime backend. Requires build tag
// 'onnx'. The model directory must contain model.onnx, vocab.txt, and
// labels.json (an index-to-label map in either array or object form).
func NewNERBackend(logger *zap.Logger, modelDir string, maxLength int) NERBackend {
	if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			logger.Error("ONNX Runtime environment init failed", zap.Error(err))
			return nil
		}
	}

	modelPath := filepath.Join(modelDir, "model.onnx")
	labels, err := loadLabelMap(filepath.Join(modelDir, "labels.json"))
	if err != nil {
		logger.Error("Failed to load label map", zap.Error(err), zap.String("dir", modelDir))
		return nil
	}

	tokenizer, err := loadWordPieceTokenizer(filepath.Join(modelDir, "vocab.txt"))
	if err != nil {
		logger.Error("Failed to load tokenizer vocab", zap.Error(err), zap.String("dir", modelDir))
		return nil
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		logger.Error("Failed to inspect ONNX model IO", zap.Error(err), zap.String("model", modelPath))
		return nil
	}
	if len(outputsInfo) == 0 {
		logger.Error("ONNX model reports no outputs", zap.String("model", modelPath))
		return nil
	}

	// Prefer the common transformer input order, fall back to declared order.
	preferred := []string{"input_ids", "attention_mask", "token_type_ids"}
	available := map[string]bool{}
	for _, ii := range inputsInfo {
		available[strings.ToLower(ii.Name)] = true
	}
	var inputNames []string
	for _, name := range preferred {
		if available[name] {
			inputNames = append(inputNames, name)
		}
	}
	if len(inputNames) == 0 {
		for _, ii := range inputsInfo {
			inputNames = append(inputNames, ii.Name)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputsInfo[0].Name}, nil)
	if err != nil {
		logger.Error("ONNX Runtime session creation failed", zap.Error(err), zap.String("model", modelPath))
		return nil
	}

	logger.Info("ONNX NER backend ready",
		zap.String("model", modelPath),
		zap.Strings("inputs", inputNames),
		zap.Int("labels", len(labels)))

	return &onnxBackend{
		session:    sess,
		tokenizer:  tokenizer,
		labels:     labels,
		inputNames: inputNames,
		maxLength:  maxLength,
		logger:     logger,
		ready:      true,
	}
}

// IsReady reports whether the backend is initialized.
func (b *onnxBackend) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready && b.session != nil
}

// Close releases session and environment resources.
func (b *onnxBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
	ort.DestroyEnvironment()
	b.ready = false
	return nil
}

// Score tokenizes text, runs the model, and returns one RawSpan per
// non-outside token with its softmax probability.
func (b *onnxBackend) Score(ctx context.Context, text string) ([]RawSpan, error) {
	if !b.IsReady() {
		return nil, ErrModelUnavailable
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	seqLen := b.maxLength
	ids, attn, spans := b.tokenizer.encode(text, seqLen)

	shape := ort.NewShape(1, int64(seqLen))
	idsTensor, err := ort.NewTensor[int64](shape, ids)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor[int64](shape, attn)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor[int64](shape, make([]int64, seqLen))
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	inputs := make([]ort.Value, 0, len(b.inputNames))
	for _, rawName := range b.inputNames {
		switch name := strings.ToLower(rawName); {
		case strings.Contains(name, "mask") || strings.Contains(name, "attention"):
			inputs = append(inputs, maskTensor)
		case strings.Contains(name, "token_type") || strings.Contains(name, "segment"):
			inputs = append(inputs, typeTensor)
		default:
			inputs = append(inputs, idsTensor)
		}
	}

	b.mu.Lock()
	outputs := make([]ort.Value, 1)
	runErr := b.session.Run(inputs, outputs)
	b.mu.Unlock()
	if runErr != nil {
		return nil, fmt.Errorf("onnx run: %w", runErr)
	}
	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("onnx returned no outputs")
	}
	defer outputs[0].Destroy()

	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type (want float32 tensor)")
	}
	outShape := logits.GetShape()
	if len(outShape) != 3 {
		return nil, fmt.Errorf("unsupported output shape %v (want [batch, seq, labels])", outShape)
	}
	numLabels := int(outShape[2])
	if numLabels != len(b.labels) {
		return nil, fmt.Errorf("model emits %d labels but label map has %d", numLabels, len(b.labels))
	}
	data := logits.GetData()

	var out []RawSpan
	for i, span := range spans {
		if span.start < 0 || attn[i] == 0 {
			continue
		}
		row := data[i*numLabels : (i+1)*numLabels]
		best, score := argmaxSoftmax(row)
		label := b.labels[best]
		if label == "O" || label == "" {
			continue
		}
		out = append(out, RawSpan{
			Label: label,
			Word:  span.word,
			Start: span.start,
			End:   span.end,
			Score: score,
		})
	}
	return out, nil
}

// argmaxSoftmax returns the index of the largest logit and its softmax
// probability, computed with the max subtracted for stability.
func argmaxSoftmax(logits []float32) (int, float64) {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v - logits[best]))
	}
	return best, 1.0 / sum
}

// loadLabelMap reads labels.json as either a JSON array or an index-keyed
// object ({"0": "O", "1": "B-PER", ...}).
func loadLabelMap(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	out := make([]string, len(m))
	for k, v := range m {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, convErr)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}
