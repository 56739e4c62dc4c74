package recognizer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// modelFiles are the assets one model directory must hold.
var modelFiles = []string{"model.onnx", "vocab.txt", "labels.json"}

const downloadTimeout = 10 * time.Minute

// EnsureModel returns the local directory holding the model assets,
// downloading them first when they are absent and auto-download is enabled.
// Files land in a temporary sibling directory and are renamed into place only
// after every asset downloaded cleanly, so a partial download never
// masquerades as a cached model. progress, if non-nil, receives values in
// [0, 100].
func EnsureModel(ctx context.Context, cfg Config, logger *zap.Logger, progress func(int)) (string, error) {
	report := func(pct int) {
		if progress != nil {
			progress(pct)
		}
	}

	modelDir := filepath.Join(cfg.CacheDir, sanitizeModelName(cfg.ModelName))
	if modelPresent(modelDir) {
		logger.Debug("Model already cached", zap.String("dir", modelDir))
		report(100)
		return modelDir, nil
	}

	if !cfg.AutoDownload {
		return "", fmt.Errorf("%w: model not cached at %s and auto-download disabled", ErrModelUnavailable, modelDir)
	}
	if strings.TrimSpace(cfg.ModelURL) == "" {
		return "", fmt.Errorf("%w: model not cached and no model_url configured", ErrModelUnavailable)
	}

	logger.Info("Downloading model",
		zap.String("model", cfg.ModelName),
		zap.String("url", cfg.ModelURL),
		zap.String("dir", modelDir))

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	tmpDir, err := os.MkdirTemp(cfg.CacheDir, "download-*")
	if err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	client := &http.Client{Timeout: downloadTimeout}
	base := strings.TrimRight(cfg.ModelURL, "/")

	for i, name := range modelFiles {
		if err := downloadFile(ctx, client, base+"/"+name, filepath.Join(tmpDir, name)); err != nil {
			return "", fmt.Errorf("download %s: %w", name, err)
		}
		// Reserve the last few percent for the rename.
		report((i + 1) * 90 / len(modelFiles))
	}

	if err := os.Rename(tmpDir, modelDir); err != nil {
		return "", fmt.Errorf("install model dir: %w", err)
	}
	report(100)

	logger.Info("Model downloaded", zap.String("dir", modelDir))
	return modelDir, nil
}

func modelPresent(dir string) bool {
	for _, name := range modelFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

func sanitizeModelName(name string) string {
	if name == "" {
		return "default"
	}
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(name)
}

func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		dst.Close()
		return fmt.Errorf("write file: %w", err)
	}
	return dst.Close()
}
