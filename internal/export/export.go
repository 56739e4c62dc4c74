package export

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/docveil/docveil/internal/entity"
	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// RedactText replaces every redact-flagged entity span in text with its
// suggested replacement. Replacement runs back to front so earlier offsets
// stay valid while later spans are being rewritten. Spans that no longer
// match the text (stale offsets) are skipped rather than corrupting output.
func RedactText(text string, entities []entity.Entity) string {
	targets := make([]entity.Entity, 0, len(entities))
	for _, e := range entities {
		if !e.Redact {
			continue
		}
		if e.Start < 0 || e.End > len(text) || e.Start >= e.End {
			continue
		}
		targets = append(targets, e)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Start > targets[j].Start })

	out := text
	lastStart := len(out) + 1
	for _, e := range targets {
		if e.End > lastStart {
			// Overlapping a span already replaced; offsets are unreliable.
			continue
		}
		replacement := e.Suggested
		if replacement == "" {
			replacement = entity.SuggestedReplacement(e.Type)
		}
		out = out[:e.Start] + replacement + out[e.End:]
		lastStart = e.Start
	}
	return out
}

// AnnotationRecord is one entity decision serialized for audit export.
type AnnotationRecord struct {
	DocumentID  string  `parquet:"document_id" json:"document_id"`
	EntityID    string  `parquet:"entity_id" json:"entity_id"`
	Type        string  `parquet:"type" json:"type"`
	Value       string  `parquet:"value" json:"value"`
	Start       int64   `parquet:"start" json:"start"`
	End         int64   `parquet:"end" json:"end"`
	Confidence  float64 `parquet:"confidence" json:"confidence"`
	Source      string  `parquet:"source" json:"source"`
	Redacted    bool    `parquet:"redacted" json:"redacted"`
	Reason      string  `parquet:"reason" json:"reason"`
	Replacement string  `parquet:"replacement" json:"replacement"`
	ExportedAt  int64   `parquet:"exported_at" json:"exported_at"`
}

// Annotations converts entities to export records for one document.
func Annotations(docID string, entities []entity.Entity) []AnnotationRecord {
	now := time.Now().Unix()
	out := make([]AnnotationRecord, 0, len(entities))
	for _, e := range entities {
		out = append(out, AnnotationRecord{
			DocumentID:  docID,
			EntityID:    e.ID,
			Type:        string(e.Type),
			Value:       e.Value,
			Start:       int64(e.Start),
			End:         int64(e.End),
			Confidence:  e.Confidence,
			Source:      string(e.Source),
			Redacted:    e.Redact,
			Reason:      e.Reason,
			Replacement: e.Suggested,
			ExportedAt:  now,
		})
	}
	return out
}

// Writer exports annotation records to Parquet files for downstream audit
// tooling.
type Writer struct {
	logger *zap.Logger
}

// NewWriter creates an annotation writer.
func NewWriter(logger *zap.Logger) *Writer {
	return &Writer{logger: logger}
}

// WriteParquet writes one document's annotation records to path.
func (w *Writer) WriteParquet(path, docID string, entities []entity.Entity) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create annotation file: %w", err)
	}

	pw := parquet.NewWriter(file)
	records := Annotations(docID, entities)
	for i := range records {
		if err := pw.Write(&records[i]); err != nil {
			file.Close()
			return fmt.Errorf("failed to write annotation record: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finalize annotation file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close annotation file: %w", err)
	}

	w.logger.Info("Annotations exported",
		zap.String("path", path),
		zap.String("document_id", docID),
		zap.Int("records", len(records)))

	return nil
}

// ReadParquet loads annotation records back from path.
func (w *Writer) ReadParquet(path string) ([]AnnotationRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotation file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	var out []AnnotationRecord
	for {
		var record AnnotationRecord
		if err := reader.Read(&record); err != nil {
			break
		}
		out = append(out, record)
	}
	return out, nil
}
