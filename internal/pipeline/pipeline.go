package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/docveil/docveil/internal/cache"
	"github.com/docveil/docveil/internal/decision"
	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/filter"
	"github.com/docveil/docveil/internal/merge"
	"github.com/docveil/docveil/internal/pattern"
	"github.com/docveil/docveil/internal/recognizer"
	"github.com/docveil/docveil/internal/rules"
	"github.com/docveil/docveil/internal/websocket"
	"go.uber.org/zap"
)

// Recognizer is the ML detection dependency of the pipeline. Satisfied by
// *recognizer.Adapter.
type Recognizer interface {
	Detect(ctx context.Context, text string) ([]entity.Entity, error)
	State() recognizer.State
}

// Result is the outcome of one full detection run.
type Result struct {
	Entities   []entity.Entity `json:"entities"`
	Degraded   bool            `json:"degraded"`
	Generation uint64          `json:"generation,omitempty"`
	Duration   time.Duration   `json:"-"`
	CacheHit   bool            `json:"-"`
}

// Pipeline wires pattern detection, ML recognition, filtering, custom rules,
// merging, and context decisions into one Detect call. Pattern detection is
// the floor: a recognizer failure degrades the result, it never fails it.
type Pipeline struct {
	detector   *pattern.Detector
	recognizer Recognizer
	orgFilter  *filter.OrgFilter
	rulesStore rules.Store
	cache      *cache.ResultCache
	hub        *websocket.Hub
	logger     *zap.Logger
}

// Options carries the optional pipeline dependencies. Nil fields disable the
// corresponding stage.
type Options struct {
	Detector   *pattern.Detector
	Recognizer Recognizer
	OrgFilter  *filter.OrgFilter
	RulesStore rules.Store
	Cache      *cache.ResultCache
	Hub        *websocket.Hub
}

// New assembles a pipeline.
func New(opts Options, logger *zap.Logger) (*Pipeline, error) {
	if opts.Detector == nil && opts.Recognizer == nil {
		return nil, errors.New("pipeline needs at least one detection source")
	}
	return &Pipeline{
		detector:   opts.Detector,
		recognizer: opts.Recognizer,
		orgFilter:  opts.OrgFilter,
		rulesStore: opts.RulesStore,
		cache:      opts.Cache,
		hub:        opts.Hub,
		logger:     logger,
	}, nil
}

// Detect runs the full pipeline over text. Pattern rules and the recognizer
// run concurrently; their outputs are filtered, pooled with custom rule
// matches, deduplicated by priority, and annotated with redaction decisions.
func (p *Pipeline) Detect(ctx context.Context, text string) (*Result, error) {
	start := time.Now()

	customRules := p.loadRules(ctx)
	fingerprint := p.fingerprint(customRules)

	if p.cache != nil {
		if cached, ok := p.cache.Get(ctx, text, fingerprint); ok {
			return &Result{Entities: cached, Duration: time.Since(start), CacheHit: true}, nil
		}
	}

	var (
		wg          sync.WaitGroup
		patternEnts []entity.Entity
		mlEnts      []entity.Entity
		mlErr       error
	)

	if p.detector != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			patternEnts = p.detector.Detect(text)
		}()
	}

	if p.recognizer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mlEnts, mlErr = p.recognizer.Detect(ctx, text)
		}()
	}

	wg.Wait()

	degraded := false
	if mlErr != nil {
		// Structured detection still stands on its own.
		degraded = true
		mlEnts = nil
		p.logger.Warn("Recognizer unavailable, continuing with pattern detection only",
			zap.Error(mlErr))
	}

	if p.orgFilter != nil && len(mlEnts) > 0 {
		mlEnts = p.orgFilter.Filter(mlEnts)
	}

	customEnts := rules.Apply(text, customRules)

	merged := merge.Pool(patternEnts, mlEnts, customEnts)
	annotated := decision.Annotate(merged, text)

	if p.cache != nil && !degraded {
		if err := p.cache.Store(ctx, text, fingerprint, annotated); err != nil {
			p.logger.Warn("Failed to cache detection result", zap.Error(err))
		}
	}

	result := &Result{
		Entities: annotated,
		Degraded: degraded,
		Duration: time.Since(start),
	}
	p.broadcast(result)

	p.logger.Debug("Detection complete",
		zap.Int("entities", len(annotated)),
		zap.Bool("degraded", degraded),
		zap.Duration("duration", result.Duration))

	return result, nil
}

func (p *Pipeline) loadRules(ctx context.Context) []rules.Rule {
	if p.rulesStore == nil {
		return nil
	}
	ruleSet, err := p.rulesStore.List(ctx)
	if err != nil {
		p.logger.Warn("Failed to load custom rules", zap.Error(err))
		return nil
	}
	return ruleSet
}

// fingerprint identifies the detection configuration that produced a result,
// so cached entries go stale when detectors or custom rules change.
func (p *Pipeline) fingerprint(customRules []rules.Rule) string {
	var b strings.Builder
	if p.detector != nil {
		b.WriteString(strings.Join(p.detector.EnabledRules(), ","))
	}
	b.WriteByte('|')
	if p.recognizer != nil {
		b.WriteString(p.recognizer.State().String())
	}
	for _, r := range customRules {
		fmt.Fprintf(&b, "|%d:%s:%t:%d", r.ID, r.Pattern, r.IsRegex, r.UpdatedAt.UnixNano())
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

func (p *Pipeline) broadcast(result *Result) {
	if p.hub == nil {
		return
	}

	byType := make(map[string]int)
	redacted := 0
	for _, e := range result.Entities {
		byType[string(e.Type)]++
		if e.Redact {
			redacted++
		}
	}

	p.hub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeDetection,
		Timestamp: time.Now(),
		Data: websocket.DetectionEvent{
			Generation:   result.Generation,
			TotalFound:   len(result.Entities),
			Redacted:     redacted,
			ByType:       byType,
			Degraded:     result.Degraded,
			ProcessingMS: float64(result.Duration.Microseconds()) / 1000,
		},
	})
}
