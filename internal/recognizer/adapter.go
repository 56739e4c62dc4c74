package recognizer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/merge"
	"go.uber.org/zap"
)

// Adapter runs named-entity recognition behind a single worker goroutine. The
// worker owns the backend exclusively; callers talk to it through Detect, and
// the per-call reply channel correlates each response with its request. A
// worker panic moves the adapter to the terminal error state instead of
// respawning, and all detection from then on degrades to the caller's
// fallback path.
type Adapter struct {
	cfg    Config
	logger *zap.Logger

	state atomic.Int32

	backend  NERBackend
	injected bool

	requests chan detectRequest
	crashed  chan struct{}
	done     chan struct{}

	initOnce sync.Once
	initDone chan struct{}
	initErr  error

	closeOnce sync.Once
}

type detectRequest struct {
	ctx   context.Context
	text  string
	reply chan []entity.Entity
}

// New creates an adapter in the uninitialized state. Zero-valued config
// fields get defaults; nothing is loaded until Init.
func New(cfg Config, logger *zap.Logger) *Adapter {
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = defaultMaxChunkChars
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = defaultMaxLength
	}
	if cfg.DetectTimeout <= 0 {
		cfg.DetectTimeout = defaultDetectTimeout
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = defaultMinConfidence
	}

	return &Adapter{
		cfg:      cfg,
		logger:   logger,
		requests: make(chan detectRequest),
		crashed:  make(chan struct{}),
		done:     make(chan struct{}),
		initDone: make(chan struct{}),
	}
}

// NewWithBackend creates an adapter around an already-constructed backend.
// Init skips model download and wires the worker directly to it.
func NewWithBackend(cfg Config, logger *zap.Logger, backend NERBackend) *Adapter {
	a := New(cfg, logger)
	a.backend = backend
	a.injected = true
	return a
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	return State(a.state.Load())
}

func (a *Adapter) setState(s State) {
	a.state.Store(int32(s))
}

// Init loads the model and starts the worker. It is idempotent: the first
// call does the work and every later call waits for it and returns the same
// result. progress, if non-nil, receives loading percentages in [0, 100] and
// is only consulted by the winning call.
func (a *Adapter) Init(ctx context.Context, progress func(int)) error {
	a.initOnce.Do(func() {
		a.setState(StateLoading)
		a.initErr = a.load(ctx, progress)
		if a.initErr != nil {
			a.setState(StateError)
		} else {
			a.setState(StateReady)
			go a.worker()
		}
		close(a.initDone)
	})

	select {
	case <-a.initDone:
		return a.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) load(ctx context.Context, progress func(int)) error {
	if a.injected {
		if a.backend == nil || !a.backend.IsReady() {
			return ErrModelUnavailable
		}
		if progress != nil {
			progress(100)
		}
		return nil
	}

	modelDir, err := EnsureModel(ctx, a.cfg, a.logger, progress)
	if err != nil {
		return err
	}

	a.backend = NewNERBackend(a.logger, modelDir, a.cfg.MaxLength)
	if a.backend == nil {
		// Build without inference support, or backend construction failed.
		return ErrModelUnavailable
	}
	return nil
}

// Detect runs recognition over text. It blocks until the worker responds, the
// context is done, the configured timeout elapses, or the worker crashes.
// Every error return means "no ML entities"; callers fall back to pattern
// results alone.
func (a *Adapter) Detect(ctx context.Context, text string) ([]entity.Entity, error) {
	switch a.State() {
	case StateReady, StateDetecting:
	case StateError:
		return nil, ErrWorkerCrashed
	default:
		return nil, ErrModelUnavailable
	}

	timer := time.NewTimer(a.cfg.DetectTimeout)
	defer timer.Stop()

	req := detectRequest{ctx: ctx, text: text, reply: make(chan []entity.Entity, 1)}

	select {
	case a.requests <- req:
	case <-a.done:
		return nil, ErrModelUnavailable
	case <-a.crashed:
		return nil, ErrWorkerCrashed
	case <-timer.C:
		return nil, ErrDetectionTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case ents := <-req.reply:
		return ents, nil
	case <-a.done:
		return nil, ErrModelUnavailable
	case <-a.crashed:
		return nil, ErrWorkerCrashed
	case <-timer.C:
		return nil, ErrDetectionTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the worker and releases backend resources. Detect calls after
// Close report the model as unavailable. The uninitialized state is set
// before the done channel closes, and the worker only moves state with
// compare-and-swap, so a request finishing mid-Close cannot resurrect the
// ready state.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.setState(StateUninitialized)
		close(a.done)
		if a.backend != nil {
			err = a.backend.Close()
		}
	})
	return err
}

// worker is the single goroutine that touches the backend. A panic anywhere
// in request handling is terminal: state moves to error, the crashed channel
// wakes all waiters, and no replacement worker is started.
func (a *Adapter) worker() {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Recognizer worker crashed", zap.Any("panic", r))
			a.setState(StateError)
			close(a.crashed)
		}
	}()

	for {
		select {
		case <-a.done:
			return
		case req := <-a.requests:
			a.state.CompareAndSwap(int32(StateReady), int32(StateDetecting))
			ents := a.detect(req.ctx, req.text)
			a.state.CompareAndSwap(int32(StateDetecting), int32(StateReady))
			req.reply <- ents
		}
	}
}

// detect chunks the text, scores each chunk, and assembles the entity list.
// A chunk that fails to score is logged and skipped; the rest still count.
func (a *Adapter) detect(ctx context.Context, text string) []entity.Entity {
	var ents []entity.Entity

	for _, chunk := range splitChunks(text, a.cfg.MaxChunkChars) {
		spans, err := a.backend.Score(ctx, chunk.Text)
		if err != nil {
			a.logger.Warn("Chunk scoring failed",
				zap.Int("offset", chunk.Offset),
				zap.Int("size", len(chunk.Text)),
				zap.Error(err))
			continue
		}
		ents = append(ents, a.spanEntities(spans, chunk.Offset)...)
	}

	ents = merge.CoalesceAdjacent(ents)
	for i := range ents {
		ents[i].ID = fmt.Sprintf("ml-%d", i)
		ents[i].Suggested = entity.SuggestedReplacement(ents[i].Type)
	}
	return ents
}

// spanEntities converts backend spans to entities, dropping low-confidence
// scores, subword fragments, and noise tokens, and shifting chunk-local
// offsets to absolute positions.
func (a *Adapter) spanEntities(spans []RawSpan, offset int) []entity.Entity {
	out := make([]entity.Entity, 0, len(spans))
	for _, s := range spans {
		typ, ok := labelTypeMap[s.Label]
		if !ok {
			continue
		}
		if s.Score < a.cfg.MinConfidence {
			continue
		}
		if strings.HasPrefix(s.Word, subwordPrefix) {
			continue
		}
		if len(s.Word) < 2 || punctuationOnly(s.Word) {
			continue
		}

		out = append(out, entity.Entity{
			Type:       typ,
			Value:      s.Word,
			Start:      offset + s.Start,
			End:        offset + s.End,
			Confidence: s.Score,
			Source:     entity.SourceML,
		})
	}
	return out
}

func punctuationOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}
