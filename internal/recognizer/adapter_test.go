package recognizer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docveil/docveil/internal/entity"
	"go.uber.org/zap"
)

// fakeBackend serves canned spans keyed by substring match on the scored
// chunk, so tests control exactly what the model "sees".
type fakeBackend struct {
	spans   map[string][]RawSpan
	scoreFn func(text string) ([]RawSpan, error)
	closed  bool
}

func (f *fakeBackend) Score(ctx context.Context, text string) ([]RawSpan, error) {
	if f.scoreFn != nil {
		return f.scoreFn(text)
	}
	var out []RawSpan
	for needle, spans := range f.spans {
		if idx := strings.Index(text, needle); idx >= 0 {
			for _, s := range spans {
				s.Start += idx
				s.End += idx
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (f *fakeBackend) IsReady() bool { return true }
func (f *fakeBackend) Close() error  { f.closed = true; return nil }

func readyAdapter(t *testing.T, backend NERBackend, cfg Config) *Adapter {
	t.Helper()
	a := NewWithBackend(cfg, zap.NewNop(), backend)
	if err := a.Init(context.Background(), nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAdapterLifecycle(t *testing.T) {
	a := NewWithBackend(Config{}, zap.NewNop(), &fakeBackend{})
	if a.State() != StateUninitialized {
		t.Fatalf("new adapter state = %v, want uninitialized", a.State())
	}

	if _, err := a.Detect(context.Background(), "text"); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("detect before init: err = %v, want ErrModelUnavailable", err)
	}

	if err := a.Init(context.Background(), nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	if a.State() != StateReady {
		t.Errorf("state after init = %v, want ready", a.State())
	}
	a.Close()
}

func TestAdapterInitIdempotent(t *testing.T) {
	calls := 0
	a := NewWithBackend(Config{}, zap.NewNop(), &fakeBackend{})
	defer a.Close()

	for i := 0; i < 3; i++ {
		if err := a.Init(context.Background(), func(pct int) { calls++ }); err != nil {
			t.Fatalf("init %d: %v", i, err)
		}
	}
	// Only the winning call reports progress.
	if calls != 1 {
		t.Errorf("progress calls = %d, want 1", calls)
	}
}

func TestAdapterInitNilBackendFails(t *testing.T) {
	a := NewWithBackend(Config{}, zap.NewNop(), nil)
	err := a.Init(context.Background(), nil)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
	if a.State() != StateError {
		t.Errorf("state = %v, want error", a.State())
	}
}

func TestAdapterDetect(t *testing.T) {
	backend := &fakeBackend{spans: map[string][]RawSpan{
		"John Smith": {
			{Label: "B-PER", Word: "John", Start: 0, End: 4, Score: 0.95},
			{Label: "I-PER", Word: "Smith", Start: 5, End: 10, Score: 0.93},
		},
	}}
	a := readyAdapter(t, backend, Config{})

	ents, err := a.Detect(context.Background(), "Resume of John Smith, engineer.")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(ents) != 1 {
		t.Fatalf("expected 1 coalesced entity, got %d: %+v", len(ents), ents)
	}

	e := ents[0]
	if e.Type != entity.TypeName {
		t.Errorf("type = %v, want name", e.Type)
	}
	if e.Value != "John Smith" {
		t.Errorf("value = %q, want John Smith", e.Value)
	}
	if e.Start != 10 || e.End != 20 {
		t.Errorf("span = [%d, %d), want [10, 20)", e.Start, e.End)
	}
	if e.Source != entity.SourceML {
		t.Errorf("source = %v, want ml", e.Source)
	}
	if e.ID != "ml-0" {
		t.Errorf("id = %q, want ml-0", e.ID)
	}
	if a.State() != StateReady {
		t.Errorf("state after detect = %v, want ready", a.State())
	}
}

func TestAdapterDetectFiltersNoise(t *testing.T) {
	backend := &fakeBackend{spans: map[string][]RawSpan{
		"input": {
			{Label: "B-PER", Word: "Alice", Start: 0, End: 5, Score: 0.5},    // below floor
			{Label: "B-ORG", Word: "##corp", Start: 6, End: 10, Score: 0.9},  // subword
			{Label: "B-LOC", Word: "!", Start: 11, End: 12, Score: 0.9},      // punctuation
			{Label: "B-PER", Word: "X", Start: 13, End: 14, Score: 0.9},      // too short
			{Label: "B-MISC", Word: "thing", Start: 15, End: 20, Score: 0.9}, // unmapped label
		},
	}}
	a := readyAdapter(t, backend, Config{})

	ents, err := a.Detect(context.Background(), "input")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(ents) != 0 {
		t.Errorf("expected all spans filtered, got %+v", ents)
	}
}

func TestAdapterDetectChunksLongInput(t *testing.T) {
	backend := &fakeBackend{spans: map[string][]RawSpan{
		"Bob Jones": {{Label: "B-PER", Word: "Bob", Start: 0, End: 3, Score: 0.9},
			{Label: "I-PER", Word: "Jones", Start: 4, End: 9, Score: 0.9}},
	}}
	a := readyAdapter(t, backend, Config{MaxChunkChars: 120})

	filler := strings.Repeat("Nothing to see here. ", 10)
	text := filler + "\n\nBob Jones\n\n" + filler
	wantStart := strings.Index(text, "Bob Jones")

	ents, err := a.Detect(context.Background(), text)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(ents) != 1 {
		t.Fatalf("expected 1 entity, got %d: %+v", len(ents), ents)
	}
	if ents[0].Start != wantStart {
		t.Errorf("start = %d, want %d (chunk offset not applied)", ents[0].Start, wantStart)
	}
	if got := text[ents[0].Start:ents[0].End]; got != "Bob Jones" {
		t.Errorf("span slice = %q, want Bob Jones", got)
	}
}

func TestAdapterDetectChunkFailureIsolated(t *testing.T) {
	backend := &fakeBackend{scoreFn: func(text string) ([]RawSpan, error) {
		if strings.Contains(text, "poison") {
			return nil, errors.New("scoring blew up")
		}
		if idx := strings.Index(text, "Carol White"); idx >= 0 {
			return []RawSpan{
				{Label: "B-PER", Word: "Carol", Start: idx, End: idx + 5, Score: 0.9},
				{Label: "I-PER", Word: "White", Start: idx + 6, End: idx + 11, Score: 0.9},
			}, nil
		}
		return nil, nil
	}}
	a := readyAdapter(t, backend, Config{MaxChunkChars: 60})

	text := "poison " + strings.Repeat("x", 60) + "\n\nCarol White lives here."
	ents, err := a.Detect(context.Background(), text)
	if err != nil {
		t.Fatalf("detect should survive a failing chunk: %v", err)
	}
	if len(ents) != 1 || ents[0].Value != "Carol White" {
		t.Errorf("expected Carol White from the healthy chunk, got %+v", ents)
	}
}

func TestAdapterDetectTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	backend := &fakeBackend{scoreFn: func(string) ([]RawSpan, error) {
		<-block
		return nil, nil
	}}
	a := readyAdapter(t, backend, Config{DetectTimeout: 50 * time.Millisecond})

	_, err := a.Detect(context.Background(), "anything")
	if !errors.Is(err, ErrDetectionTimeout) {
		t.Fatalf("err = %v, want ErrDetectionTimeout", err)
	}
}

func TestAdapterWorkerCrashIsTerminal(t *testing.T) {
	backend := &fakeBackend{scoreFn: func(string) ([]RawSpan, error) {
		panic("model corrupted")
	}}
	a := NewWithBackend(Config{DetectTimeout: time.Second}, zap.NewNop(), backend)
	if err := a.Init(context.Background(), nil); err != nil {
		t.Fatalf("init: %v", err)
	}

	if _, err := a.Detect(context.Background(), "boom"); !errors.Is(err, ErrWorkerCrashed) {
		t.Fatalf("err = %v, want ErrWorkerCrashed", err)
	}
	if a.State() != StateError {
		t.Errorf("state = %v, want error", a.State())
	}
	// No respawn: later calls fail the same way.
	if _, err := a.Detect(context.Background(), "again"); !errors.Is(err, ErrWorkerCrashed) {
		t.Errorf("err = %v, want ErrWorkerCrashed on every later call", err)
	}
}

func TestAdapterCloseDuringDetect(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	backend := &fakeBackend{scoreFn: func(string) ([]RawSpan, error) {
		once.Do(func() { close(started) })
		<-release
		return nil, nil
	}}
	a := NewWithBackend(Config{DetectTimeout: time.Second}, zap.NewNop(), backend)
	if err := a.Init(context.Background(), nil); err != nil {
		t.Fatalf("init: %v", err)
	}

	inFlight := make(chan struct{})
	go func() {
		defer close(inFlight)
		a.Detect(context.Background(), "held by the backend")
	}()
	<-started

	// Close while the worker is mid-request, then let the request finish.
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	close(release)
	<-inFlight

	// The finishing request must not stamp the adapter back to ready.
	if a.State() == StateReady {
		t.Fatal("state = ready after Close, closed adapter resurrected")
	}
	if _, err := a.Detect(context.Background(), "after close"); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("detect after close: err = %v, want ErrModelUnavailable", err)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateUninitialized: "uninitialized",
		StateLoading:       "loading",
		StateReady:         "ready",
		StateDetecting:     "detecting",
		StateError:         "error",
		State(99):          "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
