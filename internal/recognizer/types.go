package recognizer

import (
	"errors"
	"time"

	"github.com/docveil/docveil/internal/entity"
)

// State tracks the adapter lifecycle. ERROR is terminal: a crashed worker is
// not respawned, callers must construct a fresh adapter.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateDetecting
	StateError
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDetecting:
		return "detecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Adapter failure modes. Every one of these must be caught at the call site
// and treated as "zero ML entities"; pattern detection is the baseline.
var (
	ErrModelUnavailable = errors.New("recognizer model is not ready")
	ErrDetectionTimeout = errors.New("detection timed out")
	ErrWorkerCrashed    = errors.New("recognizer worker crashed")
)

// Config holds recognizer adapter configuration.
type Config struct {
	ModelName     string        `yaml:"model_name" mapstructure:"model_name"`
	ModelURL      string        `yaml:"model_url" mapstructure:"model_url"`
	CacheDir      string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	AutoDownload  bool          `yaml:"auto_download" mapstructure:"auto_download"`
	MaxLength     int           `yaml:"max_length" mapstructure:"max_length"`
	MaxChunkChars int           `yaml:"max_chunk_chars" mapstructure:"max_chunk_chars"`
	DetectTimeout time.Duration `yaml:"detect_timeout" mapstructure:"detect_timeout"`
	MinConfidence float64       `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// Defaults applied by New for zero-valued fields.
const (
	defaultMaxChunkChars = 400
	defaultMaxLength     = 512
	defaultDetectTimeout = 30 * time.Second
	defaultMinConfidence = 0.7
)

// RawSpan is one labeled token span as produced by the scoring backend, with
// byte offsets relative to the scored chunk.
type RawSpan struct {
	Label string
	Word  string
	Start int
	End   int
	Score float64
}

// labelTypeMap maps model labels (BIO format included) to entity types.
var labelTypeMap = map[string]entity.Type{
	"PER":   entity.TypeName,
	"B-PER": entity.TypeName,
	"I-PER": entity.TypeName,
	"ORG":   entity.TypeOrganization,
	"B-ORG": entity.TypeOrganization,
	"I-ORG": entity.TypeOrganization,
	"LOC":   entity.TypeLocation,
	"B-LOC": entity.TypeLocation,
	"I-LOC": entity.TypeLocation,
}
