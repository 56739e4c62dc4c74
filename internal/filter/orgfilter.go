package filter

import (
	"fmt"
	"os"
	"strings"

	"github.com/docveil/docveil/internal/entity"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// OrgFilter suppresses false-positive organization detections from the
// recognizer. It only ever drops organization-typed spans; every other type
// passes through untouched.
type OrgFilter struct {
	denylist map[string]bool
	generic  map[string]bool
	tech     map[string]bool
	logger   *zap.Logger
}

// Confidence thresholds. Organizations get a stricter floor than the 0.7
// applied to names and locations upstream; very confident multi-word spans
// bypass the lexical heuristics entirely.
const (
	minOrgConfidence   = 0.75
	trustedConfidence  = 0.9
	genericWordRatio   = 0.7
	shortSingleWordLen = 8
	shortDenylistLen   = 4
)

// defaultDenylist holds known-generic single words and acronyms the model
// habitually tags as organizations.
var defaultDenylist = []string{
	"ai", "cbs", "cbse", "tech", "system", "systems", "tool", "tools",
	"co", "da", "re", "media", "multi", "too", "art", "intelligence",
	"machine", "learning", "platform", "con", "sa",
}

// defaultGenericWords are words that, in bulk, indicate a skills list rather
// than an organization name.
var defaultGenericWords = []string{
	"tools", "tech", "systems", "platform", "media", "art",
	"intelligence", "machine", "learning",
}

// defaultTechKeywords are technologies commonly misdetected as organizations.
var defaultTechKeywords = []string{
	"python", "react", "javascript", "typescript", "java", "html", "css",
	"sql", "mongodb", "nodejs", "django", "flask", "vue", "angular",
	"comfyui", "yolo", "chatgpt", "claude", "cursor", "vscode", "ai", "ml",
}

// listFile is the optional YAML override for the built-in word lists.
type listFile struct {
	Denylist     []string `yaml:"denylist"`
	GenericWords []string `yaml:"generic_words"`
	TechKeywords []string `yaml:"tech_keywords"`
}

// New creates a filter with the built-in lists.
func New(logger *zap.Logger) *OrgFilter {
	return &OrgFilter{
		denylist: toSet(defaultDenylist),
		generic:  toSet(defaultGenericWords),
		tech:     toSet(defaultTechKeywords),
		logger:   logger,
	}
}

// Load creates a filter from a YAML list file, falling back to the built-in
// defaults for any list the file omits.
func Load(path string, logger *zap.Logger) (*OrgFilter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read filter lists at %s: %w", path, err)
	}

	var lists listFile
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return nil, fmt.Errorf("could not parse filter lists at %s: %w", path, err)
	}

	f := New(logger)
	if len(lists.Denylist) > 0 {
		f.denylist = toSet(lists.Denylist)
	}
	if len(lists.GenericWords) > 0 {
		f.generic = toSet(lists.GenericWords)
	}
	if len(lists.TechKeywords) > 0 {
		f.tech = toSet(lists.TechKeywords)
	}

	logger.Info("Organization filter lists loaded",
		zap.String("path", path),
		zap.Int("denylist", len(f.denylist)),
		zap.Int("generic_words", len(f.generic)),
		zap.Int("tech_keywords", len(f.tech)),
	)

	return f, nil
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = true
	}
	return set
}

// Filter returns entities with false-positive organizations removed.
// Deterministic and pure; non-organization entities are never touched.
func (f *OrgFilter) Filter(entities []entity.Entity) []entity.Entity {
	out := make([]entity.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Type != entity.TypeOrganization {
			out = append(out, e)
			continue
		}
		if f.allowed(e) {
			out = append(out, e)
		} else if f.logger != nil {
			f.logger.Debug("Filtered organization false positive",
				zap.String("value", e.Value),
				zap.Float64("confidence", e.Confidence),
			)
		}
	}
	return out
}

// allowed applies the lexical and confidence heuristics to one organization.
func (f *OrgFilter) allowed(e entity.Entity) bool {
	value := strings.TrimSpace(e.Value)
	lower := strings.ToLower(value)
	words := strings.Fields(value)
	if len(words) == 0 {
		return false
	}

	// Full-text or per-word denylist hit.
	if f.denylist[lower] {
		return false
	}
	for _, w := range words {
		if f.denylist[strings.ToLower(w)] {
			return false
		}
	}

	// Mostly generic words ("Art Intelligence Machine Learning").
	genericCount := 0
	for _, w := range words {
		if f.generic[strings.ToLower(w)] {
			genericCount++
		}
	}
	if float64(genericCount) >= genericWordRatio*float64(len(words)) && genericCount > 0 {
		return false
	}

	// Short single-word fragments and acronyms.
	if len(words) == 1 && len(value) < shortDenylistLen {
		return false
	}

	if f.tech[lower] {
		return false
	}

	if len(words) == 1 && len(value) < shortSingleWordLen {
		return false
	}

	// Three or more words where every word is generic, a tech keyword, or a
	// short fragment is list noise, not a name.
	if len(words) >= 3 {
		allCommon := true
		for _, w := range words {
			wl := strings.ToLower(w)
			if !f.generic[wl] && !f.tech[wl] && len(w) > 3 {
				allCommon = false
				break
			}
		}
		if allCommon {
			return false
		}
	}

	// Very confident multi-word spans are trusted regardless of the lexical
	// heuristics above.
	if e.Confidence > trustedConfidence && len(value) >= 3 && len(words) >= 2 {
		return true
	}

	return e.Confidence >= minOrgConfidence
}
