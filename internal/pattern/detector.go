package pattern

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
	"go.uber.org/zap"
)

// Detector handles structured PII detection over raw text. It is pure with
// respect to its input: the text is never mutated and detection never fails.
type Detector struct {
	rules   []DetectionRule
	enabled map[string]bool
	logger  *logger.Logger
}

// New creates a pattern detector with the given category configuration.
func New(cfg config.DetectionConfig, log *logger.Logger) (*Detector, error) {
	d := &Detector{
		rules:   GetDefaultRules(),
		enabled: make(map[string]bool),
		logger:  log,
	}

	if err := d.configureDetectors(cfg.Detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("Pattern detector initialized",
		zap.Int("total_rules", len(d.rules)),
		zap.Int("enabled_rules", d.countEnabledRules()),
	)

	return d, nil
}

// configureDetectors enables/disables rules based on configuration. Names
// match either a rule name or an entity type (enabling all rules of the type).
func (d *Detector) configureDetectors(detectors []string) error {
	for _, rule := range d.rules {
		d.enabled[rule.Name] = false
	}

	for _, name := range detectors {
		if name == "all" {
			for _, rule := range d.rules {
				d.enabled[rule.Name] = true
			}
			continue
		}

		found := false
		for _, rule := range d.rules {
			if rule.Name == name || string(rule.Type) == name {
				d.enabled[rule.Name] = true
				found = true
			}
		}
		if !found {
			return fmt.Errorf("unknown detector: %s", name)
		}
	}

	return nil
}

// Detect scans text with every enabled rule and returns structured PII
// entities. Overlapping matches within one category are discarded;
// cross-category overlaps are left for the merger to resolve.
func (d *Detector) Detect(text string) []entity.Entity {
	if strings.TrimSpace(text) == "" {
		return []entity.Entity{}
	}

	byType := make(map[entity.Type][]entity.Entity)

	for _, rule := range d.rules {
		if !d.enabled[rule.Name] {
			continue
		}

		for _, loc := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if rule.Group > 0 && 2*rule.Group+1 < len(loc) && loc[2*rule.Group] >= 0 {
				start, end = loc[2*rule.Group], loc[2*rule.Group+1]
			}
			value := text[start:end]

			if rule.MinLen > 0 && len(value) < rule.MinLen {
				continue
			}
			if rule.Validate != nil && !rule.Validate(value) {
				continue
			}

			byType[rule.Type] = append(byType[rule.Type], entity.Entity{
				Type:       rule.Type,
				Value:      value,
				Start:      start,
				End:        end,
				Confidence: 1.0,
				Redact:     true,
				Suggested:  entity.SuggestedReplacement(rule.Type),
				Source:     entity.SourcePattern,
			})
		}
	}

	detections := make([]entity.Entity, 0)
	for _, ents := range byType {
		detections = append(detections, dropOverlapsWithinCategory(ents)...)
	}

	sort.Slice(detections, func(i, j int) bool {
		if detections[i].Start != detections[j].Start {
			return detections[i].Start < detections[j].Start
		}
		return detections[i].End < detections[j].End
	})

	for i := range detections {
		detections[i].ID = fmt.Sprintf("pattern-%s-%d", detections[i].Type, i)
	}

	if d.logger != nil {
		d.logger.Debug("Pattern detection complete", zap.Int("entities", len(detections)))
	}

	return detections
}

// dropOverlapsWithinCategory keeps the earliest match when two rules of the
// same category overlap (e.g. a labeled and a bare date both covering one DOB).
func dropOverlapsWithinCategory(ents []entity.Entity) []entity.Entity {
	sort.Slice(ents, func(i, j int) bool {
		if ents[i].Start != ents[j].Start {
			return ents[i].Start < ents[j].Start
		}
		return ents[i].End > ents[j].End
	})

	kept := ents[:0]
	lastEnd := -1
	for _, e := range ents {
		if e.Start < lastEnd {
			continue
		}
		kept = append(kept, e)
		lastEnd = e.End
	}
	return kept
}

// countEnabledRules returns the number of enabled detection rules.
func (d *Detector) countEnabledRules() int {
	count := 0
	for _, enabled := range d.enabled {
		if enabled {
			count++
		}
	}
	return count
}

// EnabledRules returns the names of the enabled rules.
func (d *Detector) EnabledRules() []string {
	var enabled []string
	for name, on := range d.enabled {
		if on {
			enabled = append(enabled, name)
		}
	}
	sort.Strings(enabled)
	return enabled
}

// defaultDetector backs the package-level entry point.
var defaultDetector = &Detector{
	rules:   GetDefaultRules(),
	enabled: allEnabled(GetDefaultRules()),
}

func allEnabled(rules []DetectionRule) map[string]bool {
	m := make(map[string]bool, len(rules))
	for _, r := range rules {
		m[r.Name] = true
	}
	return m
}

// DetectPatternPII runs all built-in rules against text.
func DetectPatternPII(text string) []entity.Entity {
	return defaultDetector.Detect(text)
}
