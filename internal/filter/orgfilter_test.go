package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/docveil/docveil/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func org(value string, conf float64) entity.Entity {
	return entity.Entity{Type: entity.TypeOrganization, Value: value, Confidence: conf, Source: entity.SourceML}
}

func TestFilterOnlyTouchesOrganizations(t *testing.T) {
	f := New(zap.NewNop())

	in := []entity.Entity{
		{Type: entity.TypeName, Value: "AI", Confidence: 0.5, Source: entity.SourceML},
		{Type: entity.TypeEmail, Value: "a@b.com", Confidence: 1.0, Source: entity.SourcePattern},
	}
	assert.Len(t, f.Filter(in), 2, "non-organization entities must pass through")
}

func TestFilterDecisions(t *testing.T) {
	f := New(zap.NewNop())

	tests := []struct {
		name string
		e    entity.Entity
		keep bool
	}{
		{"denylisted acronym", org("AI", 0.95), false},
		{"denylisted word in phrase", org("Tech Solutions", 0.95), false},
		{"tech keyword", org("Python", 0.9), false},
		{"short single word", org("Acme", 0.9), false},
		{"single word under length floor", org("Initech", 0.9), false},
		{"generic word pile", org("Machine Learning Platform", 0.95), false},
		{"proper multi-word name", org("Acme Corporation", 0.8), true},
		{"low confidence multi-word", org("Acme Corporation", 0.6), false},
		{"trusted high confidence", org("Initech Holdings", 0.95), true},
		{"whitespace only", org("   ", 0.9), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.Filter([]entity.Entity{tt.e})
			if tt.keep {
				assert.Len(t, out, 1, "%q should be kept", tt.e.Value)
			} else {
				assert.Empty(t, out, "%q should be filtered", tt.e.Value)
			}
		})
	}
}

func TestLoadListsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lists.yaml")
	content := "denylist:\n  - initech\ntech_keywords:\n  - golang\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	// The file overrides the denylist, so a custom entry now blocks.
	assert.Empty(t, f.Filter([]entity.Entity{org("Initech Holdings", 0.95)}),
		"file denylist not applied")
	// The omitted generic list keeps its defaults.
	assert.Empty(t, f.Filter([]entity.Entity{org("Machine Learning Platform", 0.95)}),
		"default generic words lost")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml", zap.NewNop())
	assert.Error(t, err)
}
