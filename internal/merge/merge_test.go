package merge

import (
	"testing"

	"github.com/docveil/docveil/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ent(typ entity.Type, value string, start, end int, conf float64, src entity.Source) entity.Entity {
	return entity.Entity{Type: typ, Value: value, Start: start, End: end, Confidence: conf, Source: src}
}

func TestCoalesceAdjacentNames(t *testing.T) {
	// "John" [0,4) and "Smith" [5,10): one-char gap, same type.
	got := CoalesceAdjacent([]entity.Entity{
		ent(entity.TypeName, "John", 0, 4, 0.8, entity.SourceML),
		ent(entity.TypeName, "Smith", 5, 10, 0.9, entity.SourceML),
	})
	require.Len(t, got, 1)
	assert.Equal(t, "John Smith", got[0].Value)
	assert.Equal(t, 0, got[0].Start)
	assert.Equal(t, 10, got[0].End)
	assert.Equal(t, 0.9, got[0].Confidence, "confidence should be the max of the pair")
}

func TestCoalesceNameGapTolerance(t *testing.T) {
	got := CoalesceAdjacent([]entity.Entity{
		ent(entity.TypeName, "Mary", 0, 4, 0.8, entity.SourceML),
		ent(entity.TypeName, "Anne", 7, 11, 0.8, entity.SourceML),
	})
	assert.Len(t, got, 1, "three-char gap should merge names")

	got = CoalesceAdjacent([]entity.Entity{
		ent(entity.TypeName, "Mary", 0, 4, 0.8, entity.SourceML),
		ent(entity.TypeName, "Anne", 8, 12, 0.8, entity.SourceML),
	})
	assert.Len(t, got, 2, "four-char gap should not merge")
}

func TestCoalesceOtherTypesUseTightGap(t *testing.T) {
	got := CoalesceAdjacent([]entity.Entity{
		ent(entity.TypeOrganization, "Acme", 0, 4, 0.8, entity.SourceML),
		ent(entity.TypeOrganization, "Corp", 7, 11, 0.8, entity.SourceML),
	})
	assert.Len(t, got, 2, "three-char gap should not merge organizations")

	got = CoalesceAdjacent([]entity.Entity{
		ent(entity.TypeOrganization, "Acme", 0, 4, 0.8, entity.SourceML),
		ent(entity.TypeOrganization, "Corp", 5, 9, 0.8, entity.SourceML),
	})
	assert.Len(t, got, 1, "one-char gap should merge organizations")
}

func TestCoalesceDifferentTypesNeverMerge(t *testing.T) {
	got := CoalesceAdjacent([]entity.Entity{
		ent(entity.TypeName, "Paris", 0, 5, 0.8, entity.SourceML),
		ent(entity.TypeLocation, "France", 6, 12, 0.8, entity.SourceML),
	})
	assert.Len(t, got, 2)
}

func TestCoalesceEmptyInput(t *testing.T) {
	assert.Empty(t, CoalesceAdjacent(nil))
}

func TestResolveHigherPriorityWinsOverlap(t *testing.T) {
	// The recognizer tagged the email span as a name; the structured email
	// entity must survive.
	got := Resolve([]entity.Entity{
		ent(entity.TypeEmail, "jane@example.com", 10, 26, 1.0, entity.SourcePattern),
		ent(entity.TypeName, "jane@example.com", 10, 26, 0.9, entity.SourceML),
	})
	require.Len(t, got, 1)
	assert.Equal(t, entity.TypeEmail, got[0].Type)
}

func TestResolveFirstInsertedWinsTies(t *testing.T) {
	// Same type, same span: the earlier pooled entity is kept.
	got := Resolve([]entity.Entity{
		ent(entity.TypeName, "first", 0, 5, 0.7, entity.SourceML),
		ent(entity.TypeName, "first", 0, 5, 0.95, entity.SourceCustom),
	})
	require.Len(t, got, 1)
	assert.Equal(t, entity.SourceML, got[0].Source, "tie must go to the first-inserted entity")
}

func TestResolveDisjointEntitiesAllSurvive(t *testing.T) {
	got := Resolve([]entity.Entity{
		ent(entity.TypeName, "b", 20, 21, 0.9, entity.SourceML),
		ent(entity.TypeEmail, "a", 0, 1, 1.0, entity.SourcePattern),
	})
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Start, "output must be sorted by start")
	assert.Equal(t, "pii-0", got[0].ID)
	assert.Equal(t, "pii-1", got[1].ID)
}

func TestPoolOrderIsPatternMLCustom(t *testing.T) {
	pattern := []entity.Entity{ent(entity.TypeCustom, "x", 0, 5, 1.0, entity.SourcePattern)}
	ml := []entity.Entity{ent(entity.TypeCustom, "x", 0, 5, 1.0, entity.SourceML)}
	custom := []entity.Entity{ent(entity.TypeCustom, "x", 0, 5, 1.0, entity.SourceCustom)}

	got := Pool(pattern, ml, custom)
	require.Len(t, got, 1)
	assert.Equal(t, entity.SourcePattern, got[0].Source, "pool order is part of the contract")
}
