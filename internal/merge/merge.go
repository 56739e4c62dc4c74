package merge

import (
	"fmt"
	"sort"

	"github.com/docveil/docveil/internal/entity"
)

// nameGap is the maximum character gap bridged when coalescing name spans.
// Model tokenization splits "First Middle Last" across whitespace and the
// occasional newline, so names tolerate a wider gap than other types.
const nameGap = 3

// defaultGap is the maximum gap for every other type.
const defaultGap = 1

// CoalesceAdjacent joins same-type entities separated by a small gap into one
// entity spanning both, with values joined by a single space and confidence
// taken as the max. It runs on one source's raw output (recognizer spans)
// before cross-source merging.
func CoalesceAdjacent(entities []entity.Entity) []entity.Entity {
	if len(entities) == 0 {
		return []entity.Entity{}
	}

	sorted := make([]entity.Entity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := make([]entity.Entity, 0, len(sorted))
	current := sorted[0]

	for _, next := range sorted[1:] {
		gap := next.Start - current.End

		maxGap := defaultGap
		if next.Type == entity.TypeName {
			maxGap = nameGap
		}

		if next.Type == current.Type && gap <= maxGap {
			current.Value = current.Value + " " + next.Value
			if next.End > current.End {
				current.End = next.End
			}
			if next.Confidence > current.Confidence {
				current.Confidence = next.Confidence
			}
			continue
		}

		merged = append(merged, current)
		current = next
	}

	return append(merged, current)
}

// Resolve combines entities pooled from all sources into one non-overlapping
// list. Callers must pool in pattern, ml, custom order: exact type ties are
// resolved by keeping the first-inserted entity, so pool order is part of the
// contract.
//
// Walking in start order, an entity is appended if it overlaps nothing
// already accepted; on overlap the higher-priority type wins and replaces the
// accepted entity in place. The result is re-sorted and ids are reassigned
// sequentially.
func Resolve(pooled []entity.Entity) []entity.Entity {
	all := make([]entity.Entity, len(pooled))
	copy(all, pooled)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Start < all[j].Start })

	merged := make([]entity.Entity, 0, len(all))

	for _, cand := range all {
		slot := -1
		for i, accepted := range merged {
			if cand.Overlaps(accepted) {
				slot = i
				break
			}
		}

		if slot == -1 {
			merged = append(merged, cand)
			continue
		}

		if entity.Priority(cand.Type) < entity.Priority(merged[slot].Type) {
			merged[slot] = cand
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Start < merged[j].Start })
	for i := range merged {
		merged[i].ID = fmt.Sprintf("pii-%d", i)
	}

	return merged
}

// Pool concatenates source lists in the pinned pattern, ml, custom order and
// resolves overlaps.
func Pool(patternEnts, mlEnts, customEnts []entity.Entity) []entity.Entity {
	pooled := make([]entity.Entity, 0, len(patternEnts)+len(mlEnts)+len(customEnts))
	pooled = append(pooled, patternEnts...)
	pooled = append(pooled, mlEnts...)
	pooled = append(pooled, customEnts...)
	return Resolve(pooled)
}
