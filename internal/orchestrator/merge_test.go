package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripforge/placescout/internal/task"
)

func TestMergeResultsScheduleConcatenatesDays(t *testing.T) {
	t.Parallel()

	first := map[string]any{"days": []any{
		map[string]any{"day": float64(1)},
		map[string]any{"day": float64(2)},
	}}
	second := map[string]any{"days": []any{
		map[string]any{"day": float64(3)},
	}}

	merged := mergeResults(task.KindSchedule, nil, first)
	merged = mergeResults(task.KindSchedule, merged, second)

	days := merged.(map[string]any)["days"].([]any)
	require.Len(t, days, 3)
	assert.Equal(t, float64(1), days[0].(map[string]any)["day"])
	assert.Equal(t, float64(3), days[2].(map[string]any)["day"])
}

func TestMergeResultsFreeform(t *testing.T) {
	t.Parallel()

	first := map[string]any{
		"enriched_places": []any{"a"},
		"stats":           map[string]any{"count": float64(1)},
		"note":            "first",
	}
	second := map[string]any{
		"enriched_places": []any{"b", "c"},
		"stats":           map[string]any{"extra": true},
		"note":            "second",
	}

	merged := mergeResults(task.KindFreeform, first, second).(map[string]any)

	assert.Equal(t, []any{"a", "b", "c"}, merged["enriched_places"])
	assert.Equal(t, map[string]any{"count": float64(1), "extra": true}, merged["stats"])
	assert.Equal(t, "second", merged["note"])
}

func TestMergeResultsFirstChunk(t *testing.T) {
	t.Parallel()

	data := map[string]any{"days": []any{}}
	assert.Equal(t, data, mergeResults(task.KindSchedule, nil, data))
}

func TestCoveredEntities(t *testing.T) {
	t.Parallel()

	schedule := map[string]any{"days": []any{
		map[string]any{"day": float64(1), "activities": []any{
			map[string]any{"name": "Castle Hill"},
			map[string]any{"place_id": "p-42"},
		}},
		map[string]any{"day": float64(2), "activities": []any{
			map[string]any{"name": "Castle Hill"},
			map[string]any{"name": "Old Port"},
		}},
	}}

	got := coveredEntities(task.KindSchedule, []string{"day 1", "day 2"}, schedule)
	assert.Equal(t, []string{"Castle Hill", "p-42", "Old Port"}, got)

	// Free-form chunks remember their input labels.
	labels := []string{"Place 0", "Place 1"}
	assert.Equal(t, labels, coveredEntities(task.KindFreeform, labels, map[string]any{}))

	// Malformed schedule output contributes nothing.
	assert.Empty(t, coveredEntities(task.KindSchedule, []string{"day 1"}, "not an object"))
}

func TestParseDays(t *testing.T) {
	t.Parallel()

	tests := []struct {
		feedback string
		want     int
	}{
		{"days=9", 9},
		{"Nice trip, days=12, relaxed", 12},
		{"10 days in Provence", 10},
		{"5 days, no museums", 5},
		{"no duration given", 7},
		{"days=0", 7},
		{"", 7},
	}

	for _, tt := range tests {
		t.Run(tt.feedback, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseDays(tt.feedback, 7))
		})
	}
}
