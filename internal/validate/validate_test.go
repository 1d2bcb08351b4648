package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const candidatesSchema = `{
	"type": "object",
	"properties": {
		"candidates": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {"name": {"type": "string"}},
				"required": ["name"]
			}
		}
	},
	"required": ["candidates"]
}`

func TestValidateHappyPath(t *testing.T) {
	t.Parallel()

	raw := "```json\n{\"candidates\": [{\"name\": \"Pont du Gard\"}]}\n```"
	res, err := Validate(raw, Spec{Schema: candidatesSchema})
	require.NoError(t, err)

	obj := res.Data.(map[string]any)
	cands := obj["candidates"].([]any)
	assert.Len(t, cands, 1)
	assert.Empty(t, res.Repairs)
}

func TestValidateSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := Validate(`{"candidates": [}`, Spec{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON syntax error")
}

func TestValidateSchemaViolation(t *testing.T) {
	t.Parallel()

	_, err := Validate(`{"candidates": [{"rating": 4.5}]}`, Spec{Schema: candidatesSchema})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema violation")
}

func TestValidateDefaultsMissingListField(t *testing.T) {
	t.Parallel()

	res, err := Validate(`{"search_locations": ["Nice"]}`, Spec{
		DefaultListFields: []string{"candidates"},
	})
	require.NoError(t, err)

	obj := res.Data.(map[string]any)
	assert.Equal(t, []any{}, obj["candidates"])
	require.Len(t, res.Repairs, 1)
	assert.Contains(t, res.Repairs[0], "candidates")
}

func TestValidateWrapsSingularObject(t *testing.T) {
	t.Parallel()

	res, err := Validate(`{"name": "solo"}`, Spec{Schema: `{"type": "array"}`})
	require.NoError(t, err)

	list, ok := res.Data.([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
	require.Len(t, res.Repairs, 1)
	assert.Contains(t, res.Repairs[0], "wrapped")
}

func TestValidateDurationWarning(t *testing.T) {
	t.Parallel()

	raw := `{"days": [{"day": 1, "activities": [
		{"name": "Louvre", "duration_minutes": 180},
		{"name": "Blink", "duration_minutes": 0},
		{"name": "Forever", "duration_minutes": 2000}
	]}]}`

	res, err := Validate(raw, Spec{Schedule: true})
	require.NoError(t, err)
	assert.Contains(t, res.Warning, "Blink")
	assert.Contains(t, res.Warning, "Forever")
	assert.NotContains(t, res.Warning, "Louvre")
}

func TestValidateNoWarningForPlausibleSchedule(t *testing.T) {
	t.Parallel()

	raw := `{"days": [{"day": 1, "activities": [{"name": "Walk", "duration_minutes": 90}]}]}`
	res, err := Validate(raw, Spec{Schedule: true})
	require.NoError(t, err)
	assert.Empty(t, res.Warning)
}
