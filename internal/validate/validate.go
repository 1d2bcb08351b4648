// Package validate turns raw model output into a validated structured value.
// It strips fences, extracts the first balanced JSON block, applies a small
// set of declarative shape repairs, and checks the result against the task's
// JSON schema.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
)

// Spec describes what a task expects back from the model.
type Spec struct {
	// Schema is a JSON-schema document; empty means no structural check.
	Schema string
	// DefaultListFields are top-level fields defaulted to an empty list when
	// the model omits them.
	DefaultListFields []string
	// Schedule enables the duration plausibility pass for schedule-shaped
	// output.
	Schedule bool
}

// Result is a validated (possibly repaired) value.
type Result struct {
	Data    any
	Repairs []string
	Warning string
}

// durationBounds is the plausible activity duration range in minutes.
const (
	minDurationMinutes = 1
	maxDurationMinutes = 720
)

// Validate extracts, repairs, and validates raw model output against spec.
// A non-nil error describes exactly what is wrong, phrased so it can be fed
// back to the model in a repair prompt.
func Validate(raw string, spec Spec) (*Result, error) {
	block, err := ExtractJSONBlock(StripFences(raw))
	if err != nil {
		return nil, err
	}

	var data any
	if err := json.Unmarshal([]byte(block), &data); err != nil {
		return nil, eris.Wrap(err, "validate: JSON syntax error")
	}

	res := &Result{}
	data = repair(data, spec, res)

	if spec.Schema != "" {
		schemaLoader := gojsonschema.NewStringLoader(spec.Schema)
		documentLoader := gojsonschema.NewGoLoader(data)

		result, err := gojsonschema.Validate(schemaLoader, documentLoader)
		if err != nil {
			return nil, eris.Wrap(err, "validate: schema check")
		}
		if !result.Valid() {
			desc := result.Errors()[0]
			return nil, eris.Errorf("validate: schema violation at %s: %s", desc.Field(), desc.Description())
		}
	}

	if spec.Schedule {
		res.Warning = checkDurations(data)
	}

	res.Data = data
	return res, nil
}

// repair applies structural auto-repairs for known shape defects and records
// each repair performed.
func repair(data any, spec Spec, res *Result) any {
	// A singular object where a list was expected is wrapped into a
	// one-element list.
	if schemaRootIsArray(spec.Schema) {
		if _, isObj := data.(map[string]any); isObj {
			data = []any{data}
			res.Repairs = append(res.Repairs, "wrapped singular object into list")
		}
	}

	if obj, ok := data.(map[string]any); ok {
		for _, field := range spec.DefaultListFields {
			if _, present := obj[field]; !present {
				obj[field] = []any{}
				res.Repairs = append(res.Repairs, fmt.Sprintf("defaulted missing list field %q", field))
			}
		}
	}

	return data
}

// schemaRootIsArray reports whether the schema's root type is "array".
func schemaRootIsArray(schema string) bool {
	if schema == "" {
		return false
	}
	var doc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(schema), &doc); err != nil {
		return false
	}
	return doc.Type == "array"
}

// checkDurations flags activities whose duration in minutes falls outside the
// plausible range. Implausible durations are a warning, never a failure.
func checkDurations(data any) string {
	var flagged []string
	walkDurations(data, &flagged)
	if len(flagged) == 0 {
		return ""
	}
	return fmt.Sprintf("implausible durations (outside [%d, %d] minutes): %s",
		minDurationMinutes, maxDurationMinutes, strings.Join(flagged, ", "))
}

func walkDurations(data any, flagged *[]string) {
	switch v := data.(type) {
	case map[string]any:
		if d, ok := durationOf(v); ok && (d < minDurationMinutes || d > maxDurationMinutes) {
			name, _ := v["name"].(string)
			if name == "" {
				name, _ = v["title"].(string)
			}
			if name == "" {
				name = "unnamed activity"
			}
			*flagged = append(*flagged, fmt.Sprintf("%s (%g min)", name, d))
		}
		for _, val := range v {
			walkDurations(val, flagged)
		}
	case []any:
		for _, item := range v {
			walkDurations(item, flagged)
		}
	}
}

func durationOf(obj map[string]any) (float64, bool) {
	for _, key := range []string{"duration_minutes", "duration"} {
		if raw, ok := obj[key]; ok {
			if f, ok := raw.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
