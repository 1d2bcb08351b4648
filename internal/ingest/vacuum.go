// Package ingest turns validated model output into stored places: it vacuums
// candidate records out of arbitrary result shapes, resolves each one against
// the existing dataset, and merges survivors without degrading enriched data.
package ingest

import (
	"encoding/json"

	"github.com/tripforge/placescout/internal/model"
)

// containerKeys are the result fields treated as candidate lists, in lookup
// order.
var containerKeys = []string{
	"candidates", "enriched_places", "places", "results", "sights", "items", "chapters",
}

// skipKeys are result fields that never hold candidate data.
var skipKeys = map[string]bool{
	"context":  true,
	"meta":     true,
	"metadata": true,
	"logs":     true,
	"analysis": true,
	"stats":    true,
	"debug":    true,
}

// VacuumOptions controls candidate extraction.
type VacuumOptions struct {
	// AllowStringCandidates accepts bare strings inside candidate lists as
	// name-only candidates.
	AllowStringCandidates bool
}

// Vacuum extracts candidate records from a validated result value. An object
// carrying a name and no container field is itself a candidate; otherwise
// known container fields are consumed in order, and when none yields anything,
// nested non-metadata values are scanned as a fallback so an unexpected but
// well-formed shape still produces candidates.
func Vacuum(data any, opts VacuumOptions) []model.Candidate {
	switch v := data.(type) {
	case []any:
		return fromList(v, opts)
	case map[string]any:
		if !hasContainerKey(v) {
			if c, ok := candidateFromMap(v); ok {
				return []model.Candidate{c}
			}
		}
		for _, key := range containerKeys {
			if list, ok := v[key].([]any); ok {
				if cands := fromList(list, opts); len(cands) > 0 {
					return cands
				}
			}
		}
		// Fallback: scan nested values.
		for key, val := range v {
			if skipKeys[key] {
				continue
			}
			if cands := Vacuum(val, opts); len(cands) > 0 {
				return cands
			}
		}
	}
	return nil
}

func hasContainerKey(m map[string]any) bool {
	for _, key := range containerKeys {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}

func fromList(list []any, opts VacuumOptions) []model.Candidate {
	var out []model.Candidate
	for _, item := range list {
		switch it := item.(type) {
		case map[string]any:
			if c, ok := candidateFromMap(it); ok {
				out = append(out, c)
			}
		case string:
			if opts.AllowStringCandidates && it != "" {
				out = append(out, model.Candidate{Name: it})
			}
		}
	}
	return out
}

// knownCandidateKeys are the json tags decoded into typed Candidate fields;
// everything else lands in Extra.
var knownCandidateKeys = map[string]bool{
	"id": true, "name": true, "category": true, "address": true,
	"lat": true, "lng": true, "rating": true, "review_count": true,
	"original_name": true, "awards": true, "verification_status": true,
	"signature": true, "phone": true, "website": true, "opening_hours": true,
	"cuisine": true, "price_tier": true, "source_town": true, "extra": true,
}

func candidateFromMap(m map[string]any) (model.Candidate, bool) {
	raw, err := json.Marshal(m)
	if err != nil {
		return model.Candidate{}, false
	}
	var c model.Candidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return model.Candidate{}, false
	}
	if c.Name == "" {
		return model.Candidate{}, false
	}

	for k, v := range m {
		if knownCandidateKeys[k] {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any)
		}
		c.Extra[k] = v
	}
	return c, true
}
