// Package prompt builds task prompts. Templating here is deliberately plain:
// the orchestration core treats prompt text as opaque.
package prompt

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ChunkContext carries chunk-scoped prompt state.
type ChunkContext struct {
	Index int
	Limit int
	Total int
	// Covered lists entity identifiers already consumed by prior chunks so
	// the model does not re-emit them.
	Covered []string
}

const scoutPrompt = `You are a local travel scout researching places worth visiting.

Location: %s
%s
Return a JSON object:
{"candidates": [{"name": "...", "category": "sight|restaurant|cafe|hotel|special", "address": "...", "lat": 0.0, "lng": 0.0}], "search_locations": ["..."]}
Only include real, currently operating places. Mark anything you cannot verify with "verification_status": "rejected".`

const scoutRepairPrompt = `You are verifying a single place record.

Place: %s
Location: %s

Find the full street address, phone number, and website. Return a JSON object:
{"name": "...", "address": "...", "phone": "...", "website": "..."}
If the place cannot be verified, set "verification_status": "rejected".`

const enrichPrompt = `You are enriching a list of known places with authoritative detail.

Places:
%s
%s
For each place return original name, review count, awards, a signature attribute, and verification status. Return a JSON object:
{"enriched_places": [{"name": "...", "original_name": "...", "review_count": 0, "awards": ["..."], "signature": "...", "verification_status": "verified|rejected", "address": "..."}]}`

const itineraryPrompt = `You are planning a day-by-day itinerary.

%s
Return a JSON object:
{"days": [{"day": 1, "activities": [{"name": "...", "duration_minutes": 0, "place_id": "..."}]}]}
Durations are in minutes and must be realistic.`

const hubsPrompt = `You are recommending geographic hub towns for a trip.

%s
Return a JSON object:
{"hubs": [{"name": "...", "lat": 0.0, "lng": 0.0, "reason": "..."}]}`

// KnownGuides are the reference guides cited as research context in scouting
// and enrichment prompts, so the model grounds its picks instead of inventing
// places.
var KnownGuides = []string{
	"Michelin Guide", "Gault&Millau", "Lonely Planet", "Atlas Obscura",
}

const guideInstruction = `
Consult these guides when selecting and verifying places: %s. Never return a guide itself as a place.`

const chunkInstruction = `
This is chunk %d of %d; cover at most %d items in this response.`

const coveredInstruction = `
Already covered in earlier chunks, do not repeat: %s.`

const repairTemplate = `The previous response was not valid JSON for this task.

Validation error:
%s

Previous response:
%s

Return ONLY the corrected JSON, nothing else.`

// Build renders the prompt for a task. feedback is free-form context from the
// caller; chunkCtx is nil outside chunked runs.
func Build(promptKey, feedback string, chunkCtx *ChunkContext) (string, error) {
	fb := strings.TrimSpace(feedback)

	guides := fmt.Sprintf(guideInstruction, strings.Join(KnownGuides, ", "))

	var text string
	switch promptKey {
	case "scout":
		location, context := splitFeedback(fb)
		text = fmt.Sprintf(scoutPrompt, location, contextBlock(context)) + guides
	case "scout_repair":
		name, location := splitFeedback(fb)
		text = fmt.Sprintf(scoutRepairPrompt, name, location)
	case "enrich":
		places, context := splitFeedback(fb)
		text = fmt.Sprintf(enrichPrompt, places, contextBlock(context)) + guides
	case "itinerary":
		text = fmt.Sprintf(itineraryPrompt, contextBlock(fb))
	case "hubs":
		text = fmt.Sprintf(hubsPrompt, contextBlock(fb))
	default:
		return "", eris.Errorf("prompt: unknown prompt key %s", promptKey)
	}

	if chunkCtx != nil {
		text += fmt.Sprintf(chunkInstruction, chunkCtx.Index, chunkCtx.Total, chunkCtx.Limit)
		if len(chunkCtx.Covered) > 0 {
			text += fmt.Sprintf(coveredInstruction, strings.Join(chunkCtx.Covered, ", "))
		}
	}

	return text, nil
}

// BuildRepair wraps a failed response and its validation error into a
// self-correction instruction.
func BuildRepair(previousOutput string, validationErr error) string {
	return fmt.Sprintf(repairTemplate, validationErr.Error(), previousOutput)
}

// splitFeedback separates "subject | context" feedback into its halves.
func splitFeedback(feedback string) (string, string) {
	if idx := strings.Index(feedback, "|"); idx >= 0 {
		return strings.TrimSpace(feedback[:idx]), strings.TrimSpace(feedback[idx+1:])
	}
	return feedback, ""
}

func contextBlock(context string) string {
	if context == "" {
		return ""
	}
	return "\nContext:\n" + context + "\n"
}
