// Package scout runs the multi-location scouting workflow: determine the
// locations in scope, scout each one sequentially, repair low-quality
// records, enrich the survivors, and ingest the final set. Single-location
// failures degrade the result instead of aborting the run.
package scout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripforge/placescout/internal/config"
	"github.com/tripforge/placescout/internal/gateway"
	"github.com/tripforge/placescout/internal/ingest"
	"github.com/tripforge/placescout/internal/model"
	"github.com/tripforge/placescout/internal/orchestrator"
	"github.com/tripforge/placescout/internal/prompt"
	"github.com/tripforge/placescout/internal/store"
	"github.com/tripforge/placescout/internal/task"
)

// Result is the outcome of a completed scouting run.
type Result struct {
	Locations  []string
	Candidates []model.Candidate
	Stored     int
	Rejected   int
}

// Workflow executes scouting runs.
type Workflow struct {
	store    store.Store
	caller   gateway.Caller
	registry *task.Registry
	ingestor *ingest.Ingestor
	cfg      config.ScoutConfig
}

// New creates a scouting workflow.
func New(s store.Store, c gateway.Caller, r *task.Registry, ing *ingest.Ingestor, cfg config.ScoutConfig) *Workflow {
	return &Workflow{store: s, caller: c, registry: r, ingestor: ing, cfg: cfg}
}

// Execute runs the workflow for the given trip feedback. A cancelled run
// returns (nil, nil); partial per-location failures are logged and skipped.
// Run state and the progress notification are cleaned up on every exit path.
func (w *Workflow) Execute(ctx context.Context, tok orchestrator.CancelToken, feedback string) (*Result, error) {
	note, err := w.store.AddNotification(ctx, "Scouting places")
	if err != nil {
		zap.L().Warn("failed to create progress notification", zap.Error(err))
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := w.store.ResetChunking(cleanupCtx); err != nil {
			zap.L().Warn("failed to reset chunk state", zap.Error(err))
		}
		if note != nil {
			if err := w.store.DismissNotification(cleanupCtx, note.ID); err != nil {
				zap.L().Warn("failed to dismiss notification", zap.Error(err))
			}
		}
	}()

	locations := w.determineScope(ctx, feedback)
	zap.L().Info("scouting scope determined", zap.Strings("locations", locations))

	scoutTask, err := w.registry.Get("scout_places")
	if err != nil {
		return nil, err
	}

	var candidates []model.Candidate
	for i, loc := range locations {
		if tok.Stopped() {
			zap.L().Info("scouting cancelled",
				zap.Int("completed_locations", i),
				zap.Int("total_locations", len(locations)))
			return nil, nil
		}
		if note != nil {
			msg := fmt.Sprintf("Scouting %s (%d/%d)", loc, i+1, len(locations))
			if err := w.store.UpdateNotification(ctx, note.ID, msg); err != nil {
				zap.L().Warn("failed to update notification", zap.Error(err))
			}
		}

		found, err := w.scoutLocation(ctx, scoutTask, loc, feedback)
		if err != nil {
			// One bad town must not sink the trip.
			zap.L().Warn("location scouting failed, continuing",
				zap.String("location", loc),
				zap.Error(err))
			continue
		}
		candidates = append(candidates, found...)

		if i < len(locations)-1 && w.cfg.LocationPacingMs > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(w.cfg.LocationPacingMs) * time.Millisecond):
			}
		}
	}

	candidates, cancelled := w.repairQuality(ctx, tok, candidates)
	if cancelled {
		return nil, nil
	}

	if tok.Stopped() {
		return nil, nil
	}
	candidates, rejected, err := w.finalEnrich(ctx, candidates, feedback)
	if err != nil {
		return nil, err
	}

	ingRes, err := w.ingestor.Ingest(ctx, candidatesAsData(candidates), ingest.Options{SummarySlot: "scout_summary"})
	if err != nil {
		return nil, err
	}

	return &Result{
		Locations:  locations,
		Candidates: candidates,
		Stored:     ingRes.Stored,
		Rejected:   rejected + ingRes.Rejected,
	}, nil
}

// determineScope builds the location list as the union of explicit feedback
// locations, the stationary destination, route-stage names, round-trip stop
// names, and already-known district entities. When that union is empty the
// recommended hubs fill in, and failing even that, the resolved trip region.
func (w *Workflow) determineScope(ctx context.Context, feedback string) []string {
	var raw []string
	for _, part := range strings.FieldsFunc(feedback, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	}) {
		raw = append(raw, part)
	}
	raw = append(raw, w.storedLocations(ctx)...)

	if len(normalizeLocations(raw)) == 0 {
		var hubs struct {
			Hubs []struct {
				Name string `json:"name"`
			} `json:"hubs"`
		}
		if ok, err := w.store.GetAnalysisResult(ctx, "recommend_hubs", &hubs); err == nil && ok {
			for _, h := range hubs.Hubs {
				raw = append(raw, h.Name)
			}
		}
	}

	locations := normalizeLocations(raw)
	if len(locations) == 0 {
		locations = []string{w.resolveRegion(ctx, feedback)}
	}
	return locations
}

// storedLocations collects location names from every analysis slot that can
// carry them: trip logistics, route stages, round-trip stops, and district
// entities from city info.
func (w *Workflow) storedLocations(ctx context.Context) []string {
	var out []string

	var logistics tripLogistics
	if ok, err := w.store.GetAnalysisResult(ctx, "logistics", &logistics); err == nil && ok && logistics.Destination != "" {
		out = append(out, logistics.Destination)
	}

	var stages []model.GeoCenter
	if ok, err := w.store.GetAnalysisResult(ctx, "route_stages", &stages); err == nil && ok {
		for _, s := range stages {
			out = append(out, s.Label)
		}
	}

	var roundTrip struct {
		Stops []model.GeoCenter `json:"stops"`
	}
	if ok, err := w.store.GetAnalysisResult(ctx, "round_trip", &roundTrip); err == nil && ok {
		for _, s := range roundTrip.Stops {
			out = append(out, s.Label)
		}
	}

	var cityInfo struct {
		Districts []struct {
			Name string `json:"name"`
		} `json:"districts"`
	}
	if ok, err := w.store.GetAnalysisResult(ctx, "city_info", &cityInfo); err == nil && ok {
		for _, d := range cityInfo.Districts {
			out = append(out, d.Name)
		}
	}

	return out
}

// tripLogistics is the slice of the logistics slot the workflow reads.
type tripLogistics struct {
	Destination string `json:"destination"`
	Region      string `json:"region"`
	Country     string `json:"country"`
}

// resolveRegion names the scouting region when no concrete location is known:
// a region/country marker in feedback, then the stored trip logistics, then a
// generic default.
func (w *Workflow) resolveRegion(ctx context.Context, feedback string) string {
	for _, f := range strings.Fields(feedback) {
		f = strings.Trim(f, ",.;:")
		if v, ok := strings.CutPrefix(f, "region="); ok && v != "" {
			return v
		}
		if v, ok := strings.CutPrefix(f, "country="); ok && v != "" {
			return v
		}
	}

	var logistics tripLogistics
	if ok, err := w.store.GetAnalysisResult(ctx, "logistics", &logistics); err == nil && ok {
		if logistics.Region != "" {
			return logistics.Region
		}
		if logistics.Country != "" {
			return logistics.Country
		}
	}
	return "Region"
}

// normalizeLocations trims parenthetical suffixes, drops fragments too short
// to be place names or carrying key=value markers, and deduplicates
// case-insensitively.
func normalizeLocations(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	var out []string
	for _, r := range raw {
		name := r
		if idx := strings.Index(name, "("); idx >= 0 {
			name = name[:idx]
		}
		name = strings.TrimSpace(name)
		if len(name) <= 2 || strings.Contains(name, "=") {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// scoutLocation runs one scouting call and tags the results with their town.
func (w *Workflow) scoutLocation(ctx context.Context, d *task.Descriptor, location, feedback string) ([]model.Candidate, error) {
	text, err := prompt.Build(d.Prompt, location+" | "+feedback, nil)
	if err != nil {
		return nil, err
	}
	res, err := w.caller.Call(ctx, d, text)
	if err != nil {
		return nil, err
	}

	found := ingest.Vacuum(res.Data, ingest.VacuumOptions{AllowStringCandidates: d.AllowStringCandidates})
	for i := range found {
		found[i].SourceTown = location
		if found[i].ID == "" {
			found[i].ID = uuid.NewString()
		}
	}
	zap.L().Info("location scouted",
		zap.String("location", location),
		zap.Int("candidates", len(found)))
	return found, nil
}

// repairQuality re-queries candidates whose address is missing or useless.
// Repair failures leave the candidate as-is. Returns cancelled=true when the
// token stopped the pass.
func (w *Workflow) repairQuality(ctx context.Context, tok orchestrator.CancelToken, cands []model.Candidate) ([]model.Candidate, bool) {
	repairTask, err := w.registry.Get("scout_repair")
	if err != nil {
		zap.L().Warn("repair task unavailable, skipping quality pass", zap.Error(err))
		return cands, false
	}

	for i := range cands {
		if !w.needsRepair(&cands[i]) {
			continue
		}
		if tok.Stopped() {
			return nil, true
		}

		text, err := prompt.Build(repairTask.Prompt, cands[i].Name+" | "+cands[i].SourceTown, nil)
		if err != nil {
			continue
		}
		res, err := w.caller.Call(ctx, repairTask, text)
		if err != nil {
			zap.L().Warn("quality repair failed, keeping candidate as-is",
				zap.String("name", cands[i].Name),
				zap.Error(err))
			continue
		}

		patch, ok := res.Data.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := patch["address"].(string); ok && v != "" {
			cands[i].Address = v
		}
		if v, ok := patch["phone"].(string); ok && v != "" {
			cands[i].Phone = v
		}
		if v, ok := patch["website"].(string); ok && v != "" {
			cands[i].Website = v
		}
		if v, ok := patch["verification_status"].(string); ok && v != "" {
			cands[i].VerificationStatus = v
		}
	}
	return cands, false
}

func (w *Workflow) needsRepair(c *model.Candidate) bool {
	addr := strings.TrimSpace(c.Address)
	if addr == "" || len(addr) < w.cfg.MinAddressLen {
		return true
	}
	return strings.EqualFold(addr, "unknown")
}

// finalEnrich runs one enrichment call over the full candidate set and folds
// the returned detail back in by name. Rejected candidates are dropped.
func (w *Workflow) finalEnrich(ctx context.Context, cands []model.Candidate, feedback string) ([]model.Candidate, int, error) {
	if len(cands) == 0 {
		return cands, 0, nil
	}

	enrichTask, err := w.registry.Get("enrich_places")
	if err != nil {
		return nil, 0, err
	}

	names := make([]string, len(cands))
	for i := range cands {
		names[i] = cands[i].Name
	}
	text, err := prompt.Build(enrichTask.Prompt, strings.Join(names, "\n")+" | "+feedback, nil)
	if err != nil {
		return nil, 0, err
	}

	res, err := w.caller.Call(ctx, enrichTask, text)
	if err != nil {
		// Enrichment is additive; the scouted set is still worth keeping.
		zap.L().Warn("final enrichment failed, keeping unenriched candidates", zap.Error(err))
		return cands, 0, nil
	}

	byName := make(map[string]*model.Candidate, len(cands))
	for i := range cands {
		byName[ingest.NormalizeName(cands[i].Name)] = &cands[i]
	}
	for _, e := range enrichmentRecords(res.Data) {
		target, ok := byName[ingest.NormalizeName(e.Name)]
		if !ok {
			continue
		}
		if e.OriginalName != "" {
			target.OriginalName = e.OriginalName
		}
		if e.ReviewCount > 0 {
			target.ReviewCount = e.ReviewCount
		}
		if len(e.Awards) > 0 {
			target.Awards = e.Awards
		}
		if e.VerificationStatus != "" {
			target.VerificationStatus = e.VerificationStatus
		}
		if e.Signature != "" {
			target.Signature = e.Signature
		}
		if e.Address != "" {
			target.Address = e.Address
		}
	}

	var kept []model.Candidate
	rejected := 0
	for i := range cands {
		if cands[i].Rejected() {
			rejected++
			continue
		}
		if cands[i].ID == "" {
			cands[i].ID = uuid.NewString()
		}
		kept = append(kept, cands[i])
	}
	return kept, rejected, nil
}

// enrichmentRecords accepts the enrichment shapes models actually produce:
// the declared list field, a candidates list, a bare array, or a map keyed by
// place name.
func enrichmentRecords(data any) []model.Candidate {
	if recs := ingest.Vacuum(data, ingest.VacuumOptions{}); len(recs) > 0 {
		return recs
	}

	obj, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	var out []model.Candidate
	for name, v := range obj {
		fields, ok := v.(map[string]any)
		if !ok {
			continue
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			continue
		}
		var c model.Candidate
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		if c.Name == "" {
			c.Name = name
		}
		out = append(out, c)
	}
	return out
}

// candidatesAsData converts candidates into the generic result shape the
// ingestor consumes.
func candidatesAsData(cands []model.Candidate) any {
	raw, err := json.Marshal(map[string]any{"candidates": cands})
	if err != nil {
		return nil
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return data
}
