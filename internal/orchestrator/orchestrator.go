// Package orchestrator executes tasks end to end: it sizes the work, splits
// oversized tasks into sequential chunks with durable progress, runs fixed
// multi-phase sequences, and hands every result to ingestion. All loops are
// sequential and poll the cancel token at iteration boundaries.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tripforge/placescout/internal/config"
	"github.com/tripforge/placescout/internal/gateway"
	"github.com/tripforge/placescout/internal/geo"
	"github.com/tripforge/placescout/internal/ingest"
	"github.com/tripforge/placescout/internal/model"
	"github.com/tripforge/placescout/internal/prompt"
	"github.com/tripforge/placescout/internal/store"
	"github.com/tripforge/placescout/internal/task"
)

// scoutSummarySlot is the analysis slot carrying scouted place summaries
// between the scouting and enrichment phases.
const scoutSummarySlot = "scout_summary"

// Orchestrator drives task execution.
type Orchestrator struct {
	store    store.Store
	caller   gateway.Caller
	registry *task.Registry
	ingestor *ingest.Ingestor
	filter   *geo.Filter
	cfg      config.OrchConfig
}

// New creates an orchestrator.
func New(s store.Store, c gateway.Caller, r *task.Registry, ing *ingest.Ingestor, f *geo.Filter, cfg config.OrchConfig) *Orchestrator {
	return &Orchestrator{
		store:    s,
		caller:   c,
		registry: r,
		ingestor: ing,
		filter:   f,
		cfg:      cfg,
	}
}

// ExecuteTask runs the named task to completion. The returned value is the
// merged result data; a cancelled run returns (nil, nil).
func (o *Orchestrator) ExecuteTask(ctx context.Context, tok CancelToken, taskKey, feedback string) (any, error) {
	d, err := o.registry.Get(taskKey)
	if err != nil {
		return nil, err
	}
	if d.MultiPhase() {
		return o.runPhases(ctx, tok, d, feedback)
	}
	return o.runTask(ctx, tok, d, feedback)
}

func (o *Orchestrator) runTask(ctx context.Context, tok CancelToken, d *task.Descriptor, feedback string) (any, error) {
	items, err := o.collectItems(ctx, d, feedback)
	if err != nil {
		return nil, err
	}
	if d.ChunkLimit > 0 && len(items) > d.ChunkLimit {
		return o.runChunked(ctx, tok, d, feedback, items)
	}
	return o.runSingle(ctx, tok, d, feedback, items)
}

func (o *Orchestrator) runSingle(ctx context.Context, tok CancelToken, d *task.Descriptor, feedback string, items []string) (any, error) {
	if tok.Stopped() {
		zap.L().Info("task cancelled before start", zap.String("task", d.Key))
		return nil, nil
	}

	text, err := prompt.Build(d.Prompt, o.taskFeedback(d, items, feedback), nil)
	if err != nil {
		return nil, err
	}
	res, err := o.caller.Call(ctx, d, text)
	if err != nil {
		return nil, err
	}
	if err := o.persist(ctx, d, res.Data, res.Data); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// runChunked splits items into sequential chunks. Progress is persisted after
// every chunk, before the next one starts, so an interrupted run never loses
// completed work. The chunk counter is 1-based and only moves forward.
func (o *Orchestrator) runChunked(ctx context.Context, tok CancelToken, d *task.Descriptor, feedback string, items []string) (any, error) {
	total := (len(items) + d.ChunkLimit - 1) / d.ChunkLimit
	state := &model.ChunkState{
		Active:      true,
		TaskKey:     d.Key,
		TotalChunks: total,
		StartedAt:   time.Now(),
	}
	zap.L().Info("starting chunked run",
		zap.String("task", d.Key),
		zap.Int("items", len(items)),
		zap.Int("chunks", total))

	defer func() {
		if err := o.store.ResetChunking(context.WithoutCancel(ctx)); err != nil {
			zap.L().Warn("failed to reset chunk state", zap.Error(err))
		}
	}()

	var merged any
	var covered []string
	for chunk := 1; chunk <= total; chunk++ {
		if tok.Stopped() {
			zap.L().Info("chunked run cancelled",
				zap.String("task", d.Key),
				zap.Int("completed_chunks", chunk-1))
			return nil, nil
		}

		state.CurrentChunk = chunk
		if err := o.store.SetChunking(ctx, state); err != nil {
			return nil, eris.Wrap(err, "orchestrator: save chunk state")
		}

		lo := (chunk - 1) * d.ChunkLimit
		hi := lo + d.ChunkLimit
		if hi > len(items) {
			hi = len(items)
		}
		chunkItems := items[lo:hi]

		text, err := prompt.Build(d.Prompt, o.taskFeedback(d, chunkItems, feedback), &prompt.ChunkContext{
			Index:   chunk,
			Limit:   d.ChunkLimit,
			Total:   total,
			Covered: covered,
		})
		if err != nil {
			return nil, err
		}

		res, err := o.caller.Call(ctx, d, text)
		if err != nil {
			return nil, eris.Wrapf(err, "orchestrator: chunk %d/%d of %s", chunk, total, d.Key)
		}

		merged = mergeResults(d.Kind, merged, res.Data)
		if err := o.persist(ctx, d, res.Data, merged); err != nil {
			return nil, err
		}
		covered = append(covered, coveredEntities(d.Kind, chunkItems, res.Data)...)

		if chunk < total && o.cfg.ChunkPacingMs > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(o.cfg.ChunkPacingMs) * time.Millisecond):
			}
		}
	}

	return merged, nil
}

// coveredEntities returns the memory carried into later chunks. Schedule
// chunks cover a window of days, so repeating the day labels would not stop
// the model from reusing the same places; the entities the chunk actually
// emitted are what must not reappear. Other tasks carry their input labels.
func coveredEntities(kind task.Kind, chunkItems []string, data any) []string {
	if kind != task.KindSchedule {
		return chunkItems
	}
	return scheduleEntities(data)
}

// scheduleEntities walks a schedule result's days and collects the names (or
// place ids) of every referenced entity, deduplicated in emission order.
func scheduleEntities(data any) []string {
	obj, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	days, ok := obj["days"].([]any)
	if !ok {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, d := range days {
		day, ok := d.(map[string]any)
		if !ok {
			continue
		}
		for _, listKey := range []string{"activities", "items", "places"} {
			list, ok := day[listKey].([]any)
			if !ok {
				continue
			}
			for _, item := range list {
				entry, ok := item.(map[string]any)
				if !ok {
					continue
				}
				label, _ := entry["name"].(string)
				if label == "" {
					label, _ = entry["place_id"].(string)
				}
				if label == "" || seen[label] {
					continue
				}
				seen[label] = true
				out = append(out, label)
			}
		}
	}
	return out
}

// runPhases executes a fixed multi-phase sequence with a durable progress
// notification. The geo_filter phase is local work between the model phases.
func (o *Orchestrator) runPhases(ctx context.Context, tok CancelToken, d *task.Descriptor, feedback string) (any, error) {
	note, err := o.store.AddNotification(ctx, fmt.Sprintf("Running %s", d.Key))
	if err != nil {
		zap.L().Warn("failed to create progress notification", zap.Error(err))
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := o.store.ResetChunking(cleanupCtx); err != nil {
			zap.L().Warn("failed to reset chunk state", zap.Error(err))
		}
		if note != nil {
			if err := o.store.DismissNotification(cleanupCtx, note.ID); err != nil {
				zap.L().Warn("failed to dismiss notification", zap.Error(err))
			}
		}
	}()

	var last any
	for i, phase := range d.Phases {
		if tok.Stopped() {
			zap.L().Info("multi-phase run cancelled",
				zap.String("task", d.Key),
				zap.String("next_phase", phase))
			return nil, nil
		}
		if note != nil {
			msg := fmt.Sprintf("%s: phase %d/%d (%s)", d.Key, i+1, len(d.Phases), phase)
			if err := o.store.UpdateNotification(ctx, note.ID, msg); err != nil {
				zap.L().Warn("failed to update notification", zap.Error(err))
			}
		}

		if phase == "geo_filter" {
			if err := o.applyGeoFilter(ctx, feedback); err != nil {
				return nil, err
			}
			continue
		}

		sub, err := o.registry.Get(phase)
		if err != nil {
			return nil, err
		}
		out, err := o.runTask(ctx, tok, sub, feedback)
		if err != nil {
			return nil, err
		}
		if out == nil {
			// Cancelled inside the phase.
			return nil, nil
		}
		last = out
	}
	return last, nil
}

// applyGeoFilter narrows the scouted candidate set to the resolved center's
// neighborhood and rewrites the enrichment summary slot to match.
func (o *Orchestrator) applyGeoFilter(ctx context.Context, feedback string) error {
	var scoutData map[string]any
	ok, err := o.store.GetAnalysisResult(ctx, "scout_places", &scoutData)
	if err != nil {
		return eris.Wrap(err, "orchestrator: load scout result")
	}
	if !ok {
		return nil
	}

	cands := ingest.Vacuum(scoutData, ingest.VacuumOptions{AllowStringCandidates: true})
	if len(cands) == 0 {
		return nil
	}

	center := geo.ResolveCenter(ctx, o.store, feedback)
	filtered := o.filter.Apply(center, cands)

	kept := make(map[string]bool, len(filtered))
	for i := range filtered {
		kept[ingest.NormalizeName(filtered[i].Name)] = true
	}

	var summaries []model.ScoutSummary
	if ok, err := o.store.GetAnalysisResult(ctx, scoutSummarySlot, &summaries); err == nil && ok {
		filteredSummaries := summaries[:0]
		for _, s := range summaries {
			if kept[ingest.NormalizeName(s.Name)] {
				filteredSummaries = append(filteredSummaries, s)
			}
		}
		if err := o.store.SetAnalysisResult(ctx, scoutSummarySlot, filteredSummaries); err != nil {
			return eris.Wrap(err, "orchestrator: save filtered summary")
		}
	}

	return o.store.SetAnalysisResult(ctx, "geo_filter", map[string]any{
		"center":     center,
		"candidates": filtered,
	})
}

// persist saves the merged result under the task's analysis slot and feeds
// the chunk result to ingestion for place-bearing tasks.
func (o *Orchestrator) persist(ctx context.Context, d *task.Descriptor, chunkData, merged any) error {
	if err := o.store.SetAnalysisResult(ctx, d.Key, merged); err != nil {
		return eris.Wrapf(err, "orchestrator: save result for %s", d.Key)
	}
	if !d.Ingest {
		return nil
	}

	opts := ingest.Options{AllowStringCandidates: d.AllowStringCandidates}
	if d.Key == "scout_places" {
		opts.SummarySlot = scoutSummarySlot
	}
	if _, err := o.ingestor.Ingest(ctx, chunkData, opts); err != nil {
		return err
	}
	return nil
}

// collectItems sizes the task: the labels returned here drive the decision to
// chunk and become per-chunk prompt context.
func (o *Orchestrator) collectItems(ctx context.Context, d *task.Descriptor, feedback string) ([]string, error) {
	switch {
	case d.Kind == task.KindSchedule:
		days := parseDays(feedback, o.cfg.DefaultDays)
		items := make([]string, days)
		for i := range items {
			items[i] = fmt.Sprintf("day %d", i+1)
		}
		return items, nil

	case d.Key == "enrich_places":
		var summaries []model.ScoutSummary
		if ok, err := o.store.GetAnalysisResult(ctx, scoutSummarySlot, &summaries); err != nil {
			return nil, eris.Wrap(err, "orchestrator: load scout summary")
		} else if ok && len(summaries) > 0 {
			items := make([]string, len(summaries))
			for i, s := range summaries {
				items[i] = s.Name
			}
			return items, nil
		}

		places, err := o.store.ListPlaces(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "orchestrator: list places")
		}
		var items []string
		for i := range places {
			if !places[i].Enriched() {
				items = append(items, places[i].Name)
			}
		}
		return items, nil
	}
	return nil, nil
}

// taskFeedback composes the prompt feedback: enrichment prompts carry the
// chunk's place names as the subject, everything else passes feedback through.
func (o *Orchestrator) taskFeedback(d *task.Descriptor, items []string, feedback string) string {
	if d.Prompt == "enrich" && len(items) > 0 {
		return strings.Join(items, "\n") + " | " + feedback
	}
	return feedback
}

// parseDays extracts a trip length from feedback like "days=10" or "10 days",
// falling back to the configured default.
func parseDays(feedback string, fallback int) int {
	fields := strings.Fields(strings.ToLower(feedback))
	for i, f := range fields {
		f = strings.Trim(f, ",.;:")
		if v, ok := strings.CutPrefix(f, "days="); ok {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				return n
			}
		}
		if f == "days" && i > 0 {
			if n, err := strconv.Atoi(strings.Trim(fields[i-1], ",.;:")); err == nil && n > 0 {
				return n
			}
		}
	}
	return fallback
}
