package scout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripforge/placescout/internal/config"
	"github.com/tripforge/placescout/internal/ingest"
	"github.com/tripforge/placescout/internal/model"
	"github.com/tripforge/placescout/internal/task"
	"github.com/tripforge/placescout/internal/validate"
)

// memStore is an in-memory Store for workflow tests.
type memStore struct {
	places   []model.Place
	analysis map[string]json.RawMessage
	notes    map[string]*model.Notification
	resets   int
}

func newMemStore() *memStore {
	return &memStore{
		analysis: make(map[string]json.RawMessage),
		notes:    make(map[string]*model.Notification),
	}
}

func (m *memStore) GetPlace(_ context.Context, id string) (*model.Place, error) {
	for i := range m.places {
		if m.places[i].ID == id {
			p := m.places[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListPlaces(context.Context) ([]model.Place, error) {
	out := make([]model.Place, len(m.places))
	copy(out, m.places)
	return out, nil
}

func (m *memStore) UpsertPlace(_ context.Context, p *model.Place) error {
	for i := range m.places {
		if m.places[i].ID == p.ID {
			m.places[i] = *p
			return nil
		}
	}
	m.places = append(m.places, *p)
	return nil
}

func (m *memStore) SetAnalysisResult(_ context.Context, taskKey string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	m.analysis[taskKey] = raw
	return nil
}

func (m *memStore) GetAnalysisResult(_ context.Context, taskKey string, out any) (bool, error) {
	raw, ok := m.analysis[taskKey]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *memStore) GetChunking(context.Context) (*model.ChunkState, error) {
	return &model.ChunkState{}, nil
}
func (m *memStore) SetChunking(context.Context, *model.ChunkState) error { return nil }
func (m *memStore) ResetChunking(context.Context) error {
	m.resets++
	return nil
}

func (m *memStore) AddNotification(_ context.Context, message string) (*model.Notification, error) {
	n := &model.Notification{ID: fmt.Sprintf("n%d", len(m.notes)+1), Message: message, Status: model.NotificationActive}
	m.notes[n.ID] = n
	return n, nil
}

func (m *memStore) UpdateNotification(_ context.Context, id, message string) error {
	if n, ok := m.notes[id]; ok {
		n.Message = message
	}
	return nil
}

func (m *memStore) DismissNotification(_ context.Context, id string) error {
	if n, ok := m.notes[id]; ok {
		n.Status = model.NotificationDismissed
	}
	return nil
}

func (m *memStore) GetRateWindow(context.Context, string) ([]time.Time, error) { return nil, nil }
func (m *memStore) SetRateWindow(context.Context, string, []time.Time) error   { return nil }
func (m *memStore) Migrate(context.Context) error                              { return nil }
func (m *memStore) Close() error                                               { return nil }

// routingCaller answers by task key; scout responses key additionally on the
// location inside the prompt.
type routingCaller struct {
	scoutByLocation map[string]string
	repair          string
	enrich          string
	calls           []string
}

func (r *routingCaller) Call(_ context.Context, d *task.Descriptor, promptText string) (*validate.Result, error) {
	r.calls = append(r.calls, d.Key)

	var raw string
	switch d.Key {
	case "scout_places":
		for loc, resp := range r.scoutByLocation {
			if strings.Contains(promptText, "Location: "+loc) {
				raw = resp
				break
			}
		}
		if raw == "" {
			return nil, fmt.Errorf("no scouting script for prompt")
		}
	case "scout_repair":
		raw = r.repair
	case "enrich_places":
		raw = r.enrich
	default:
		return nil, fmt.Errorf("unexpected task %s", d.Key)
	}

	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	return &validate.Result{Data: data}, nil
}

// stopAfter cancels after n polls.
type stopAfter struct {
	polls int
	n     int
}

func (s *stopAfter) Stopped() bool {
	s.polls++
	return s.polls > s.n
}

type neverStop struct{}

func (neverStop) Stopped() bool { return false }

func newTestWorkflow(st *memStore, caller *routingCaller) *Workflow {
	registry, err := task.Load()
	if err != nil {
		panic(err)
	}
	resolver := ingest.NewResolver(config.IngestConfig{
		SimilarityThreshold: 0.85,
		SubstringBoost:      0.95,
		MinSubstringLen:     4,
	})
	return New(st, caller, registry, ingest.New(st, resolver),
		config.ScoutConfig{LocationPacingMs: 0, MinAddressLen: 8})
}

func scoutResponse(names ...string) string {
	cands := make([]map[string]any, len(names))
	for i, n := range names {
		cands[i] = map[string]any{
			"name":     n,
			"category": "sight",
			"address":  "10 Promenade des Anglais, Nice",
		}
	}
	raw, _ := json.Marshal(map[string]any{"candidates": cands})
	return string(raw)
}

func enrichResponse(names ...string) string {
	places := make([]map[string]any, len(names))
	for i, n := range names {
		places[i] = map[string]any{
			"name":                n,
			"review_count":        500,
			"verification_status": "verified",
		}
	}
	raw, _ := json.Marshal(map[string]any{"enriched_places": places})
	return string(raw)
}

func TestExecuteFullRun(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	caller := &routingCaller{
		scoutByLocation: map[string]string{
			"Nice":   scoutResponse("Castle Hill", "Cours Saleya"),
			"Cannes": scoutResponse("La Croisette", "Marché Forville"),
		},
		enrich: enrichResponse("Castle Hill", "Cours Saleya", "La Croisette", "Marché Forville"),
	}
	w := newTestWorkflow(st, caller)

	res, err := w.Execute(context.Background(), neverStop{}, "Nice, Cannes")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, []string{"Nice", "Cannes"}, res.Locations)
	require.Len(t, res.Candidates, 4)
	assert.Equal(t, 4, res.Stored)

	// Every candidate carries its town and a usable address.
	for _, c := range res.Candidates {
		assert.NotEmpty(t, c.SourceTown)
		assert.GreaterOrEqual(t, len(c.Address), 8)
		assert.NotEmpty(t, c.ID)
	}

	// Enrichment landed in the stored dataset.
	require.Len(t, st.places, 4)
	for _, p := range st.places {
		assert.True(t, p.Enriched(), "place %s should be enriched", p.Name)
	}

	// The summary slot feeds later enrichment passes.
	var summaries []model.ScoutSummary
	ok, err := st.GetAnalysisResult(context.Background(), "scout_summary", &summaries)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, summaries, 4)

	// Cleanup ran.
	assert.Positive(t, st.resets)
	for _, n := range st.notes {
		assert.Equal(t, model.NotificationDismissed, n.Status)
	}
}

func TestExecuteCancellationBetweenLocations(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	caller := &routingCaller{
		scoutByLocation: map[string]string{
			"Nice":    scoutResponse("A"),
			"Cannes":  scoutResponse("B"),
			"Antibes": scoutResponse("C"),
			"Grasse":  scoutResponse("D"),
			"Menton":  scoutResponse("E"),
		},
	}
	w := newTestWorkflow(st, caller)

	// Two boundary polls pass, the third stops the run before location 3.
	res, err := w.Execute(context.Background(), &stopAfter{n: 2}, "Nice, Cannes, Antibes, Grasse, Menton")
	require.NoError(t, err)
	assert.Nil(t, res)

	// Only the first two locations were scouted; nothing was stored.
	assert.Equal(t, []string{"scout_places", "scout_places"}, caller.calls)
	assert.Empty(t, st.places)

	// Cleanup still ran.
	assert.Positive(t, st.resets)
	for _, n := range st.notes {
		assert.Equal(t, model.NotificationDismissed, n.Status)
	}
}

func TestExecuteSingleLocationFailureContinues(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	caller := &routingCaller{
		scoutByLocation: map[string]string{
			// No entry for Cannes: its call fails.
			"Nice": scoutResponse("Castle Hill"),
		},
		enrich: enrichResponse("Castle Hill"),
	}
	w := newTestWorkflow(st, caller)

	res, err := w.Execute(context.Background(), neverStop{}, "Nice, Cannes")
	require.NoError(t, err)
	require.NotNil(t, res)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "Castle Hill", res.Candidates[0].Name)
	assert.Equal(t, 1, res.Stored)
}

func TestExecuteRepairsBadAddresses(t *testing.T) {
	t.Parallel()

	cands, _ := json.Marshal(map[string]any{"candidates": []map[string]any{
		{"name": "Castle Hill", "category": "sight", "address": "unknown"},
		{"name": "Cours Saleya", "category": "sight", "address": "Cours Saleya, 06300 Nice"},
	}})

	st := newMemStore()
	caller := &routingCaller{
		scoutByLocation: map[string]string{"Nice": string(cands)},
		repair: `{"name": "Castle Hill", "address": "Montée du Château, 06300 Nice",
			"phone": "+33 4 92 00 41 90", "website": "https://nice.fr"}`,
		enrich: enrichResponse("Castle Hill", "Cours Saleya"),
	}
	w := newTestWorkflow(st, caller)

	res, err := w.Execute(context.Background(), neverStop{}, "Nice")
	require.NoError(t, err)
	require.NotNil(t, res)

	// Exactly one repair call: the good address was left alone.
	repairCalls := 0
	for _, c := range caller.calls {
		if c == "scout_repair" {
			repairCalls++
		}
	}
	assert.Equal(t, 1, repairCalls)

	byName := make(map[string]model.Candidate)
	for _, c := range res.Candidates {
		byName[c.Name] = c
	}
	assert.Equal(t, "Montée du Château, 06300 Nice", byName["Castle Hill"].Address)
	assert.Equal(t, "+33 4 92 00 41 90", byName["Castle Hill"].Phone)
	assert.Equal(t, "Cours Saleya, 06300 Nice", byName["Cours Saleya"].Address)
}

func TestExecuteDropsRejectedAfterEnrichment(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	caller := &routingCaller{
		scoutByLocation: map[string]string{"Nice": scoutResponse("Castle Hill", "Ghost Bar")},
		enrich: `{"enriched_places": [
			{"name": "Castle Hill", "review_count": 500, "verification_status": "verified"},
			{"name": "Ghost Bar", "verification_status": "rejected"}
		]}`,
	}
	w := newTestWorkflow(st, caller)

	res, err := w.Execute(context.Background(), neverStop{}, "Nice")
	require.NoError(t, err)
	require.NotNil(t, res)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "Castle Hill", res.Candidates[0].Name)
	assert.Equal(t, 1, res.Rejected)
	require.Len(t, st.places, 1)
}

func TestDetermineScopeNormalization(t *testing.T) {
	t.Parallel()

	w := newTestWorkflow(newMemStore(), &routingCaller{})

	got := w.determineScope(context.Background(),
		"Nice (old town), Cannes; nice, X\nAntibes")
	assert.Equal(t, []string{"Nice", "Cannes", "Antibes"}, got)
}

func TestDetermineScopeUnionsStoredLocations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newMemStore()
	require.NoError(t, st.SetAnalysisResult(ctx, "logistics",
		map[string]any{"destination": "Nice", "region": "Provence"}))
	require.NoError(t, st.SetAnalysisResult(ctx, "route_stages",
		[]model.GeoCenter{{Label: "Cannes"}, {Label: "Antibes"}}))
	require.NoError(t, st.SetAnalysisResult(ctx, "round_trip",
		map[string]any{"stops": []map[string]any{{"label": "Grasse"}, {"label": "Nice"}}}))
	require.NoError(t, st.SetAnalysisResult(ctx, "city_info",
		map[string]any{"districts": []map[string]any{{"name": "Vieux Nice"}}}))

	w := newTestWorkflow(st, &routingCaller{})

	// Feedback and every stored source are unioned, deduplicated by name.
	got := w.determineScope(ctx, "Menton")
	assert.Equal(t, []string{"Menton", "Nice", "Cannes", "Antibes", "Grasse", "Vieux Nice"}, got)
}

func TestDetermineScopeResolvesRegion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("region marker in feedback", func(t *testing.T) {
		t.Parallel()
		w := newTestWorkflow(newMemStore(), &routingCaller{})
		assert.Equal(t, []string{"Provence"}, w.determineScope(ctx, "days=5, region=Provence"))
	})

	t.Run("country marker in feedback", func(t *testing.T) {
		t.Parallel()
		w := newTestWorkflow(newMemStore(), &routingCaller{})
		assert.Equal(t, []string{"France"}, w.determineScope(ctx, "country=France."))
	})

	t.Run("stored logistics region", func(t *testing.T) {
		t.Parallel()
		st := newMemStore()
		require.NoError(t, st.SetAnalysisResult(ctx, "logistics",
			map[string]any{"region": "Côte d'Azur"}))
		w := newTestWorkflow(st, &routingCaller{})
		assert.Equal(t, []string{"Côte d'Azur"}, w.determineScope(ctx, ""))
	})
}

func TestDetermineScopeFallsBackToHubs(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	require.NoError(t, st.SetAnalysisResult(context.Background(), "recommend_hubs",
		map[string]any{"hubs": []map[string]any{{"name": "Aix-en-Provence"}}}))

	w := newTestWorkflow(st, &routingCaller{})
	assert.Equal(t, []string{"Aix-en-Provence"}, w.determineScope(context.Background(), ""))
}

func TestDetermineScopeGenericFallback(t *testing.T) {
	t.Parallel()

	w := newTestWorkflow(newMemStore(), &routingCaller{})
	assert.Equal(t, []string{"Region"}, w.determineScope(context.Background(), ""))
}
