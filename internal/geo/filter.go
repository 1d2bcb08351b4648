package geo

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/tripforge/placescout/internal/model"
	"github.com/tripforge/placescout/internal/store"
)

// Scored pairs a candidate with its distance from the filter center.
type Scored struct {
	Candidate  model.Candidate
	DistanceKm float64
}

// FilterByRadius returns the candidates within radiusKm of center, sorted by
// ascending distance. Candidates without coordinates are excluded.
func FilterByRadius(center model.GeoCenter, cands []model.Candidate, radiusKm float64) []Scored {
	var out []Scored
	for _, c := range cands {
		if !c.HasCoords() {
			continue
		}
		d := DistanceKm(center.Lat, center.Lng, c.Lat, c.Lng)
		if d <= radiusKm {
			out = append(out, Scored{Candidate: c, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}

// Filter applies escalating radius filtering around a center.
type Filter struct {
	radiiKm  []float64
	fallback int
}

// NewFilter creates a filter that tries each radius in order and falls back
// to the nearest fallbackCount candidates when every radius comes up empty.
func NewFilter(radiiKm []float64, fallbackCount int) *Filter {
	return &Filter{radiiKm: radiiKm, fallback: fallbackCount}
}

// Apply filters cands around center. Radii escalate until one yields results;
// if none do, the first few candidates pass through unfiltered so a badly
// geocoded scouting pass never empties the result set. A center without
// coordinates disables filtering and returns the input unchanged.
func (f *Filter) Apply(center model.GeoCenter, cands []model.Candidate) []model.Candidate {
	if !center.HasCoords() {
		zap.L().Debug("geo center has no coordinates, skipping radius filter",
			zap.String("center", center.Label))
		return cands
	}

	for _, radius := range f.radiiKm {
		scored := FilterByRadius(center, cands, radius)
		if len(scored) > 0 {
			zap.L().Info("radius filter matched",
				zap.String("center", center.Label),
				zap.Float64("radius_km", radius),
				zap.Int("kept", len(scored)),
				zap.Int("total", len(cands)))
			return unwrap(scored)
		}
	}

	// Nothing inside any radius: keep the first few unfiltered so the next
	// phase is never starved.
	out := cands
	if len(out) > f.fallback {
		out = out[:f.fallback]
	}
	zap.L().Warn("no candidates inside any radius, keeping first unfiltered",
		zap.String("center", center.Label),
		zap.Int("kept", len(out)),
		zap.Int("total", len(cands)))
	return out
}

func unwrap(scored []Scored) []model.Candidate {
	out := make([]model.Candidate, len(scored))
	for i, s := range scored {
		out[i] = s.Candidate
	}
	return out
}

// hubResult mirrors the hub recommendation output shape.
type hubResult struct {
	Hubs []struct {
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
		Lng  float64 `json:"lng"`
	} `json:"hubs"`
}

// ResolveCenter picks the filter center by priority: the active scouting
// pass's first search location, then the first stored route stage, then the
// first recommended hub, then the user's destination, then a generic label.
// The first source carrying coordinates wins outright, since a label without
// coordinates cannot anchor radius filtering; when no source has coordinates
// the highest-priority label is returned as-is.
func ResolveCenter(ctx context.Context, st store.Store, destination string) model.GeoCenter {
	var candidates []model.GeoCenter

	var scout struct {
		SearchLocations []string `json:"search_locations"`
	}
	if ok, err := st.GetAnalysisResult(ctx, "scout_places", &scout); err == nil && ok && len(scout.SearchLocations) > 0 {
		candidates = append(candidates, model.GeoCenter{Label: scout.SearchLocations[0]})
	}

	var stages []model.GeoCenter
	if ok, err := st.GetAnalysisResult(ctx, "route_stages", &stages); err == nil && ok && len(stages) > 0 {
		candidates = append(candidates, stages[0])
	}

	var hubs hubResult
	if ok, err := st.GetAnalysisResult(ctx, "recommend_hubs", &hubs); err == nil && ok && len(hubs.Hubs) > 0 {
		h := hubs.Hubs[0]
		candidates = append(candidates, model.GeoCenter{Label: h.Name, Lat: h.Lat, Lng: h.Lng})
	}

	if destination != "" {
		candidates = append(candidates, model.GeoCenter{Label: destination})
	}

	for _, c := range candidates {
		if c.HasCoords() {
			return c
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return model.GeoCenter{Label: "Region"}
}
