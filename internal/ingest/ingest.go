package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tripforge/placescout/internal/model"
	"github.com/tripforge/placescout/internal/store"
)

// garbageNames are normalized names that mark a candidate as filler output
// rather than a real place.
var garbageNames = map[string]bool{
	"unknown": true, "n/a": true, "na": true, "none": true,
	"tbd": true, "null": true, "placeholder": true, "example": true,
}

// guideNames are guide, brand, and review-platform names the model sometimes
// emits as if they were places. Matched against the normalized name.
var guideNames = map[string]bool{
	"michelin": true, "michelin guide": true, "guide michelin": true,
	"gault millau": true, "gault&millau": true, "lonely planet": true,
	"tripadvisor": true, "trip advisor": true, "yelp": true,
	"google maps": true, "google reviews": true,
	"rough guide": true, "rough guides": true,
	"fodor's": true, "fodors": true, "frommer's": true, "frommers": true,
	"atlas obscura": true, "time out": true,
	"local guide": true, "city guide": true, "travel guide": true,
}

// extraStripKeys are passthrough fields removed before storing: they either
// duplicate typed fields or carry provenance the dataset does not keep.
var extraStripKeys = []string{"category", "source_url", "sourceurl", "url", "source"}

// Options controls one ingestion pass.
type Options struct {
	// AllowStringCandidates accepts bare strings as name-only candidates.
	AllowStringCandidates bool
	// SummarySlot, when set, receives a ScoutSummary list of everything stored
	// in this pass for the downstream enrichment phase.
	SummarySlot string
}

// Result reports what an ingestion pass did.
type Result struct {
	Stored    int
	Rejected  int
	Skipped   int
	Summaries []model.ScoutSummary
}

// Ingestor persists vacuumed candidates through identity resolution.
type Ingestor struct {
	store    store.Store
	resolver *Resolver
	now      func() time.Time
}

// New creates an ingestor.
func New(s store.Store, r *Resolver) *Ingestor {
	return &Ingestor{store: s, resolver: r, now: time.Now}
}

// Ingest vacuums candidates out of a validated result value and stores the
// survivors. Rejected and garbage candidates are dropped; candidates that
// would degrade an already enriched place are skipped; everything else merges
// into its resolved place or creates a new one.
func (in *Ingestor) Ingest(ctx context.Context, data any, opts Options) (*Result, error) {
	cands := Vacuum(data, VacuumOptions{AllowStringCandidates: opts.AllowStringCandidates})
	res := &Result{}
	if len(cands) == 0 {
		return res, nil
	}

	existing, err := in.store.ListPlaces(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list places")
	}

	for i := range cands {
		c := &cands[i]

		if n := NormalizeName(c.Name); garbageNames[n] || guideNames[n] {
			zap.L().Debug("dropping non-place candidate", zap.String("name", c.Name))
			res.Rejected++
			continue
		}
		if c.Rejected() {
			zap.L().Debug("dropping rejected candidate", zap.String("name", c.Name))
			res.Rejected++
			continue
		}

		match := in.resolver.Resolve(c, existing)
		if match != nil && match.Enriched() && !c.Enriched() {
			// An enriched place is the source of truth; a sparser candidate
			// must not dilute it.
			zap.L().Debug("skipping candidate for enriched place",
				zap.String("name", c.Name),
				zap.String("place_id", match.ID))
			res.Skipped++
			continue
		}

		var place *model.Place
		if match != nil {
			place = match
		} else {
			place = &model.Place{
				ID:        c.ID,
				Name:      c.Name,
				Category:  c.Category(),
				CreatedAt: in.now(),
			}
			if place.ID == "" {
				place.ID = uuid.NewString()
			}
		}

		in.merge(place, c)

		if err := in.store.UpsertPlace(ctx, place); err != nil {
			return nil, eris.Wrapf(err, "ingest: upsert place %s", place.Name)
		}
		res.Stored++
		res.Summaries = append(res.Summaries, model.ScoutSummary{
			ID:   place.ID,
			Name: place.Name,
			Town: place.SourceTown,
		})

		if match == nil {
			existing = append(existing, *place)
		}
	}

	if opts.SummarySlot != "" && len(res.Summaries) > 0 {
		if err := in.store.SetAnalysisResult(ctx, opts.SummarySlot, res.Summaries); err != nil {
			return nil, eris.Wrap(err, "ingest: save scout summary")
		}
	}

	zap.L().Info("ingestion pass completed",
		zap.Int("stored", res.Stored),
		zap.Int("rejected", res.Rejected),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// merge writes candidate fields into the place. Non-empty candidate fields
// win, except validated coordinates which are never clobbered.
func (in *Ingestor) merge(p *model.Place, c *model.Candidate) {
	if c.Address != "" {
		p.Address = c.Address
	}
	if c.HasCoords() && !p.CoordsValidated {
		p.SetCoords(c.Lat, c.Lng)
	}
	if c.Rating > 0 {
		p.Rating = c.Rating
	}
	if c.ReviewCount > 0 {
		p.ReviewCount = c.ReviewCount
	}
	if c.OriginalName != "" {
		p.OriginalName = c.OriginalName
	}
	if len(c.Awards) > 0 {
		p.Awards = c.Awards
	}
	if c.VerificationStatus != "" {
		p.VerificationStatus = c.VerificationStatus
	}
	if c.Signature != "" {
		p.Signature = c.Signature
	}
	if c.Phone != "" {
		p.Phone = c.Phone
	}
	if c.Website != "" {
		p.Website = c.Website
	}
	if c.OpeningHours != "" {
		p.OpeningHours = c.OpeningHours
	}
	if c.Cuisine != "" {
		p.Cuisine = c.Cuisine
	}
	if c.PriceTier != "" {
		p.PriceTier = c.PriceTier
	}
	if c.SourceTown != "" {
		p.SourceTown = c.SourceTown
	}

	if len(c.Extra) > 0 {
		if p.Extra == nil {
			p.Extra = make(map[string]any, len(c.Extra))
		}
		for k, v := range c.Extra {
			p.Extra[k] = v
		}
		for _, k := range extraStripKeys {
			delete(p.Extra, k)
		}
	}

	p.UpdatedAt = in.now()
}
