package ingest

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tripforge/placescout/internal/config"
	"github.com/tripforge/placescout/internal/model"
)

// Resolver binds candidates to existing places by identifier and by fuzzy
// name matching, never across incompatible category groups.
type Resolver struct {
	cfg config.IngestConfig
}

// NewResolver creates a resolver with the configured matching thresholds.
func NewResolver(cfg config.IngestConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve returns the existing place the candidate refers to, or nil when the
// candidate is new. The cascade is: exact identifier, exact normalized name,
// fuzzy name similarity above the threshold. Every stage is gated by category
// compatibility so a restaurant can never capture a same-named sight.
func (r *Resolver) Resolve(c *model.Candidate, existing []model.Place) *model.Place {
	candCat := c.Category()

	if c.ID != "" {
		for i := range existing {
			p := &existing[i]
			if p.ID == c.ID {
				if !candCat.Compatible(p.Category) {
					zap.L().Warn("candidate id collides across category groups, treating as new",
						zap.String("id", c.ID),
						zap.String("candidate_category", string(candCat)),
						zap.String("place_category", string(p.Category)))
					return nil
				}
				return p
			}
		}
	}

	name := NormalizeName(c.Name)
	if name == "" {
		return nil
	}

	var best *model.Place
	bestScore := 0.0
	for i := range existing {
		p := &existing[i]
		if !candCat.Compatible(p.Category) {
			continue
		}

		pname := NormalizeName(p.Name)
		if pname == name {
			return p
		}

		score := levenshtein.Similarity(name, pname, nil)
		if sub := r.substringScore(name, pname); sub > score {
			score = sub
		}
		if score > bestScore {
			bestScore = score
			best = p
		}
	}

	if best != nil && bestScore >= r.cfg.SimilarityThreshold {
		zap.L().Debug("fuzzy-matched candidate to existing place",
			zap.String("candidate", c.Name),
			zap.String("place", best.Name),
			zap.Float64("score", bestScore))
		return best
	}
	return nil
}

// substringScore scores one normalized name containing the other. Trivially
// short names are excluded so "bar" does not bind to every bar in town.
func (r *Resolver) substringScore(a, b string) float64 {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) <= r.cfg.MinSubstringLen {
		return 0
	}
	if strings.Contains(longer, shorter) {
		return r.cfg.SubstringBoost
	}
	return 0
}

// NormalizeName lowercases, strips diacritics, and collapses whitespace so
// "Café de Paris" and "cafe de paris" normalize identically.
func NormalizeName(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
