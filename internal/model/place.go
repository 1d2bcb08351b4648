package model

import (
	"time"

	"github.com/twpayne/go-geom"
)

// Category classifies a stored place.
type Category string

const (
	CategorySight      Category = "sight"
	CategoryLandmark   Category = "landmark"
	CategoryRestaurant Category = "restaurant"
	CategoryCafe       Category = "cafe"
	CategoryHotel      Category = "hotel"
	CategorySpecial    Category = "special"
)

// categoryGroups maps each category to its compatibility group. Identity
// resolution may only bind a candidate to an existing place within the same
// group: a restaurant candidate must never overwrite a same-named sight.
var categoryGroups = map[Category]string{
	CategorySight:      "see",
	CategoryLandmark:   "see",
	CategoryRestaurant: "eat",
	CategoryCafe:       "eat",
	CategoryHotel:      "stay",
	CategorySpecial:    "special",
}

// Group returns the compatibility group for the category. Unknown categories
// fall into the "special" group.
func (c Category) Group() string {
	if g, ok := categoryGroups[c]; ok {
		return g
	}
	return "special"
}

// Compatible reports whether two categories may resolve to the same place.
// The special group is a wildcard in either direction.
func (c Category) Compatible(other Category) bool {
	if c == "" || other == "" {
		return true
	}
	g1, g2 := c.Group(), other.Group()
	return g1 == g2 || g1 == "special" || g2 == "special"
}

// Place is a persistent stored entity keyed by a stable identifier. It is
// created on first successful ingestion and mutated in place by later passes
// that resolve to the same identifier. Deletion is a store-level concern.
type Place struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`

	Address  string      `json:"address,omitempty"`
	Location *geom.Point `json:"-"`
	Lat      float64     `json:"lat,omitempty"`
	Lng      float64     `json:"lng,omitempty"`
	// CoordsValidated is set once the coordinates have been confirmed by a
	// trusted source and must not be clobbered by later model output.
	CoordsValidated bool `json:"coords_validated,omitempty"`

	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`

	// Enrichment signals. A place carrying any of these is "enriched" and is
	// protected from being degraded by sparser candidates (SSOT rule).
	OriginalName       string   `json:"original_name,omitempty"`
	Awards             []string `json:"awards,omitempty"`
	VerificationStatus string   `json:"verification_status,omitempty"`
	Signature          string   `json:"signature,omitempty"`

	Phone        string         `json:"phone,omitempty"`
	Website      string         `json:"website,omitempty"`
	OpeningHours string         `json:"opening_hours,omitempty"`
	Cuisine      string         `json:"cuisine,omitempty"`
	PriceTier    string         `json:"price_tier,omitempty"`
	SourceTown   string         `json:"source_town,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnrichmentSignals counts the high-value signals carried by the place.
func (p *Place) EnrichmentSignals() int {
	n := 0
	if p.OriginalName != "" {
		n++
	}
	if p.ReviewCount > 0 {
		n++
	}
	if len(p.Awards) > 0 {
		n++
	}
	if p.VerificationStatus == "verified" {
		n++
	}
	if p.Signature != "" {
		n++
	}
	return n
}

// Enriched reports whether the place carries at least one high-value signal.
func (p *Place) Enriched() bool {
	return p.EnrichmentSignals() > 0
}

// SetCoords sets the location point and the mirror lat/lng fields.
func (p *Place) SetCoords(lat, lng float64) {
	p.Lat = lat
	p.Lng = lng
	p.Location = geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(4326)
}

// HasCoords reports whether the place has a usable coordinate.
func (p *Place) HasCoords() bool {
	return p.Lat != 0 || p.Lng != 0
}
