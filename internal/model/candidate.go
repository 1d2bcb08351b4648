package model

import "strings"

// Candidate is a transient record freshly extracted from model output. Fields
// are loosely typed and may be partially populated or malformed; each
// candidate is consumed exactly once by ingestion and then discarded.
type Candidate struct {
	ID                 string         `json:"id,omitempty"`
	Name               string         `json:"name"`
	CategoryHint       string         `json:"category,omitempty"`
	Address            string         `json:"address,omitempty"`
	Lat                float64        `json:"lat,omitempty"`
	Lng                float64        `json:"lng,omitempty"`
	Rating             float64        `json:"rating,omitempty"`
	ReviewCount        int            `json:"review_count,omitempty"`
	OriginalName       string         `json:"original_name,omitempty"`
	Awards             []string       `json:"awards,omitempty"`
	VerificationStatus string         `json:"verification_status,omitempty"`
	Signature          string         `json:"signature,omitempty"`
	Phone              string         `json:"phone,omitempty"`
	Website            string         `json:"website,omitempty"`
	OpeningHours       string         `json:"opening_hours,omitempty"`
	Cuisine            string         `json:"cuisine,omitempty"`
	PriceTier          string         `json:"price_tier,omitempty"`
	SourceTown         string         `json:"source_town,omitempty"`
	Extra              map[string]any `json:"extra,omitempty"`
}

// EnrichmentSignals counts the high-value signals carried by the candidate.
func (c *Candidate) EnrichmentSignals() int {
	n := 0
	if c.OriginalName != "" {
		n++
	}
	if c.ReviewCount > 0 {
		n++
	}
	if len(c.Awards) > 0 {
		n++
	}
	if c.VerificationStatus == "verified" {
		n++
	}
	if c.Signature != "" {
		n++
	}
	return n
}

// Enriched reports whether the candidate carries at least one high-value signal.
func (c *Candidate) Enriched() bool {
	return c.EnrichmentSignals() > 0
}

// Rejected reports whether the upstream model explicitly marked the candidate
// invalid, either via the verification flag or a sentinel inside the address.
func (c *Candidate) Rejected() bool {
	switch strings.ToLower(c.VerificationStatus) {
	case "rejected", "invalid":
		return true
	}
	return strings.Contains(strings.ToUpper(c.Address), "REJECTED")
}

// Category maps the loose category hint onto a stored category. Unknown or
// empty hints default to sight, the most common scouting result type.
func (c *Candidate) Category() Category {
	switch strings.ToLower(strings.TrimSpace(c.CategoryHint)) {
	case "restaurant":
		return CategoryRestaurant
	case "cafe", "café", "coffee":
		return CategoryCafe
	case "hotel", "accommodation":
		return CategoryHotel
	case "landmark":
		return CategoryLandmark
	case "special", "experience":
		return CategorySpecial
	default:
		return CategorySight
	}
}

// HasCoords reports whether the candidate carries a usable coordinate.
func (c *Candidate) HasCoords() bool {
	return c.Lat != 0 || c.Lng != 0
}

// ScoutSummary is the lightweight record written to the shared analysis slot
// by a scouting ingestion pass for the downstream enrichment phase.
type ScoutSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Town string `json:"town,omitempty"`
}
