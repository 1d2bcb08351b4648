package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryCompatible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Category
		want bool
	}{
		{"same category", CategorySight, CategorySight, true},
		{"same group", CategorySight, CategoryLandmark, true},
		{"restaurant and cafe", CategoryRestaurant, CategoryCafe, true},
		{"sight vs restaurant", CategorySight, CategoryRestaurant, false},
		{"hotel vs cafe", CategoryHotel, CategoryCafe, false},
		{"special is wildcard", CategorySpecial, CategoryHotel, true},
		{"wildcard reversed", CategorySight, CategorySpecial, true},
		{"empty is compatible", Category(""), CategoryHotel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.a.Compatible(tt.b))
		})
	}
}

func TestPlaceEnrichmentSignals(t *testing.T) {
	t.Parallel()

	p := Place{Name: "Le Négresco"}
	assert.Equal(t, 0, p.EnrichmentSignals())
	assert.False(t, p.Enriched())

	p.OriginalName = "Hôtel Negresco"
	p.ReviewCount = 4200
	p.VerificationStatus = "verified"
	assert.Equal(t, 3, p.EnrichmentSignals())
	assert.True(t, p.Enriched())

	// Pending verification is not a signal.
	p.VerificationStatus = "pending"
	assert.Equal(t, 2, p.EnrichmentSignals())
}

func TestPlaceSetCoords(t *testing.T) {
	t.Parallel()

	var p Place
	assert.False(t, p.HasCoords())

	p.SetCoords(43.6959, 7.2655)
	assert.True(t, p.HasCoords())
	assert.Equal(t, 43.6959, p.Lat)
	assert.Equal(t, 7.2655, p.Lng)

	// Point is stored lng-first with SRID 4326.
	assert.Equal(t, []float64{7.2655, 43.6959}, p.Location.FlatCoords())
	assert.Equal(t, 4326, p.Location.SRID())
}

func TestCandidateRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"clean", Candidate{Name: "ok", VerificationStatus: "verified"}, false},
		{"rejected status", Candidate{Name: "x", VerificationStatus: "rejected"}, true},
		{"invalid status", Candidate{Name: "x", VerificationStatus: "Invalid"}, true},
		{"sentinel address", Candidate{Name: "x", Address: "REJECTED - does not exist"}, true},
		{"empty", Candidate{Name: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.c.Rejected())
		})
	}
}

func TestCandidateCategory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CategoryRestaurant, (&Candidate{CategoryHint: "Restaurant"}).Category())
	assert.Equal(t, CategoryCafe, (&Candidate{CategoryHint: "café"}).Category())
	assert.Equal(t, CategoryHotel, (&Candidate{CategoryHint: "accommodation"}).Category())
	assert.Equal(t, CategorySight, (&Candidate{CategoryHint: "museum"}).Category())
	assert.Equal(t, CategorySight, (&Candidate{}).Category())
}
