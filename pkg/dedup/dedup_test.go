package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealsahil19/webspace/pkg/launches"
	"github.com/therealsahil19/webspace/pkg/validate"
)

func candidate(source, slug, name string, date *time.Time) validate.Candidate {
	return validate.Candidate{
		Record: launches.LaunchRecord{
			Slug:        slug,
			MissionName: name,
			LaunchDate:  date,
		},
		SourceName:   source,
		QualityScore: 0.9,
	}
}

func datePtr(t time.Time) *time.Time {
	return &t
}

func TestGroupExactSlugMatch(t *testing.T) {
	d := New()
	date := datePtr(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	result := d.Group([]validate.Candidate{
		candidate("official", "crew-10", "Crew-10", date),
		candidate("backup", "crew-10", "Crew-10", date),
	})

	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Groups[0].Members, 2)
}

func TestGroupSimilarNameWithinWindow(t *testing.T) {
	d := New()

	a := candidate("official", "crew-10", "Crew-10",
		datePtr(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	b := candidate("backup", "crew10-mission", "Crew-10",
		datePtr(time.Date(2024, 5, 1, 10, 3, 0, 0, time.UTC)))

	result := d.Group([]validate.Candidate{a, b})

	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Groups[0].Members, 2)
}

func TestGroupOutsideDateWindowStaysSeparate(t *testing.T) {
	d := New()

	a := candidate("official", "starlink-6-1", "Starlink Group 6-1",
		datePtr(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	b := candidate("backup", "starlink-group-6-1", "Starlink Group 6-1",
		datePtr(time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)))

	result := d.Group([]validate.Candidate{a, b})

	assert.Len(t, result.Groups, 2)
}

func TestGroupDissimilarNamesStaySeparate(t *testing.T) {
	d := New()
	date := datePtr(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	result := d.Group([]validate.Candidate{
		candidate("official", "crew-10", "Crew-10", date),
		candidate("backup", "europa-clipper", "Europa Clipper", date),
	})

	assert.Len(t, result.Groups, 2)
}

func TestGroupSingletons(t *testing.T) {
	d := New()

	result := d.Group([]validate.Candidate{
		candidate("official", "crew-10", "Crew-10", nil),
	})

	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Groups[0].Members, 1)
}

func TestGroupOrderingIsReproducible(t *testing.T) {
	d := New()

	early := candidate("official", "crs-30", "CRS-30",
		datePtr(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	late := candidate("official", "crew-10", "Crew-10",
		datePtr(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	undated := candidate("official", "axiom-4", "Axiom-4", nil)

	result := d.Group([]validate.Candidate{undated, late, early})

	require.Len(t, result.Groups, 3)
	assert.Equal(t, "crs-30", result.Groups[0].MinSlug())
	assert.Equal(t, "crew-10", result.Groups[1].MinSlug())
	assert.Equal(t, "axiom-4", result.Groups[2].MinSlug())
}

func TestGroupCollapsesSameSourceDuplicates(t *testing.T) {
	d := New()
	date := datePtr(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	sparse := candidate("official", "crew-10", "Crew-10", date)
	full := candidate("official", "crew-10", "Crew-10", date)
	full.Record.VehicleType = "Falcon 9"
	full.Record.Orbit = "LEO"
	other := candidate("backup", "crew-10", "Crew-10", date)

	result := d.Group([]validate.Candidate{sparse, full, other})

	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Groups[0].Members, 2)
	assert.Equal(t, 1, result.DuplicatesRemoved)

	for _, m := range result.Groups[0].Members {
		if m.SourceName == "official" {
			assert.Equal(t, "Falcon 9", m.Record.VehicleType)
		}
	}
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Crew-10", "Crew-10", 1},
		{"SpaceX Crew-10", "Crew-10 Mission", 1},
		{"Starlink Group 6-1", "Starlink 6-1 Launch", 0.75},
		{"Crew-10", "Europa Clipper", 0},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, NameSimilarity(tc.a, tc.b), 0.01, "%q vs %q", tc.a, tc.b)
	}
}

func TestNormalizeMissionName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SpaceX Crew-10", "crew 10"},
		{"Crew-10 Mission", "crew 10"},
		{"CRS-30 Launch", "crs 30"},
		{"  Starlink   Group 6-1 ", "starlink group 6 1"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeMissionName(tc.in))
	}
}
