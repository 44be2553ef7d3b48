package reconcile

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealsahil19/webspace/pkg/dedup"
	"github.com/therealsahil19/webspace/pkg/launches"
	"github.com/therealsahil19/webspace/pkg/validate"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestReconciler() *Reconciler {
	return New(
		NewRanking([]string{"official", "backup", "community"}),
		WithNow(func() time.Time { return testNow }),
	)
}

func member(source string, rec launches.LaunchRecord) validate.Candidate {
	return validate.Candidate{Record: rec, SourceName: source, QualityScore: 0.9}
}

func massPtr(m float64) *float64 {
	return &m
}

func datePtr(t time.Time) *time.Time {
	return &t
}

func TestReconcileEmptyGroup(t *testing.T) {
	r := newTestReconciler()

	_, err := r.Reconcile(dedup.Group{})
	assert.Error(t, err)
}

func TestReconcilePriorityWinsAndConflictRecorded(t *testing.T) {
	r := newTestReconciler()

	group := dedup.Group{Members: []validate.Candidate{
		member("backup", launches.LaunchRecord{
			Slug: "crew-10", MissionName: "Crew-10", PayloadMass: massPtr(5200),
		}),
		member("official", launches.LaunchRecord{
			Slug: "crew-10", MissionName: "Crew-10", PayloadMass: massPtr(5000),
		}),
	}}

	outcome, err := r.Reconcile(group)
	require.NoError(t, err)

	require.NotNil(t, outcome.Record.PayloadMass)
	assert.Equal(t, 5000.0, *outcome.Record.PayloadMass)
	assert.Equal(t, "official", outcome.FieldOrigins[launches.FieldPayloadMass])

	require.Len(t, outcome.Conflicts, 1)
	c := outcome.Conflicts[0]
	assert.Equal(t, launches.FieldPayloadMass, c.FieldName)
	assert.Equal(t, "5000", c.Source1Value)
	assert.Equal(t, "5200", c.Source2Value)
}

func TestReconcileMassWithinToleranceNoConflict(t *testing.T) {
	r := newTestReconciler()

	group := dedup.Group{Members: []validate.Candidate{
		member("official", launches.LaunchRecord{
			Slug: "crew-10", MissionName: "Crew-10", PayloadMass: massPtr(5000),
		}),
		member("backup", launches.LaunchRecord{
			Slug: "crew-10", MissionName: "Crew-10", PayloadMass: massPtr(5040),
		}),
	}}

	outcome, err := r.Reconcile(group)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, *outcome.Record.PayloadMass)
	assert.Empty(t, outcome.Conflicts)
}

func TestReconcileDateWithinToleranceNoConflict(t *testing.T) {
	r := newTestReconciler()

	group := dedup.Group{Members: []validate.Candidate{
		member("official", launches.LaunchRecord{
			Slug: "crew-10", MissionName: "Crew-10",
			LaunchDate: datePtr(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
		}),
		member("backup", launches.LaunchRecord{
			Slug: "crew10-mission", MissionName: "Crew-10",
			LaunchDate: datePtr(time.Date(2024, 5, 1, 10, 3, 0, 0, time.UTC)),
		}),
	}}

	outcome, err := r.Reconcile(group)
	require.NoError(t, err)
	assert.Equal(t, "crew-10", outcome.Record.Slug)
	assert.True(t, outcome.Record.LaunchDate.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.Empty(t, outcome.Conflicts)
}

func TestReconcileTextCaseInsensitive(t *testing.T) {
	r := newTestReconciler()

	group := dedup.Group{Members: []validate.Candidate{
		member("official", launches.LaunchRecord{
			Slug: "crew-10", MissionName: "Crew-10", VehicleType: "Falcon 9",
		}),
		member("backup", launches.LaunchRecord{
			Slug: "crew-10", MissionName: "CREW-10", VehicleType: " falcon 9 ",
		}),
	}}

	outcome, err := r.Reconcile(group)
	require.NoError(t, err)
	assert.Equal(t, "Falcon 9", outcome.Record.VehicleType)
	assert.Empty(t, outcome.Conflicts)
}

func TestReconcileFillsGapsFromLowerPriority(t *testing.T) {
	r := newTestReconciler()

	group := dedup.Group{Members: []validate.Candidate{
		member("official", launches.LaunchRecord{
			Slug: "crew-10", MissionName: "Crew-10",
		}),
		member("backup", launches.LaunchRecord{
			Slug: "crew-10", MissionName: "Crew-10", Orbit: "LEO",
		}),
	}}

	outcome, err := r.Reconcile(group)
	require.NoError(t, err)
	assert.Equal(t, "LEO", outcome.Record.Orbit)
	assert.Equal(t, "backup", outcome.FieldOrigins[launches.FieldOrbit])
	assert.Empty(t, outcome.Conflicts)
}

func TestReconcileIndependentOfMemberOrder(t *testing.T) {
	r := newTestReconciler()

	a := member("official", launches.LaunchRecord{
		Slug: "crew-10", MissionName: "Crew-10", PayloadMass: massPtr(5000), Orbit: "LEO",
	})
	b := member("backup", launches.LaunchRecord{
		Slug: "crew-10", MissionName: "Crew 10", PayloadMass: massPtr(5300), VehicleType: "Falcon 9",
	})
	c := member("community", launches.LaunchRecord{
		Slug: "crew-10", MissionName: "Crew-10", Details: "Crew rotation flight.",
	})

	first, err := r.Reconcile(dedup.Group{Members: []validate.Candidate{a, b, c}})
	require.NoError(t, err)
	second, err := r.Reconcile(dedup.Group{Members: []validate.Candidate{c, b, a}})
	require.NoError(t, err)

	sortProvenance := cmpopts.SortSlices(func(x, y launches.Provenance) bool {
		return x.SourceName < y.SourceName
	})
	assert.Empty(t, cmp.Diff(first, second, sortProvenance))
}

func TestReconcileProvenancePerSource(t *testing.T) {
	r := newTestReconciler()

	scraped := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	group := dedup.Group{Members: []validate.Candidate{
		{
			Record:       launches.LaunchRecord{Slug: "crew-10", MissionName: "Crew-10"},
			SourceName:   "official",
			SourceURL:    "https://official.example/launches",
			ScrapedAt:    scraped,
			QualityScore: 0.95,
		},
		{
			Record:       launches.LaunchRecord{Slug: "crew-10", MissionName: "Crew-10"},
			SourceName:   "backup",
			SourceURL:    "https://backup.example/feed",
			ScrapedAt:    scraped,
			QualityScore: 0.8,
		},
	}}

	outcome, err := r.Reconcile(group)
	require.NoError(t, err)
	require.Len(t, outcome.Provenance, 2)
	assert.Equal(t, "official", outcome.Provenance[0].SourceName)
	assert.Equal(t, 0.95, outcome.Provenance[0].QualityScore)
}

func TestReconcileConflictValuesFollowRank(t *testing.T) {
	r := newTestReconciler()

	group := dedup.Group{Members: []validate.Candidate{
		member("community", launches.LaunchRecord{
			Slug: "crew-10", MissionName: "Crew-10", Orbit: "SSO",
		}),
		member("official", launches.LaunchRecord{
			Slug: "crew-10", MissionName: "Crew-10", Orbit: "LEO",
		}),
	}}

	outcome, err := r.Reconcile(group)
	require.NoError(t, err)
	require.Len(t, outcome.Conflicts, 1)
	assert.Equal(t, "LEO", outcome.Conflicts[0].Source1Value)
	assert.Equal(t, "SSO", outcome.Conflicts[0].Source2Value)
}

func TestStoredContributions(t *testing.T) {
	date := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := launches.LaunchRecord{
		Slug:        "crew-10",
		MissionName: "Crew-10",
		LaunchDate:  &date,
		Orbit:       "LEO",
	}
	origins := map[string]string{
		launches.FieldMissionName: "official",
		launches.FieldLaunchDate:  "official",
		launches.FieldOrbit:       "backup",
	}

	contributions := StoredContributions(rec, origins)
	require.Len(t, contributions, 2)

	assert.Equal(t, "backup", contributions[0].SourceName)
	assert.Equal(t, "LEO", contributions[0].Record.Orbit)
	assert.Empty(t, contributions[0].Record.MissionName)

	assert.Equal(t, "official", contributions[1].SourceName)
	assert.Equal(t, "Crew-10", contributions[1].Record.MissionName)
	require.NotNil(t, contributions[1].Record.LaunchDate)
	assert.True(t, contributions[1].Record.LaunchDate.Equal(date))
}

func TestFormatValue(t *testing.T) {
	date := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "5000", FormatValue(5000.0))
	assert.Equal(t, "2024-05-01T10:00:00Z", FormatValue(date))
	assert.Equal(t, "success", FormatValue(launches.StatusSuccess))
	assert.Equal(t, "Falcon 9", FormatValue("Falcon 9"))
	assert.Equal(t, "", FormatValue(nil))
}
