package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealsahil19/webspace/pkg/errors"
	"github.com/therealsahil19/webspace/pkg/launches"
	"github.com/therealsahil19/webspace/pkg/reconcile"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s, err := Open(filepath.Join(t.TempDir(), "webspace.db"), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func crewOutcome() reconcile.Outcome {
	date := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mass := 5000.0
	return reconcile.Outcome{
		Record: launches.LaunchRecord{
			Slug:        "crew-10",
			MissionName: "Crew-10",
			LaunchDate:  &date,
			PayloadMass: &mass,
			Status:      launches.StatusSuccess,
		},
		FieldOrigins: map[string]string{
			launches.FieldMissionName: "official",
			launches.FieldLaunchDate:  "official",
			launches.FieldPayloadMass: "official",
			launches.FieldStatus:      "official",
		},
		Conflicts: []launches.Conflict{{
			FieldName:    launches.FieldPayloadMass,
			Source1Value: "5000",
			Source2Value: "5200",
		}},
		Provenance: []launches.Provenance{
			{SourceName: "official", ScrapedAt: date, QualityScore: 0.95},
			{SourceName: "backup", ScrapedAt: date, QualityScore: 0.8},
		},
	}
}

func TestUpsertLaunchCreates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	result, err := s.UpsertLaunch(ctx, crewOutcome())
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.True(t, result.Changed)
	assert.Equal(t, 1, result.ConflictsCreated)
	assert.Equal(t, 2, result.ProvenanceAppended)
	assert.NotZero(t, result.Launch.ID)

	rec, origins, err := s.GetLaunch(ctx, "crew-10")
	require.NoError(t, err)
	assert.Equal(t, "Crew-10", rec.MissionName)
	assert.Equal(t, "official", origins[launches.FieldPayloadMass])
}

func TestUpsertLaunchIdempotentReplay(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertLaunch(ctx, crewOutcome())
	require.NoError(t, err)

	replay, err := s.UpsertLaunch(ctx, crewOutcome())
	require.NoError(t, err)

	assert.False(t, replay.Created)
	assert.False(t, replay.Changed)
	assert.Zero(t, replay.ConflictsCreated)
	assert.Zero(t, replay.ConflictsUpdated)
	assert.Zero(t, replay.ProvenanceAppended)
	assert.Equal(t, first.Launch.UpdatedAt, replay.Launch.UpdatedAt)

	conflicts, err := s.ListConflicts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)

	prov, err := s.ListProvenance(ctx, first.Launch.ID)
	require.NoError(t, err)
	assert.Len(t, prov, 2)
}

func TestUpsertLaunchRefreshesOpenConflict(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertLaunch(ctx, crewOutcome())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	next := crewOutcome()
	next.Conflicts[0].Source2Value = "5300"

	result, err := s.UpsertLaunch(ctx, next)
	require.NoError(t, err)
	assert.Zero(t, result.ConflictsCreated)
	assert.Equal(t, 1, result.ConflictsUpdated)

	conflicts, err := s.ListConflicts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "5300", conflicts[0].Source2Value)
}

func TestResolveConflictWritesThrough(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertLaunch(ctx, crewOutcome())
	require.NoError(t, err)

	conflicts, err := s.ListConflicts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	rec, err := s.ResolveConflict(ctx, conflicts[0].ID, "5200", "backup was right")
	require.NoError(t, err)
	require.NotNil(t, rec.PayloadMass)
	assert.Equal(t, 5200.0, *rec.PayloadMass)

	open := false
	remaining, err := s.ListConflicts(ctx, &open)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestResolutionPermanence(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertLaunch(ctx, crewOutcome())
	require.NoError(t, err)

	conflicts, err := s.ListConflicts(ctx, nil)
	require.NoError(t, err)
	_, err = s.ResolveConflict(ctx, conflicts[0].ID, "5200", "")
	require.NoError(t, err)

	// A later run still disagrees; the resolved value must hold and the
	// conflict must not reappear.
	clock.Advance(time.Hour)
	result, err := s.UpsertLaunch(ctx, crewOutcome())
	require.NoError(t, err)
	require.NotNil(t, result.Launch.PayloadMass)
	assert.Equal(t, 5200.0, *result.Launch.PayloadMass)
	assert.Zero(t, result.ConflictsCreated)

	rec, origins, err := s.GetLaunch(ctx, "crew-10")
	require.NoError(t, err)
	assert.Equal(t, 5200.0, *rec.PayloadMass)
	assert.Equal(t, reconcile.ResolutionOrigin, origins[launches.FieldPayloadMass])

	all, err := s.ListConflicts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReopenConflict(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertLaunch(ctx, crewOutcome())
	require.NoError(t, err)

	conflicts, err := s.ListConflicts(ctx, nil)
	require.NoError(t, err)
	_, err = s.ResolveConflict(ctx, conflicts[0].ID, "5200", "")
	require.NoError(t, err)

	require.NoError(t, s.ReopenConflict(ctx, conflicts[0].ID))

	// The reconciled value wins the field again on the next run.
	clock.Advance(time.Hour)
	result, err := s.UpsertLaunch(ctx, crewOutcome())
	require.NoError(t, err)
	require.NotNil(t, result.Launch.PayloadMass)
	assert.Equal(t, 5000.0, *result.Launch.PayloadMass)
}

func TestResolveConflictTwiceFails(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertLaunch(ctx, crewOutcome())
	require.NoError(t, err)

	conflicts, err := s.ListConflicts(ctx, nil)
	require.NoError(t, err)
	_, err = s.ResolveConflict(ctx, conflicts[0].ID, "5200", "")
	require.NoError(t, err)

	_, err = s.ResolveConflict(ctx, conflicts[0].ID, "5000", "")
	assert.ErrorIs(t, err, errors.ErrConflictResolved)
}

func TestGetLaunchNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, _, err := s.GetLaunch(context.Background(), "nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestFindLaunchAcrossSlugs(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertLaunch(ctx, crewOutcome())
	require.NoError(t, err)

	rec, _, err := s.FindLaunch(ctx, []string{"crew10-mission", "crew-10"})
	require.NoError(t, err)
	assert.Equal(t, "crew-10", rec.Slug)

	_, _, err = s.FindLaunch(ctx, []string{"nope"})
	assert.True(t, errors.IsNotFound(err))
}

func TestGetConflictStats(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertLaunch(ctx, crewOutcome())
	require.NoError(t, err)

	stats, err := s.GetConflictStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Open)
	assert.Zero(t, stats.Resolved)
	assert.Equal(t, 1, stats.ByField[launches.FieldPayloadMass])
}
