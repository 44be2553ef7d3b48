package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealsahil19/webspace/internal/transport"
	"github.com/therealsahil19/webspace/pkg/errors"
	"github.com/therealsahil19/webspace/pkg/launches"
)

var testScrapeTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return testScrapeTime
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	static := NewStaticAdapter("static")
	reg.Register(static)

	// Adapter field takes precedence over the source name.
	got, ok := reg.Resolve(Config{Name: "official", Adapter: "static"})
	require.True(t, ok)
	assert.Same(t, Adapter(static), got)

	// Falls back to the source name when no adapter is named.
	got, ok = reg.Resolve(Config{Name: "static"})
	require.True(t, ok)
	assert.Same(t, Adapter(static), got)

	_, ok = reg.Resolve(Config{Name: "unknown"})
	assert.False(t, ok)
}

func TestStaticAdapterLoadsYAMLFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "official.yaml")
	fixture := `launches:
  - mission_name: Crew-10
    slug: crew-10
    launch_date: "2024-03-01T12:00:00Z"
    payload_mass: "5000 kg"
  - mission_name: Starlink Group 6-1
`
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	adapter := NewStaticAdapter("static")
	adapter.clock = fixedClock

	cfg := Config{Name: "official", URL: path, Quality: 0.9}
	records, err := adapter.Fetch(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Crew-10", records[0].MissionName)
	assert.Equal(t, "crew-10", records[0].Slug)
	assert.Equal(t, "official", records[0].SourceName)
	assert.Equal(t, path, records[0].SourceURL)
	assert.Equal(t, testScrapeTime, records[0].ScrapedAt)
	assert.Equal(t, 0.9, records[0].QualityScore)
}

func TestStaticAdapterLoadsBareJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	fixture := `[{"mission_name": "Crew-10", "source_name": "mirror", "quality_score": 0.5}]`
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	adapter := NewStaticAdapter("static")
	adapter.clock = fixedClock

	records, err := adapter.Fetch(context.Background(), Config{Name: "official", URL: path, Quality: 0.9})
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Attribution present in the feed is kept, not overwritten.
	assert.Equal(t, "mirror", records[0].SourceName)
	assert.Equal(t, 0.5, records[0].QualityScore)
}

func TestStaticAdapterMissingFile(t *testing.T) {
	adapter := NewStaticAdapter("static")
	_, err := adapter.Fetch(context.Background(), Config{Name: "official", URL: "/nonexistent.yaml"})
	require.Error(t, err)

	var aerr *errors.AdapterError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "official", aerr.Source)
}

func TestStaticAdapterInMemoryRecords(t *testing.T) {
	seed := []launches.RawRecord{{MissionName: "Crew-10"}}
	adapter := NewStaticAdapterWithRecords("static", seed)
	adapter.clock = fixedClock

	records, err := adapter.Fetch(context.Background(), Config{Name: "official", Quality: 0.9})
	require.NoError(t, err)
	require.Len(t, records, 1)

	// The seed slice must not be mutated by stamping.
	assert.Equal(t, "official", records[0].SourceName)
	assert.Empty(t, seed[0].SourceName)
}

func TestHTTPAdapterFetchesWrappedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"launches": [{"mission_name": "Crew-10", "slug": "crew-10"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	adapter := NewHTTPAdapter("http",
		WithClient(transport.New(transport.WithHTTPClient(srv.Client()))),
		WithClock(fixedClock))

	records, err := adapter.Fetch(context.Background(), Config{Name: "official", URL: srv.URL, Quality: 0.9})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "crew-10", records[0].Slug)
	assert.Equal(t, "official", records[0].SourceName)
	assert.Equal(t, srv.URL, records[0].SourceURL)
}

func TestHTTPAdapterRejectsNonJSONFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`)) //nolint:errcheck
	}))
	defer srv.Close()

	adapter := NewHTTPAdapter("http",
		WithClient(transport.New(transport.WithHTTPClient(srv.Client()))))

	_, err := adapter.Fetch(context.Background(), Config{Name: "official", URL: srv.URL})
	require.Error(t, err)

	var aerr *errors.AdapterError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "parse", aerr.Kind)
}

func TestHTTPAdapterRequiresURL(t *testing.T) {
	adapter := NewHTTPAdapter("http")
	_, err := adapter.Fetch(context.Background(), Config{Name: "official"})
	assert.Error(t, err)
}
