package sources

import (
	"context"
	"encoding/json"
	"time"

	"github.com/therealsahil19/webspace/internal/transport"
	"github.com/therealsahil19/webspace/pkg/errors"
	"github.com/therealsahil19/webspace/pkg/launches"
)

// HTTPAdapter fetches a JSON document of raw launch records over HTTP. It
// accepts either a bare array of records or an object wrapping the array
// under a "launches" key, which covers the feed shapes we scrape today.
type HTTPAdapter struct {
	name   string
	client *transport.Client
	clock  func() time.Time
}

// HTTPOption configures an HTTPAdapter.
type HTTPOption func(*HTTPAdapter)

// WithClient sets the transport client. Useful in tests.
func WithClient(c *transport.Client) HTTPOption {
	return func(a *HTTPAdapter) {
		a.client = c
	}
}

// WithClock sets the time source used to stamp scraped_at.
func WithClock(clock func() time.Time) HTTPOption {
	return func(a *HTTPAdapter) {
		a.clock = clock
	}
}

// NewHTTPAdapter creates an HTTP adapter registered under name.
func NewHTTPAdapter(name string, opts ...HTTPOption) *HTTPAdapter {
	a := &HTTPAdapter{
		name:  name,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = transport.New()
	}
	return a
}

// Name implements Adapter.
func (a *HTTPAdapter) Name() string {
	return a.name
}

// feedDocument tolerates both wrapped and bare-array feeds.
type feedDocument struct {
	Launches []launches.RawRecord `json:"launches"`
}

// Fetch implements Adapter.
func (a *HTTPAdapter) Fetch(ctx context.Context, cfg Config) ([]launches.RawRecord, error) {
	if cfg.URL == "" {
		return nil, errors.NewAdapterError(cfg.Name, "", "no url configured", nil)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var raw json.RawMessage
	if err := a.client.GetJSON(ctx, cfg.Name, cfg.URL, &raw); err != nil {
		return nil, err
	}

	var records []launches.RawRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		var doc feedDocument
		if err2 := json.Unmarshal(raw, &doc); err2 != nil {
			return nil, errors.NewAdapterError(cfg.Name, "parse", "decode feed from "+cfg.URL, err)
		}
		records = doc.Launches
	}

	stampRecords(records, cfg, a.clock())
	return records, nil
}

// stampRecords fills in the source attribution fields adapters are allowed
// to leave blank in the feed itself.
func stampRecords(records []launches.RawRecord, cfg Config, now time.Time) {
	for i := range records {
		if records[i].SourceName == "" {
			records[i].SourceName = cfg.Name
		}
		if records[i].SourceURL == "" {
			records[i].SourceURL = cfg.URL
		}
		if records[i].ScrapedAt.IsZero() {
			records[i].ScrapedAt = now.UTC()
		}
		if records[i].QualityScore == 0 {
			records[i].QualityScore = cfg.Quality
		}
	}
}
