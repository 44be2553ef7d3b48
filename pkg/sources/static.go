package sources

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/therealsahil19/webspace/pkg/errors"
	"github.com/therealsahil19/webspace/pkg/launches"
)

// StaticAdapter serves raw records from a local YAML or JSON file, or from
// an in-memory slice. It backs offline runs and tests.
type StaticAdapter struct {
	name    string
	records []launches.RawRecord
	clock   func() time.Time
}

// NewStaticAdapter creates a static adapter that reads the file named by the
// source config URL at fetch time.
func NewStaticAdapter(name string) *StaticAdapter {
	return &StaticAdapter{name: name, clock: time.Now}
}

// NewStaticAdapterWithRecords creates a static adapter that always returns
// the given records.
func NewStaticAdapterWithRecords(name string, records []launches.RawRecord) *StaticAdapter {
	return &StaticAdapter{name: name, records: records, clock: time.Now}
}

// Name implements Adapter.
func (a *StaticAdapter) Name() string {
	return a.name
}

// Fetch implements Adapter.
func (a *StaticAdapter) Fetch(ctx context.Context, cfg Config) ([]launches.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []launches.RawRecord
	switch {
	case a.records != nil:
		records = make([]launches.RawRecord, len(a.records))
		copy(records, a.records)
	case cfg.URL != "":
		loaded, err := loadRecordsFile(cfg.Name, cfg.URL)
		if err != nil {
			return nil, err
		}
		records = loaded
	default:
		return nil, errors.NewAdapterError(cfg.Name, "", "no fixture file configured", nil)
	}

	stampRecords(records, cfg, a.clock())
	return records, nil
}

func loadRecordsFile(source, path string) ([]launches.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewAdapterError(source, "network", "read fixture "+path, err)
	}

	var records []launches.RawRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var doc feedDocument
		if err := json.Unmarshal(data, &records); err != nil {
			if err2 := json.Unmarshal(data, &doc); err2 != nil {
				return nil, errors.NewAdapterError(source, "parse", "decode fixture "+path, err)
			}
			records = doc.Launches
		}
	default:
		if err := yaml.Unmarshal(data, &records); err != nil {
			var doc struct {
				Launches []launches.RawRecord `yaml:"launches"`
			}
			if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
				return nil, errors.NewAdapterError(source, "parse", "decode fixture "+path, err)
			}
			records = doc.Launches
		}
	}
	return records, nil
}
