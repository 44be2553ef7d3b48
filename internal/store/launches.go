package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/therealsahil19/webspace/pkg/errors"
	"github.com/therealsahil19/webspace/pkg/launches"
	"github.com/therealsahil19/webspace/pkg/logging"
	"github.com/therealsahil19/webspace/pkg/reconcile"
)

// UpsertResult reports what one launch upsert changed.
type UpsertResult struct {
	Launch             launches.LaunchRecord
	Created            bool
	Changed            bool
	ConflictsCreated   int
	ConflictsUpdated   int
	ProvenanceAppended int
}

// UpsertLaunch idempotently merges one reconciled outcome, its conflicts,
// and its provenance into storage, keyed by slug. The whole operation runs
// in one transaction; a failure affects only this launch.
//
// Fields covered by a resolved conflict keep their resolution value no
// matter what the outcome says; reconciled values win again only after the
// conflict is reopened. Replaying an identical outcome changes nothing.
func (s *Store) UpsertLaunch(ctx context.Context, outcome reconcile.Outcome) (UpsertResult, error) {
	slug := outcome.Record.Slug
	if slug == "" {
		return UpsertResult{}, errors.NewValidationError("slug", "", "record has no slug")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, errors.WrapPersistence("begin", slug, err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := s.upsertLaunchTx(ctx, tx, outcome)
	if err != nil {
		return UpsertResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return UpsertResult{}, errors.WrapPersistence("commit", slug, err)
	}
	return result, nil
}

func (s *Store) upsertLaunchTx(ctx context.Context, tx *sql.Tx, outcome reconcile.Outcome) (UpsertResult, error) {
	now := s.clock().UTC()
	rec := outcome.Record
	slug := rec.Slug

	origins := make(map[string]string, len(outcome.FieldOrigins))
	for field, source := range outcome.FieldOrigins {
		origins[field] = source
	}

	existing, existingOrigins, err := getLaunchTx(ctx, tx, slug)
	if err != nil && !errors.IsNotFound(err) {
		return UpsertResult{}, err
	}

	result := UpsertResult{}

	if existing != nil {
		// Resolved conflicts override reconciled values per field.
		if err := applyResolutions(ctx, tx, existing.ID, &rec, origins); err != nil {
			return UpsertResult{}, err
		}
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		result.Changed = !sameLaunch(existing, &rec) || !sameOrigins(existingOrigins, origins)
	} else {
		result.Created = true
		result.Changed = true
		rec.CreatedAt = now
	}

	originsJSON, err := json.Marshal(origins)
	if err != nil {
		return UpsertResult{}, errors.WrapPersistence("encode origins", slug, err)
	}

	if result.Created {
		rec.UpdatedAt = now
		res, err := tx.ExecContext(ctx,
			`INSERT INTO launches(slug, mission_name, launch_date, vehicle_type, payload_mass,
			                      orbit, status, details, patch_url, webcast_url,
			                      field_origins, created_at, updated_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			slug, rec.MissionName, launchDateArg(&rec), strOrNull(rec.VehicleType), massArg(&rec),
			strOrNull(rec.Orbit), strOrNull(string(rec.Status)), strOrNull(rec.Details),
			strOrNull(rec.PatchURL), strOrNull(rec.WebcastURL),
			string(originsJSON), timeStr(rec.CreatedAt), timeStr(rec.UpdatedAt),
		)
		if err != nil {
			return UpsertResult{}, errors.WrapPersistence("insert launch", slug, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return UpsertResult{}, errors.WrapPersistence("insert launch", slug, err)
		}
		rec.ID = id
	} else if result.Changed {
		rec.UpdatedAt = now
		_, err := tx.ExecContext(ctx,
			`UPDATE launches
			 SET mission_name = ?, launch_date = ?, vehicle_type = ?, payload_mass = ?,
			     orbit = ?, status = ?, details = ?, patch_url = ?, webcast_url = ?,
			     field_origins = ?, updated_at = ?
			 WHERE id = ?`,
			rec.MissionName, launchDateArg(&rec), strOrNull(rec.VehicleType), massArg(&rec),
			strOrNull(rec.Orbit), strOrNull(string(rec.Status)), strOrNull(rec.Details),
			strOrNull(rec.PatchURL), strOrNull(rec.WebcastURL),
			string(originsJSON), timeStr(rec.UpdatedAt), rec.ID,
		)
		if err != nil {
			return UpsertResult{}, errors.WrapPersistence("update launch", slug, err)
		}
	} else {
		rec.UpdatedAt = existing.UpdatedAt
	}

	created, updated, err := s.upsertConflictsTx(ctx, tx, rec.ID, slug, outcome.Conflicts, now)
	if err != nil {
		return UpsertResult{}, err
	}
	result.ConflictsCreated, result.ConflictsUpdated = created, updated

	appended, err := appendProvenanceTx(ctx, tx, rec.ID, slug, outcome.Provenance, now)
	if err != nil {
		return UpsertResult{}, err
	}
	result.ProvenanceAppended = appended

	result.Launch = rec
	return result, nil
}

// applyResolutions overwrites rec's fields with resolution values from
// resolved conflicts. Later resolutions win when a field was resolved more
// than once.
func applyResolutions(ctx context.Context, tx *sql.Tx, launchID int64, rec *launches.LaunchRecord, origins map[string]string) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT field_name, resolution_value FROM data_conflicts
		 WHERE launch_id = ? AND resolved = 1 AND resolution_value IS NOT NULL
		 ORDER BY resolved_at, id`,
		launchID,
	)
	if err != nil {
		return errors.WrapPersistence("load resolutions", rec.Slug, err)
	}
	defer rows.Close()

	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return errors.WrapPersistence("scan resolution", rec.Slug, err)
		}
		parsed, err := ParseFieldValue(field, value)
		if err != nil {
			logging.Warn().
				Str("slug", rec.Slug).
				Str("field", field).
				Err(err).
				Msg("Skipping unparseable resolution value")
			continue
		}
		rec.SetFieldValue(field, parsed)
		origins[field] = reconcile.ResolutionOrigin
	}
	return rows.Err()
}

// upsertConflictsTx applies the no-duplicate rule: a field with a resolved
// conflict is left alone, an open conflict is refreshed in place when the
// values moved, and anything else inserts a new open row.
func (s *Store) upsertConflictsTx(ctx context.Context, tx *sql.Tx, launchID int64, slug string, conflicts []launches.Conflict, now time.Time) (created, updated int, err error) {
	for _, c := range conflicts {
		var resolvedCount int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM data_conflicts WHERE launch_id = ? AND field_name = ? AND resolved = 1",
			launchID, c.FieldName,
		).Scan(&resolvedCount)
		if err != nil {
			return created, updated, errors.WrapPersistence("check resolved conflict", slug, err)
		}
		if resolvedCount > 0 {
			continue
		}

		var openID int64
		var v1, v2 sql.NullString
		err = tx.QueryRowContext(ctx,
			"SELECT id, source1_value, source2_value FROM data_conflicts WHERE launch_id = ? AND field_name = ? AND resolved = 0",
			launchID, c.FieldName,
		).Scan(&openID, &v1, &v2)
		switch {
		case stderrors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				`INSERT INTO data_conflicts(launch_id, field_name, source1_value, source2_value,
				                            resolved, created_at, updated_at)
				 VALUES(?, ?, ?, ?, 0, ?, ?)`,
				launchID, c.FieldName, c.Source1Value, c.Source2Value, timeStr(now), timeStr(now),
			)
			if err != nil {
				return created, updated, errors.WrapPersistence("insert conflict", slug, err)
			}
			created++
		case err != nil:
			return created, updated, errors.WrapPersistence("find open conflict", slug, err)
		default:
			if nullStr(v1) == c.Source1Value && nullStr(v2) == c.Source2Value {
				continue
			}
			_, err = tx.ExecContext(ctx,
				"UPDATE data_conflicts SET source1_value = ?, source2_value = ?, updated_at = ? WHERE id = ?",
				c.Source1Value, c.Source2Value, timeStr(now), openID,
			)
			if err != nil {
				return created, updated, errors.WrapPersistence("refresh conflict", slug, err)
			}
			updated++
		}
	}
	return created, updated, nil
}

// appendProvenanceTx appends one row per contributing source. A row with the
// same source and scrape time already present is an identical replay and is
// skipped, keeping replays change-free.
func appendProvenanceTx(ctx context.Context, tx *sql.Tx, launchID int64, slug string, entries []launches.Provenance, now time.Time) (int, error) {
	appended := 0
	for _, p := range entries {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO launch_sources(launch_id, source_name, source_url, scraped_at, quality_score, created_at)
			 SELECT ?, ?, ?, ?, ?, ?
			 WHERE NOT EXISTS (
			     SELECT 1 FROM launch_sources WHERE launch_id = ? AND source_name = ? AND scraped_at = ?
			 )`,
			launchID, p.SourceName, strOrNull(p.SourceURL), timeStr(p.ScrapedAt), p.QualityScore, timeStr(now),
			launchID, p.SourceName, timeStr(p.ScrapedAt),
		)
		if err != nil {
			return appended, errors.WrapPersistence("append provenance", slug, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			appended++
		}
	}
	return appended, nil
}

// GetLaunch loads a canonical record and its per-field origins by slug.
func (s *Store) GetLaunch(ctx context.Context, slug string) (*launches.LaunchRecord, map[string]string, error) {
	return s.getLaunch(ctx, s.db, slug)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getLaunch(ctx context.Context, q queryer, slug string) (*launches.LaunchRecord, map[string]string, error) {
	return scanLaunch(q.QueryRowContext(ctx,
		launchSelect+" WHERE slug = ?", slug), slug)
}

func getLaunchTx(ctx context.Context, tx *sql.Tx, slug string) (*launches.LaunchRecord, map[string]string, error) {
	return scanLaunch(tx.QueryRowContext(ctx,
		launchSelect+" WHERE slug = ?", slug), slug)
}

const launchSelect = `SELECT id, slug, mission_name, launch_date, vehicle_type, payload_mass,
       orbit, status, details, patch_url, webcast_url, field_origins, created_at, updated_at
FROM launches`

func scanLaunch(row *sql.Row, slug string) (*launches.LaunchRecord, map[string]string, error) {
	var rec launches.LaunchRecord
	var launchDate, vehicleType, orbit, status, details, patchURL, webcastURL sql.NullString
	var mass sql.NullFloat64
	var originsJSON, createdAt, updatedAt string

	err := row.Scan(&rec.ID, &rec.Slug, &rec.MissionName, &launchDate, &vehicleType, &mass,
		&orbit, &status, &details, &patchURL, &webcastURL, &originsJSON, &createdAt, &updatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil, errors.NewNotFoundError("launch", slug)
	}
	if err != nil {
		return nil, nil, errors.WrapPersistence("get launch", slug, err)
	}

	rec.LaunchDate = nullTime(launchDate)
	rec.VehicleType = nullStr(vehicleType)
	if mass.Valid {
		rec.PayloadMass = &mass.Float64
	}
	rec.Orbit = nullStr(orbit)
	rec.Status = launches.Status(nullStr(status))
	rec.Details = nullStr(details)
	rec.PatchURL = nullStr(patchURL)
	rec.WebcastURL = nullStr(webcastURL)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		rec.UpdatedAt = t.UTC()
	}

	origins := map[string]string{}
	if err := json.Unmarshal([]byte(originsJSON), &origins); err != nil {
		return nil, nil, errors.WrapPersistence("decode origins", rec.Slug, err)
	}
	return &rec, origins, nil
}

// FindLaunch looks a launch up under any of the given slugs, in order.
// Launch groups can span sources that disagree on slugs; the first hit wins.
func (s *Store) FindLaunch(ctx context.Context, slugs []string) (*launches.LaunchRecord, map[string]string, error) {
	for _, slug := range slugs {
		rec, origins, err := s.GetLaunch(ctx, slug)
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return rec, origins, nil
	}
	return nil, nil, errors.NewNotFoundError("launch", "")
}

// ListLaunches returns all canonical records ordered by launch date then
// slug, undated launches last.
func (s *Store) ListLaunches(ctx context.Context) ([]launches.LaunchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		launchSelect+" ORDER BY launch_date IS NULL, launch_date, slug")
	if err != nil {
		return nil, errors.WrapPersistence("list launches", "", err)
	}
	defer rows.Close()

	var list []launches.LaunchRecord
	for rows.Next() {
		var rec launches.LaunchRecord
		var launchDate, vehicleType, orbit, status, details, patchURL, webcastURL sql.NullString
		var mass sql.NullFloat64
		var originsJSON, createdAt, updatedAt string
		if err := rows.Scan(&rec.ID, &rec.Slug, &rec.MissionName, &launchDate, &vehicleType, &mass,
			&orbit, &status, &details, &patchURL, &webcastURL, &originsJSON, &createdAt, &updatedAt); err != nil {
			return nil, errors.WrapPersistence("scan launch", "", err)
		}
		rec.LaunchDate = nullTime(launchDate)
		rec.VehicleType = nullStr(vehicleType)
		if mass.Valid {
			rec.PayloadMass = &mass.Float64
		}
		rec.Orbit = nullStr(orbit)
		rec.Status = launches.Status(nullStr(status))
		rec.Details = nullStr(details)
		rec.PatchURL = nullStr(patchURL)
		rec.WebcastURL = nullStr(webcastURL)
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.CreatedAt = t.UTC()
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			rec.UpdatedAt = t.UTC()
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapPersistence("list launches", "", err)
	}
	return list, nil
}

// ListProvenance returns a launch's provenance rows, oldest first.
func (s *Store) ListProvenance(ctx context.Context, launchID int64) ([]launches.Provenance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, launch_id, source_name, source_url, scraped_at, quality_score
		 FROM launch_sources WHERE launch_id = ? ORDER BY id`,
		launchID,
	)
	if err != nil {
		return nil, errors.WrapPersistence("list provenance", "", err)
	}
	defer rows.Close()

	var list []launches.Provenance
	for rows.Next() {
		var p launches.Provenance
		var sourceURL sql.NullString
		var scrapedAt string
		if err := rows.Scan(&p.ID, &p.LaunchID, &p.SourceName, &sourceURL, &scrapedAt, &p.QualityScore); err != nil {
			return nil, errors.WrapPersistence("scan provenance", "", err)
		}
		p.SourceURL = nullStr(sourceURL)
		if t, err := time.Parse(time.RFC3339, scrapedAt); err == nil {
			p.ScrapedAt = t.UTC()
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ParseFieldValue parses a conflict or resolution string back into the
// field's typed value.
func ParseFieldValue(field, value string) (any, error) {
	switch field {
	case launches.FieldPayloadMass:
		mass, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parse payload mass %q: %w", value, err)
		}
		return mass, nil
	case launches.FieldLaunchDate:
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			if t, err2 := time.Parse("2006-01-02", value); err2 == nil {
				return t.UTC(), nil
			}
			return nil, fmt.Errorf("parse launch date %q: %w", value, err)
		}
		return t.UTC(), nil
	case launches.FieldStatus:
		status := launches.Status(value)
		if !status.IsValid() {
			return nil, fmt.Errorf("invalid status %q", value)
		}
		return status, nil
	default:
		return value, nil
	}
}

// launchDateArg renders the launch date column argument.
func launchDateArg(rec *launches.LaunchRecord) any {
	if rec.LaunchDate == nil {
		return nil
	}
	return timeStr(*rec.LaunchDate)
}

// massArg renders the payload mass column argument.
func massArg(rec *launches.LaunchRecord) any {
	if rec.PayloadMass == nil {
		return nil
	}
	return *rec.PayloadMass
}

// sameLaunch compares the reconcilable fields of two records.
func sameLaunch(a, b *launches.LaunchRecord) bool {
	for _, field := range launches.ReconcilableFields() {
		va, vb := a.FieldValue(field), b.FieldValue(field)
		if field == launches.FieldLaunchDate {
			ta, aok := va.(time.Time)
			tb, bok := vb.(time.Time)
			if aok != bok {
				return false
			}
			if aok && !ta.Equal(tb) {
				return false
			}
			continue
		}
		if va != vb {
			return false
		}
	}
	return true
}

func sameOrigins(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
