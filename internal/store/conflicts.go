package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/therealsahil19/webspace/pkg/errors"
	"github.com/therealsahil19/webspace/pkg/launches"
	"github.com/therealsahil19/webspace/pkg/logging"
	"github.com/therealsahil19/webspace/pkg/reconcile"
)

const conflictSelect = `SELECT c.id, c.launch_id, l.slug, c.field_name, c.source1_value, c.source2_value,
       c.resolved, c.resolution_value, c.notes, c.created_at, c.updated_at, c.resolved_at
FROM data_conflicts c JOIN launches l ON l.id = c.launch_id`

// ListConflicts returns conflicts, optionally filtered by resolution state,
// newest first.
func (s *Store) ListConflicts(ctx context.Context, resolved *bool) ([]launches.Conflict, error) {
	query := conflictSelect
	var args []any
	if resolved != nil {
		query += " WHERE c.resolved = ?"
		if *resolved {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}
	query += " ORDER BY c.updated_at DESC, c.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapPersistence("list conflicts", "", err)
	}
	defer rows.Close()

	var list []launches.Conflict
	for rows.Next() {
		c, err := scanConflictRow(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapPersistence("list conflicts", "", err)
	}
	return list, nil
}

// GetConflict loads one conflict by id.
func (s *Store) GetConflict(ctx context.Context, id int64) (*launches.Conflict, error) {
	rows, err := s.db.QueryContext(ctx, conflictSelect+" WHERE c.id = ?", id)
	if err != nil {
		return nil, errors.WrapPersistence("get conflict", "", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.WrapPersistence("get conflict", "", err)
		}
		return nil, errors.NewNotFoundError("conflict", strconv.FormatInt(id, 10))
	}
	c, err := scanConflictRow(rows)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConflictRow(row rowScanner) (launches.Conflict, error) {
	var c launches.Conflict
	var v1, v2, resolution, notes, resolvedAt sql.NullString
	var resolved int
	var createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.LaunchID, &c.Slug, &c.FieldName, &v1, &v2,
		&resolved, &resolution, &notes, &createdAt, &updatedAt, &resolvedAt); err != nil {
		return launches.Conflict{}, errors.WrapPersistence("scan conflict", "", err)
	}
	c.Source1Value = nullStr(v1)
	c.Source2Value = nullStr(v2)
	c.Resolved = resolved == 1
	c.ResolutionValue = nullStr(resolution)
	c.Notes = nullStr(notes)
	if t := nullTime(sql.NullString{String: createdAt, Valid: true}); t != nil {
		c.CreatedAt = *t
	}
	if t := nullTime(sql.NullString{String: updatedAt, Valid: true}); t != nil {
		c.UpdatedAt = *t
	}
	c.ResolvedAt = nullTime(resolvedAt)
	return c, nil
}

// ResolveConflict marks a conflict resolved with the chosen value, writes
// that value through to the canonical record, and returns the updated
// record. Resolving an already resolved conflict fails; reopen it first.
func (s *Store) ResolveConflict(ctx context.Context, id int64, chosenValue, notes string) (*launches.LaunchRecord, error) {
	conflict, err := s.GetConflict(ctx, id)
	if err != nil {
		return nil, err
	}
	if conflict.Resolved {
		return nil, errors.ErrConflictResolved
	}

	parsed, err := ParseFieldValue(conflict.FieldName, chosenValue)
	if err != nil {
		return nil, errors.NewValidationError(conflict.FieldName, chosenValue, err.Error())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WrapPersistence("begin", conflict.Slug, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.clock().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE data_conflicts
		 SET resolved = 1, resolution_value = ?, notes = ?, updated_at = ?, resolved_at = ?
		 WHERE id = ?`,
		chosenValue, strOrNull(notes), timeStr(now), timeStr(now), id,
	)
	if err != nil {
		return nil, errors.WrapPersistence("resolve conflict", conflict.Slug, err)
	}

	rec, origins, err := getLaunchTx(ctx, tx, conflict.Slug)
	if err != nil {
		return nil, err
	}
	rec.SetFieldValue(conflict.FieldName, parsed)
	origins[conflict.FieldName] = reconcile.ResolutionOrigin
	if err := updateLaunchFieldsTx(ctx, tx, rec, origins, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.WrapPersistence("commit", conflict.Slug, err)
	}

	logging.Info().
		Int64("conflict_id", id).
		Str("slug", conflict.Slug).
		Str("field", conflict.FieldName).
		Str("value", chosenValue).
		Msg("Conflict resolved")

	rec.UpdatedAt = now
	return rec, nil
}

// ReopenConflict puts a resolved conflict back in play: the next run's
// reconciled value wins the field again. Fails when another open conflict
// already exists for the same field.
func (s *Store) ReopenConflict(ctx context.Context, id int64) error {
	conflict, err := s.GetConflict(ctx, id)
	if err != nil {
		return err
	}
	if !conflict.Resolved {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapPersistence("begin", conflict.Slug, err)
	}
	defer func() { _ = tx.Rollback() }()

	var openCount int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM data_conflicts WHERE launch_id = ? AND field_name = ? AND resolved = 0",
		conflict.LaunchID, conflict.FieldName,
	).Scan(&openCount)
	if err != nil {
		return errors.WrapPersistence("check open conflict", conflict.Slug, err)
	}
	if openCount > 0 {
		return errors.NewValidationError(conflict.FieldName, nil,
			"an open conflict already exists for this field")
	}

	now := s.clock().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE data_conflicts
		 SET resolved = 0, resolution_value = NULL, resolved_at = NULL, updated_at = ?
		 WHERE id = ?`,
		timeStr(now), id,
	)
	if err != nil {
		return errors.WrapPersistence("reopen conflict", conflict.Slug, err)
	}

	// Drop the resolution origin marker so the next run's reconciled
	// value takes the field back.
	rec, origins, err := getLaunchTx(ctx, tx, conflict.Slug)
	if err != nil {
		return err
	}
	if origins[conflict.FieldName] == reconcile.ResolutionOrigin {
		delete(origins, conflict.FieldName)
		if err := updateLaunchFieldsTx(ctx, tx, rec, origins, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapPersistence("commit", conflict.Slug, err)
	}

	logging.Info().
		Int64("conflict_id", id).
		Str("slug", conflict.Slug).
		Str("field", conflict.FieldName).
		Msg("Conflict reopened")
	return nil
}

// updateLaunchFieldsTx rewrites a launch's reconcilable columns and origin
// map inside an open transaction.
func updateLaunchFieldsTx(ctx context.Context, tx *sql.Tx, rec *launches.LaunchRecord, origins map[string]string, now time.Time) error {
	originsJSON, err := json.Marshal(origins)
	if err != nil {
		return errors.WrapPersistence("encode origins", rec.Slug, err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE launches
		 SET mission_name = ?, launch_date = ?, vehicle_type = ?, payload_mass = ?,
		     orbit = ?, status = ?, details = ?, patch_url = ?, webcast_url = ?,
		     field_origins = ?, updated_at = ?
		 WHERE id = ?`,
		rec.MissionName, launchDateArg(rec), strOrNull(rec.VehicleType), massArg(rec),
		strOrNull(rec.Orbit), strOrNull(string(rec.Status)), strOrNull(rec.Details),
		strOrNull(rec.PatchURL), strOrNull(rec.WebcastURL),
		string(originsJSON), timeStr(now), rec.ID,
	)
	if err != nil {
		return errors.WrapPersistence("update launch", rec.Slug, err)
	}
	return nil
}

// ConflictStats summarizes stored conflicts for monitoring.
type ConflictStats struct {
	Total    int            `json:"total"`
	Open     int            `json:"open"`
	Resolved int            `json:"resolved"`
	ByField  map[string]int `json:"by_field"`
}

// GetConflictStats counts stored conflicts by state and field.
func (s *Store) GetConflictStats(ctx context.Context) (ConflictStats, error) {
	stats := ConflictStats{ByField: map[string]int{}}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN resolved = 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN resolved = 1 THEN 1 ELSE 0 END), 0)
		 FROM data_conflicts`,
	).Scan(&stats.Total, &stats.Open, &stats.Resolved)
	if err != nil {
		return ConflictStats{}, errors.WrapPersistence("conflict stats", "", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT field_name, COUNT(*) FROM data_conflicts GROUP BY field_name")
	if err != nil {
		return ConflictStats{}, errors.WrapPersistence("conflict stats", "", err)
	}
	defer rows.Close()
	for rows.Next() {
		var field string
		var count int
		if err := rows.Scan(&field, &count); err != nil {
			return ConflictStats{}, errors.WrapPersistence("conflict stats", "", err)
		}
		stats.ByField[field] = count
	}
	return stats, rows.Err()
}
