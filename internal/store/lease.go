package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/therealsahil19/webspace/pkg/errors"
	"github.com/therealsahil19/webspace/pkg/logging"
)

// Lease is a time-bounded, ownership-checked mutual-exclusion primitive.
// Acquisition is a single compare-and-swap statement, so it stays atomic
// across processes sharing the database; an expired lease is taken over in
// place rather than deleted first.

// AcquireLease attempts to take the named lease for owner with the given
// TTL. It returns false when another owner holds an unexpired lease. An
// owner re-acquiring its own lease refreshes the TTL.
func (s *Store) AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := s.clock().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leases(name, owner_id, acquired_at, expires_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE
		 SET owner_id = excluded.owner_id,
		     acquired_at = excluded.acquired_at,
		     expires_at = excluded.expires_at
		 WHERE leases.expires_at <= ? OR leases.owner_id = excluded.owner_id`,
		name, owner, now.UnixNano(), now.Add(ttl).UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return false, errors.WrapPersistence("acquire lease", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WrapPersistence("acquire lease", name, err)
	}
	if n == 0 {
		return false, nil
	}
	logging.Debug().
		Str("lease", name).
		Str("owner", owner).
		Dur("ttl", ttl).
		Msg("Lease acquired")
	return true, nil
}

// ReleaseLease gives the lease up. It returns false when owner does not
// hold it, which includes the case where it expired and someone else took
// over.
func (s *Store) ReleaseLease(ctx context.Context, name, owner string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM leases WHERE name = ? AND owner_id = ?", name, owner)
	if err != nil {
		return false, errors.WrapPersistence("release lease", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WrapPersistence("release lease", name, err)
	}
	return n > 0, nil
}

// RenewLease extends the lease by ttl from now. It fails with ErrLockExpired
// when owner no longer holds an unexpired lease; the caller must stop
// treating itself as the active run.
func (s *Store) RenewLease(ctx context.Context, name, owner string, ttl time.Duration) error {
	now := s.clock().UTC()
	res, err := s.db.ExecContext(ctx,
		"UPDATE leases SET expires_at = ? WHERE name = ? AND owner_id = ? AND expires_at > ?",
		now.Add(ttl).UnixNano(), name, owner, now.UnixNano(),
	)
	if err != nil {
		return errors.WrapPersistence("renew lease", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapPersistence("renew lease", name, err)
	}
	if n == 0 {
		return errors.ErrLockExpired
	}
	return nil
}

// IsLocked reports whether an unexpired lease exists under name.
func (s *Store) IsLocked(ctx context.Context, name string) (bool, error) {
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT expires_at FROM leases WHERE name = ?", name).Scan(&expiresAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.WrapPersistence("check lease", name, err)
	}
	return expiresAt > s.clock().UTC().UnixNano(), nil
}

// LeaseHolder returns the current unexpired holder of the lease, or empty.
func (s *Store) LeaseHolder(ctx context.Context, name string) (string, error) {
	var owner string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT owner_id, expires_at FROM leases WHERE name = ?", name).Scan(&owner, &expiresAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.WrapPersistence("check lease", name, err)
	}
	if expiresAt <= s.clock().UTC().UnixNano() {
		return "", nil
	}
	return owner, nil
}

// ForceReleaseLease removes the lease regardless of owner. Operator
// recovery only; a run still holding it will fail its next renewal.
func (s *Store) ForceReleaseLease(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM leases WHERE name = ?", name); err != nil {
		return errors.WrapPersistence("force release lease", name, err)
	}
	logging.Warn().Str("lease", name).Msg("Lease force released")
	return nil
}
