package store

// Schema versions. There is only one so far; the version table exists so
// future migrations have something to read.
const (
	schemaVersionV1 = 1

	currentSchemaVersion = schemaVersionV1
)

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS launches (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    slug          TEXT NOT NULL UNIQUE,
    mission_name  TEXT NOT NULL,
    launch_date   TEXT,
    vehicle_type  TEXT,
    payload_mass  REAL,
    orbit         TEXT,
    status        TEXT,
    details       TEXT,
    patch_url     TEXT,
    webcast_url   TEXT,
    field_origins TEXT NOT NULL DEFAULT '{}',
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS launch_sources (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    launch_id     INTEGER NOT NULL REFERENCES launches(id) ON DELETE CASCADE,
    source_name   TEXT NOT NULL,
    source_url    TEXT,
    scraped_at    TEXT NOT NULL,
    quality_score REAL NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_launch_sources_launch ON launch_sources(launch_id);

CREATE TABLE IF NOT EXISTS data_conflicts (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    launch_id        INTEGER NOT NULL REFERENCES launches(id) ON DELETE CASCADE,
    field_name       TEXT NOT NULL,
    source1_value    TEXT,
    source2_value    TEXT,
    resolved         INTEGER NOT NULL DEFAULT 0,
    resolution_value TEXT,
    notes            TEXT,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL,
    resolved_at      TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_conflicts_open
    ON data_conflicts(launch_id, field_name) WHERE resolved = 0;
CREATE INDEX IF NOT EXISTS idx_conflicts_launch ON data_conflicts(launch_id);

CREATE TABLE IF NOT EXISTS leases (
    name        TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL,
    acquired_at INTEGER NOT NULL,
    expires_at  INTEGER NOT NULL
);
`
