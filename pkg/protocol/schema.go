package protocol

// SchemaDDL defines the SQLite schema for the local fault journal.
// Tables: faults. Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- One row per reported sync fault; count > 1 for collapsed partial batches
CREATE TABLE IF NOT EXISTS faults (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    kind       TEXT NOT NULL,
    component  TEXT NOT NULL DEFAULT '',
    op         TEXT NOT NULL DEFAULT '',
    message    TEXT NOT NULL DEFAULT '',
    count      INTEGER NOT NULL DEFAULT 1,
    session_id TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_faults_kind ON faults(kind);
CREATE INDEX IF NOT EXISTS idx_faults_component ON faults(component);
`
