package db

import (
	"database/sql"
	_ "embed"
)

//go:embed seeds/feeds.sql
var seedFeedsSQL string

// MigrateUp creates the feeds/entries/entry_vectors schema if absent and
// seeds the initial feed list. Every statement is idempotent so MigrateUp
// is safe to call on every process start.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS feeds (
    id                   SERIAL PRIMARY KEY,
    url                  TEXT NOT NULL UNIQUE,
    title                TEXT NOT NULL DEFAULT '',
    site_url             TEXT NOT NULL DEFAULT '',
    author_name          TEXT NOT NULL DEFAULT '',
    author_email         TEXT NOT NULL DEFAULT '',
    etag                 TEXT NOT NULL DEFAULT '',
    last_modified        TEXT NOT NULL DEFAULT '',
    fetch_error          TEXT NOT NULL DEFAULT '',
    fetch_error_count    INTEGER NOT NULL DEFAULT 0,
    consecutive_failures INTEGER NOT NULL DEFAULT 0,
    last_fetch_at        TIMESTAMPTZ,
    last_success_at      TIMESTAMPTZ,
    last_entry_at        TIMESTAMPTZ,
    is_active            BOOLEAN NOT NULL DEFAULT TRUE,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS entries (
    id           SERIAL PRIMARY KEY,
    feed_id      INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
    guid         TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    title        TEXT NOT NULL DEFAULT '',
    author       TEXT NOT NULL DEFAULT '',
    content      TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT '',
    published_at TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL,
    first_seen   TIMESTAMPTZ NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (feed_id, guid)
)`); err != nil {
		return err
	}

	indexes := []string{
		// ORDER BY published_at DESC drives render_home/render_atom/render_rss.
		`CREATE INDEX IF NOT EXISTS idx_entries_published_at ON entries(published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_feed_id ON entries(feed_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feeds_is_active ON feeds(is_active) WHERE is_active = TRUE`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// pg_trgm backs search()'s ILIKE title/summary lookup.
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`)

	searchIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_entries_title_gin ON entries USING gin(title gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_summary_gin ON entries USING gin(summary gin_trgm_ops)`,
	}
	for _, idx := range searchIndexes {
		// Ignored: requires pg_trgm, which may not be installable without
		// superuser on some managed Postgres instances.
		_, _ = db.Exec(idx)
	}

	// pgvector backs entry_vectors' semantic search() path.
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS entry_vectors (
    entry_id     INTEGER PRIMARY KEY REFERENCES entries(id) ON DELETE CASCADE,
    embedding    vector(768) NOT NULL,
    title_prefix TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// IVFFlat cosine index; lists=100 suits <1M rows, matching the scale
	// of a single aggregator's entry count.
	_, _ = db.Exec(`
CREATE INDEX IF NOT EXISTS idx_entry_vectors_embedding
    ON entry_vectors USING ivfflat (embedding vector_cosine_ops)
    WITH (lists = 100)`)

	if _, err := db.Exec(seedFeedsSQL); err != nil {
		return err
	}

	return nil
}

// MigrateDown drops the vector search layer only, leaving feeds/entries
// intact. Entries and feeds are never dropped by an automated rollback.
func MigrateDown(db *sql.DB) error {
	return MigrateDownVectorsOnly(db)
}

// MigrateDownVectorsOnly rolls back entry_vectors and its index, for
// recovering from a botched embedding-provider migration without losing
// the relational data.
func MigrateDownVectorsOnly(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_entry_vectors_embedding`,
		`DROP TABLE IF EXISTS entry_vectors CASCADE`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
