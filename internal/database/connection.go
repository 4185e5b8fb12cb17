package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// DB wraps the catalog's sql.DB handle.
type DB struct {
	SQL  *sql.DB
	path string
	log  *logrus.Logger
}

// Open opens (creating if necessary) the catalog store at dbPath, applies
// the schema, and seeds the static contig and refseq tables.
func Open(dbPath string, logger *logrus.Logger) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while the indexer writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := seedContigs(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed contigs: %w", err)
	}

	logger.WithField("path", dbPath).Info("Catalog store opened")

	return &DB{SQL: db, path: dbPath, log: logger}, nil
}

// createSchema creates the catalog tables. Cascading deletes are expressed
// at schema level so DrsObject, Cohort and VariantFile removals take their
// children with them.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cohorts (
		id TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS drs_objects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		self_uri TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		created_time DATETIME,
		updated_time DATETIME,
		version TEXT NOT NULL DEFAULT '',
		mime_type TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		aliases TEXT NOT NULL DEFAULT '[]',
		checksums TEXT NOT NULL DEFAULT '[]',
		cohort_id TEXT REFERENCES cohorts(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS access_methods (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		drs_object_id TEXT NOT NULL REFERENCES drs_objects(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		access_id TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS contents_objects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		drs_object_id TEXT NOT NULL REFERENCES drs_objects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		contents_id TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		drs_uri TEXT NOT NULL DEFAULT '[]',
		contents TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS variantfiles (
		id TEXT PRIMARY KEY REFERENCES drs_objects(id) ON DELETE CASCADE,
		indexed INTEGER NOT NULL DEFAULT 0,
		chr_prefix TEXT NOT NULL DEFAULT '',
		reference_genome TEXT NOT NULL DEFAULT 'hg38',
		genomic_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS contigs (
		id TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS aliases (
		id TEXT PRIMARY KEY,
		contig_id TEXT NOT NULL REFERENCES contigs(id)
	);

	CREATE TABLE IF NOT EXISTS contig_variantfile (
		contig_id TEXT NOT NULL REFERENCES contigs(id),
		variantfile_id TEXT NOT NULL REFERENCES variantfiles(id) ON DELETE CASCADE,
		PRIMARY KEY (contig_id, variantfile_id)
	);

	CREATE TABLE IF NOT EXISTS pos_buckets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pos_bucket_id INTEGER NOT NULL,
		contig_id TEXT NOT NULL REFERENCES contigs(id),
		UNIQUE (pos_bucket_id, contig_id)
	);

	CREATE TABLE IF NOT EXISTS pos_bucket_variantfile (
		pos_bucket INTEGER NOT NULL REFERENCES pos_buckets(id),
		variantfile_id TEXT NOT NULL REFERENCES variantfiles(id) ON DELETE CASCADE,
		bucket_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (pos_bucket, variantfile_id)
	);

	CREATE TABLE IF NOT EXISTS headers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS header_variantfile (
		header_id INTEGER NOT NULL REFERENCES headers(id),
		variantfile_id TEXT NOT NULL REFERENCES variantfiles(id) ON DELETE CASCADE,
		ord INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (header_id, variantfile_id)
	);

	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sample_id TEXT NOT NULL,
		variantfile_id TEXT NOT NULL REFERENCES variantfiles(id) ON DELETE CASCADE,
		UNIQUE (sample_id, variantfile_id)
	);

	CREATE TABLE IF NOT EXISTS ncbi_refseqs (
		reference_genome TEXT NOT NULL,
		gene_name TEXT NOT NULL,
		transcript_name TEXT NOT NULL,
		contig TEXT NOT NULL,
		start INTEGER NOT NULL,
		endpos INTEGER NOT NULL,
		PRIMARY KEY (reference_genome, transcript_name, contig, start)
	);

	CREATE INDEX IF NOT EXISTS idx_drs_objects_cohort ON drs_objects(cohort_id);
	CREATE INDEX IF NOT EXISTS idx_contents_drs ON contents_objects(drs_object_id);
	CREATE INDEX IF NOT EXISTS idx_pbv_variantfile ON pos_bucket_variantfile(variantfile_id);
	CREATE INDEX IF NOT EXISTS idx_refseq_gene ON ncbi_refseqs(gene_name);
	CREATE INDEX IF NOT EXISTS idx_refseq_transcript ON ncbi_refseqs(transcript_name);
	`

	_, err := db.Exec(schema)
	return err
}

// Health pings the store.
func (db *DB) Health() error {
	return db.SQL.Ping()
}

// Close closes the store.
func (db *DB) Close() error {
	if db.SQL != nil {
		db.log.Info("Catalog store closed")
		return db.SQL.Close()
	}
	return nil
}
