package store

// schemaVersionV1 stored sessions without span overlap settings.
const schemaVersionV1 = 1

// schemaVersionV2 adds sessions.allow_overlap and the per-record index.
const schemaVersionV2 = 2

// schemaV1 is kept for migration tests.
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS sessions (
	name TEXT PRIMARY KEY,
	dataset_path TEXT NOT NULL,
	text_field TEXT NOT NULL,
	question_type TEXT NOT NULL,
	labels TEXT NOT NULL,
	rating_min INTEGER NOT NULL DEFAULT 0,
	rating_max INTEGER NOT NULL DEFAULT 0,
	guidelines TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS examples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session TEXT NOT NULL REFERENCES sessions(name) ON DELETE CASCADE,
	record_index INTEGER NOT NULL,
	text TEXT NOT NULL,
	question_type TEXT NOT NULL,
	annotation TEXT NOT NULL,
	committed_at TEXT NOT NULL
);
`

// schemaV2 is the fresh-install DDL.
var schemaV2 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS sessions (
	name TEXT PRIMARY KEY,
	dataset_path TEXT NOT NULL,
	text_field TEXT NOT NULL,
	question_type TEXT NOT NULL,
	labels TEXT NOT NULL,
	rating_min INTEGER NOT NULL DEFAULT 0,
	rating_max INTEGER NOT NULL DEFAULT 0,
	allow_overlap INTEGER NOT NULL DEFAULT 0,
	guidelines TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS examples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session TEXT NOT NULL REFERENCES sessions(name) ON DELETE CASCADE,
	record_index INTEGER NOT NULL,
	text TEXT NOT NULL,
	question_type TEXT NOT NULL,
	annotation TEXT NOT NULL,
	committed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_examples_session ON examples(session, id);
`

// migrationV1ToV2 upgrades a v1 database in place.
var migrationV1ToV2 = `
ALTER TABLE sessions ADD COLUMN allow_overlap INTEGER NOT NULL DEFAULT 0;
CREATE INDEX IF NOT EXISTS idx_examples_session ON examples(session, id);
UPDATE schema_version SET version = 2;
`
