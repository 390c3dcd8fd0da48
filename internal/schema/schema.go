// Package schema declares the relational layout described in §6: the
// versioned write-side tables and their materialized "_latest"
// counterparts, plus the indexes required by the access patterns in
// §4.5/§4.6. It is driven exclusively by internal/store, which owns
// the one sqlx.DB connection and issues this DDL once at open time.
package schema

// DDL is executed once against a fresh (or existing) database file.
// Every statement is idempotent (CREATE TABLE/INDEX IF NOT EXISTS) so
// opening an already-initialized store is a no-op.
const DDL = `
CREATE TABLE IF NOT EXISTS schema_meta (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS commits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	hash TEXT UNIQUE NOT NULL,
	parent_hash TEXT,
	branch TEXT,
	is_master INTEGER NOT NULL DEFAULT 0,
	author TEXT,
	message TEXT,
	indexed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT UNIQUE NOT NULL,
	language TEXT
);

CREATE TABLE IF NOT EXISTS entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	stable_id TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	module TEXT NOT NULL,
	language TEXT NOT NULL,
	primary_file_id INTEGER REFERENCES files(id),
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS entity_files (
	entity_id INTEGER NOT NULL REFERENCES entities(id),
	file_id INTEGER NOT NULL REFERENCES files(id),
	is_primary INTEGER NOT NULL DEFAULT 0,
	UNIQUE (entity_id, file_id)
);

CREATE TABLE IF NOT EXISTS entity_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id INTEGER NOT NULL REFERENCES entities(id),
	commit_id INTEGER NOT NULL REFERENCES commits(id),
	file_id INTEGER REFERENCES files(id),
	start_line INTEGER,
	end_line INTEGER,
	signature TEXT,
	docstring TEXT,
	code TEXT,
	properties TEXT,
	is_deleted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS members (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id INTEGER NOT NULL REFERENCES entities(id),
	stable_id TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS member_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	member_id INTEGER NOT NULL REFERENCES members(id),
	commit_id INTEGER NOT NULL REFERENCES commits(id),
	file_id INTEGER REFERENCES files(id),
	start_line INTEGER,
	end_line INTEGER,
	signature TEXT,
	code TEXT,
	is_deleted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS extensions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	stable_id TEXT UNIQUE NOT NULL,
	entity_id INTEGER REFERENCES entities(id),
	extended_type TEXT NOT NULL,
	module TEXT NOT NULL,
	language TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS extension_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	extension_id INTEGER NOT NULL REFERENCES extensions(id),
	commit_id INTEGER NOT NULL REFERENCES commits(id),
	file_id INTEGER REFERENCES files(id),
	start_line INTEGER,
	end_line INTEGER,
	signature TEXT,
	code TEXT,
	visibility TEXT,
	constraints TEXT,
	conformances TEXT,
	properties TEXT,
	is_deleted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS entity_relationships (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_entity_id INTEGER NOT NULL REFERENCES entities(id),
	target_entity_id INTEGER REFERENCES entities(id),
	target_name TEXT NOT NULL,
	target_module TEXT,
	edge_type TEXT NOT NULL,
	metadata TEXT,
	commit_id INTEGER NOT NULL REFERENCES commits(id),
	is_deleted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS entity_latest (
	stable_id TEXT PRIMARY KEY,
	entity_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	module TEXT NOT NULL,
	file_path TEXT,
	signature TEXT,
	docstring TEXT,
	properties TEXT,
	member_names TEXT,
	target_type TEXT,
	visibility TEXT,
	commit_hash TEXT
);

CREATE TABLE IF NOT EXISTS relationship_latest (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_stable_id TEXT NOT NULL,
	source_name TEXT NOT NULL,
	target_stable_id TEXT,
	target_name TEXT NOT NULL,
	target_module TEXT,
	edge_type TEXT NOT NULL,
	metadata TEXT,
	UNIQUE (source_stable_id, target_stable_id, target_name, edge_type, target_module)
);

CREATE TABLE IF NOT EXISTS extension_latest (
	stable_id TEXT PRIMARY KEY,
	extension_id INTEGER NOT NULL,
	entity_id INTEGER,
	entity_stable_id TEXT,
	extended_type TEXT NOT NULL,
	module TEXT NOT NULL,
	file_path TEXT,
	signature TEXT,
	visibility TEXT,
	constraints TEXT,
	conformances TEXT,
	member_names TEXT,
	target_type TEXT,
	commit_hash TEXT
);

CREATE INDEX IF NOT EXISTS idx_entities_name_module ON entities(name, module);
CREATE INDEX IF NOT EXISTS idx_entity_versions_entity_commit ON entity_versions(entity_id, commit_id);
CREATE INDEX IF NOT EXISTS idx_member_versions_member_commit ON member_versions(member_id, commit_id);
CREATE INDEX IF NOT EXISTS idx_extension_versions_ext_commit ON extension_versions(extension_id, commit_id);
CREATE INDEX IF NOT EXISTS idx_entity_relationships_source ON entity_relationships(source_entity_id);
CREATE INDEX IF NOT EXISTS idx_entity_relationships_target ON entity_relationships(target_entity_id);
CREATE INDEX IF NOT EXISTS idx_entity_relationships_composite ON entity_relationships(source_entity_id, target_entity_id, edge_type, commit_id);
CREATE INDEX IF NOT EXISTS idx_entity_latest_name ON entity_latest(name);
CREATE INDEX IF NOT EXISTS idx_relationship_latest_source ON relationship_latest(source_stable_id);
CREATE INDEX IF NOT EXISTS idx_relationship_latest_target ON relationship_latest(target_stable_id);
CREATE INDEX IF NOT EXISTS idx_extension_latest_entity ON extension_latest(entity_stable_id);
CREATE INDEX IF NOT EXISTS idx_entity_files_file ON entity_files(file_id);
`

// MetaVersion is the schema_meta key recording the schema revision
// this package's DDL produces, bumped whenever DDL changes shape.
const MetaVersion = "1"

// MetaFeatureBranch is the schema_meta key a feature-branch indexer
// stamps with its current branch name (§4.9 step 3, §4.7).
const MetaFeatureBranch = "feature_branch"
