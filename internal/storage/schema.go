package storage

// migrations holds the schema steps in order. The store records how many
// have been applied in PRAGMA user_version, so each step runs exactly once
// per data file.
var migrations = []string{
	schemaV1,
}

// schemaV1 creates the graph tables, the timeline table and their FTS5
// shadow indexes. The FTS tables carry the project key UNINDEXED so a MATCH
// can be scoped to one tenant without joining back to the source rows.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS entities (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    project     TEXT NOT NULL,
    name        TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
    updated_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
    UNIQUE (project, name)
);

CREATE TABLE IF NOT EXISTS observations (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id   INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    content     TEXT NOT NULL,
    created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
    UNIQUE (entity_id, content)
);

CREATE TABLE IF NOT EXISTS relations (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    project         TEXT NOT NULL,
    from_entity_id  INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    to_entity_id    INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    relation_type   TEXT NOT NULL,
    created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
    UNIQUE (project, from_entity_id, to_entity_id, relation_type)
);

CREATE TABLE IF NOT EXISTS memory_items (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    project     TEXT NOT NULL,
    kind        TEXT NOT NULL,
    title       TEXT NULL,
    content     TEXT NOT NULL,
    tags_json   TEXT NULL,
    source      TEXT NULL,
    created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);

CREATE INDEX IF NOT EXISTS idx_entities_project ON entities(project);
CREATE INDEX IF NOT EXISTS idx_observations_entity ON observations(entity_id);
CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_entity_id);
CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_entity_id);
CREATE INDEX IF NOT EXISTS idx_relations_project ON relations(project);
CREATE INDEX IF NOT EXISTS idx_memory_items_project_created ON memory_items(project, created_at);
CREATE INDEX IF NOT EXISTS idx_memory_items_project_kind ON memory_items(project, kind);

CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
    name,
    project UNINDEXED
);

CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
    content,
    project UNINDEXED
);

CREATE VIRTUAL TABLE IF NOT EXISTS memory_items_fts USING fts5(
    content,
    project UNINDEXED
);

CREATE TRIGGER IF NOT EXISTS entities_ai AFTER INSERT ON entities BEGIN
    INSERT INTO entities_fts(rowid, name, project) VALUES (new.id, new.name, new.project);
END;
CREATE TRIGGER IF NOT EXISTS entities_ad AFTER DELETE ON entities BEGIN
    DELETE FROM entities_fts WHERE rowid = old.id;
END;
CREATE TRIGGER IF NOT EXISTS entities_au AFTER UPDATE OF name, project ON entities BEGIN
    DELETE FROM entities_fts WHERE rowid = old.id;
    INSERT INTO entities_fts(rowid, name, project) VALUES (new.id, new.name, new.project);
END;

CREATE TRIGGER IF NOT EXISTS observations_ai AFTER INSERT ON observations BEGIN
    INSERT INTO observations_fts(rowid, content, project)
    SELECT new.id, new.content, e.project FROM entities e WHERE e.id = new.entity_id;
END;
CREATE TRIGGER IF NOT EXISTS observations_ad AFTER DELETE ON observations BEGIN
    DELETE FROM observations_fts WHERE rowid = old.id;
END;
CREATE TRIGGER IF NOT EXISTS observations_au AFTER UPDATE OF content, entity_id ON observations BEGIN
    DELETE FROM observations_fts WHERE rowid = old.id;
    INSERT INTO observations_fts(rowid, content, project)
    SELECT new.id, new.content, e.project FROM entities e WHERE e.id = new.entity_id;
END;

CREATE TRIGGER IF NOT EXISTS memory_items_ai AFTER INSERT ON memory_items BEGIN
    INSERT INTO memory_items_fts(rowid, content, project) VALUES (new.id, new.content, new.project);
END;
CREATE TRIGGER IF NOT EXISTS memory_items_ad AFTER DELETE ON memory_items BEGIN
    DELETE FROM memory_items_fts WHERE rowid = old.id;
END;
CREATE TRIGGER IF NOT EXISTS memory_items_au AFTER UPDATE OF content, project ON memory_items BEGIN
    DELETE FROM memory_items_fts WHERE rowid = old.id;
    INSERT INTO memory_items_fts(rowid, content, project) VALUES (new.id, new.content, new.project);
END;
`

// pragmas configures every pooled connection. WAL lets readers proceed
// alongside the single writer; busy_timeout bounds how long a writer waits
// for the file lock before the operation fails.
const pragmas = "_pragma=journal_mode(WAL)" +
	"&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=foreign_keys(ON)" +
	"&_pragma=cache_size(-64000)" +
	"&_txlock=immediate"
