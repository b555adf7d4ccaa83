package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create threads and messages",
		SQL: `
			CREATE TABLE threads (
				id          TEXT PRIMARY KEY,
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			);

			CREATE INDEX idx_threads_updated ON threads (updated_at);

			CREATE TABLE messages (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				thread_id    TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
				role         TEXT NOT NULL,
				content      TEXT NOT NULL,
				tool_calls   TEXT,
				tool_call_id TEXT NOT NULL DEFAULT '',
				timestamp    TEXT NOT NULL
			);

			CREATE INDEX idx_messages_thread ON messages (thread_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create knowledge chunks with FTS5",
		SQL: `
			CREATE TABLE knowledge_chunks (
				id          TEXT PRIMARY KEY,
				title       TEXT NOT NULL DEFAULT '',
				source      TEXT NOT NULL DEFAULT '',
				category    TEXT NOT NULL DEFAULT 'general',
				content     TEXT NOT NULL,
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			);

			CREATE INDEX idx_knowledge_category ON knowledge_chunks (category);

			CREATE VIRTUAL TABLE knowledge_fts USING fts5(
				title,
				content,
				category,
				content='knowledge_chunks',
				content_rowid='rowid'
			);

			CREATE TRIGGER knowledge_ai AFTER INSERT ON knowledge_chunks BEGIN
				INSERT INTO knowledge_fts(rowid, title, content, category)
				VALUES (new.rowid, new.title, new.content, new.category);
			END;

			CREATE TRIGGER knowledge_ad AFTER DELETE ON knowledge_chunks BEGIN
				INSERT INTO knowledge_fts(knowledge_fts, rowid, title, content, category)
				VALUES ('delete', old.rowid, old.title, old.content, old.category);
			END;

			CREATE TRIGGER knowledge_au AFTER UPDATE ON knowledge_chunks BEGIN
				INSERT INTO knowledge_fts(knowledge_fts, rowid, title, content, category)
				VALUES ('delete', old.rowid, old.title, old.content, old.category);
				INSERT INTO knowledge_fts(rowid, title, content, category)
				VALUES (new.rowid, new.title, new.content, new.category);
			END;
		`,
	},
}
