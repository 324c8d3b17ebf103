package conversation

// Timestamps are stored as Unix nanoseconds so TTL comparisons keep full
// precision. Turn order is an explicit per-thread sequence number, not the
// insert timestamp, so concurrent appends landing in the same instant still
// have a total order.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	mode          TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	last_activity INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	tool_name       TEXT NOT NULL DEFAULT '',
	files           TEXT NOT NULL DEFAULT '[]',
	created_at      INTEGER NOT NULL,
	UNIQUE (conversation_id, seq)
);

CREATE TABLE IF NOT EXISTS conversation_index (
	conversation_id TEXT PRIMARY KEY REFERENCES conversations(id) ON DELETE CASCADE,
	title           TEXT NOT NULL DEFAULT '',
	mode            TEXT NOT NULL DEFAULT '',
	first_prompt    TEXT NOT NULL DEFAULT '',
	turn_count      INTEGER NOT NULL DEFAULT 0,
	last_used       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_last_activity ON conversations(last_activity);
CREATE INDEX IF NOT EXISTS idx_conversation_index_last_used ON conversation_index(last_used);
`
