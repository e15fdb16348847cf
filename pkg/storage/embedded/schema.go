package embedded

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	session_id TEXT NOT NULL,
	agent_id   TEXT NOT NULL,
	event_type TEXT NOT NULL,
	severity   TEXT NOT NULL,
	payload    TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	prev_hash  TEXT,
	hash       TEXT NOT NULL,
	timestamp  TEXT NOT NULL,
	seq        INTEGER
);
CREATE INDEX IF NOT EXISTS idx_events_tenant_session ON events(tenant_id, session_id, seq);
CREATE INDEX IF NOT EXISTS idx_events_tenant_time ON events(tenant_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_tenant_type ON events(tenant_id, event_type);

CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT NOT NULL,
	tenant_id       TEXT NOT NULL,
	agent_id        TEXT NOT NULL,
	agent_name      TEXT,
	started_at      TEXT NOT NULL,
	ended_at        TEXT,
	status          TEXT NOT NULL,
	event_count     INTEGER NOT NULL DEFAULT 0,
	tool_call_count INTEGER NOT NULL DEFAULT 0,
	error_count     INTEGER NOT NULL DEFAULT 0,
	llm_call_count  INTEGER NOT NULL DEFAULT 0,
	input_tokens    INTEGER NOT NULL DEFAULT 0,
	output_tokens   INTEGER NOT NULL DEFAULT 0,
	cost_usd        REAL NOT NULL DEFAULT 0,
	tags            TEXT NOT NULL DEFAULT '[]',
	tail_hash       TEXT,
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS agents (
	id             TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	name           TEXT NOT NULL,
	first_seen     TEXT NOT NULL,
	last_seen      TEXT NOT NULL,
	session_count  INTEGER NOT NULL DEFAULT 0,
	model_override TEXT,
	paused_at      TEXT,
	pause_reason   TEXT,
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS retention_tiers (
	tenant_id   TEXT PRIMARY KEY,
	retain_days INTEGER NOT NULL
);
`
