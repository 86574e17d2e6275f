package postgres

// schema is idempotent, so Init can run against a database that already
// has the target shape. Enum values are enforced with CHECK constraints
// rather than native enum types to keep one-shot creation simple.
const schema = `
CREATE TABLE IF NOT EXISTS tickets (
    id            TEXT PRIMARY KEY,
    route         TEXT NOT NULL DEFAULT '',
    f12_errors    TEXT NOT NULL DEFAULT '',
    server_errors TEXT NOT NULL DEFAULT '',
    description   TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'open'
        CHECK (status IN ('open', 'in-progress', 'fixed', 'closed')),
    priority      TEXT
        CHECK (priority IS NULL OR priority IN ('critical', 'high', 'medium', 'low')),
    namespace     TEXT,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets (status);
CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets (created_at DESC);

CREATE TABLE IF NOT EXISTS ticket_relations (
    ticket_id  TEXT NOT NULL REFERENCES tickets (id) ON DELETE CASCADE,
    related_id TEXT NOT NULL,
    position   INT NOT NULL DEFAULT 0,
    PRIMARY KEY (ticket_id, related_id)
);

CREATE TABLE IF NOT EXISTS swarm_actions (
    id        BIGSERIAL PRIMARY KEY,
    ticket_id TEXT NOT NULL REFERENCES tickets (id) ON DELETE CASCADE,
    timestamp TIMESTAMPTZ NOT NULL,
    action    TEXT NOT NULL,
    result    TEXT
);

CREATE INDEX IF NOT EXISTS idx_swarm_actions_ticket ON swarm_actions (ticket_id);

CREATE TABLE IF NOT EXISTS comments (
    id        TEXT PRIMARY KEY,
    ticket_id TEXT NOT NULL REFERENCES tickets (id) ON DELETE CASCADE,
    type      TEXT NOT NULL DEFAULT 'human' CHECK (type IN ('human', 'ai')),
    author    TEXT NOT NULL DEFAULT 'anonymous',
    content   TEXT NOT NULL DEFAULT '',
    metadata  JSONB,
    timestamp TIMESTAMPTZ NOT NULL,
    edited_at TIMESTAMPTZ,
    position  BIGSERIAL
);

CREATE INDEX IF NOT EXISTS idx_comments_ticket ON comments (ticket_id);

CREATE TABLE IF NOT EXISTS api_keys (
    key        TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    enabled    BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL,
    last_used  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS rate_limits (
    identifier    TEXT NOT NULL,
    window_start  TIMESTAMPTZ NOT NULL,
    request_count INT NOT NULL DEFAULT 0,
    PRIMARY KEY (identifier, window_start)
);
`
