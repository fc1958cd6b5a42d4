package db

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'chef' CHECK (role IN ('admin', 'chef', 'materiel')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS templates (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    description  TEXT,
    version_date DATETIME,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS template_sections (
    id          TEXT PRIMARY KEY,
    template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    position    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS template_items (
    id                        TEXT PRIMARY KEY,
    section_id                TEXT NOT NULL REFERENCES template_sections(id) ON DELETE CASCADE,
    label                     TEXT NOT NULL,
    expected_quantity         INTEGER NOT NULL DEFAULT 1 CHECK (expected_quantity >= 1),
    unit                      TEXT,
    requires_expiry_check     INTEGER NOT NULL DEFAULT 0,
    requires_functional_check INTEGER NOT NULL DEFAULT 0,
    position                  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS events (
    id            TEXT PRIMARY KEY,
    title         TEXT NOT NULL,
    description   TEXT,
    public_slug   TEXT NOT NULL UNIQUE,
    status        TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'active', 'done')),
    template_name TEXT,
    created_by    INTEGER REFERENCES users(id),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS checklist_sections (
    id       TEXT PRIMARY KEY,
    event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    name     TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS checklist_items (
    id                        TEXT PRIMARY KEY,
    section_id                TEXT NOT NULL REFERENCES checklist_sections(id) ON DELETE CASCADE,
    label                     TEXT NOT NULL,
    expected_quantity         INTEGER NOT NULL DEFAULT 1 CHECK (expected_quantity >= 1),
    unit                      TEXT,
    requires_expiry_check     INTEGER NOT NULL DEFAULT 0,
    requires_functional_check INTEGER NOT NULL DEFAULT 0,
    position                  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS verification_lines (
    id                TEXT PRIMARY KEY,
    checklist_item_id TEXT NOT NULL UNIQUE REFERENCES checklist_items(id) ON DELETE CASCADE,
    status            TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'OK', 'MISSING')),
    comment           TEXT,
    checked_at        DATETIME,
    checked_by_label  TEXT,
    version           INTEGER NOT NULL DEFAULT 0,
    updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK ((status = 'MISSING') = (comment IS NOT NULL AND comment <> ''))
);
`
