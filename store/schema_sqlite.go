package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS orders (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    label       TEXT NOT NULL,
    order_date  TEXT,
    status      TEXT NOT NULL DEFAULT 'active',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

CREATE TABLE IF NOT EXISTS tools (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id    INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    label       TEXT NOT NULL,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_tools_order ON tools(order_id);

CREATE TABLE IF NOT EXISTS demand_lines (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id      INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    part_number   TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    qty_per_unit  INTEGER NOT NULL DEFAULT 1,
    total_qty     INTEGER NOT NULL DEFAULT 0,
    location      TEXT NOT NULL DEFAULT '',
    tool_ids      TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_demand_lines_order ON demand_lines(order_id);
CREATE INDEX IF NOT EXISTS idx_demand_lines_part ON demand_lines(part_number);

CREATE TABLE IF NOT EXISTS pick_events (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    demand_line_id  INTEGER NOT NULL,
    tool_id         INTEGER NOT NULL,
    qty_picked      INTEGER NOT NULL CHECK (qty_picked > 0),
    picked_by       TEXT NOT NULL DEFAULT '',
    notes           TEXT NOT NULL DEFAULT '',
    picked_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pick_events_line_tool ON pick_events(demand_line_id, tool_id);
CREATE INDEX IF NOT EXISTS idx_pick_events_tool ON pick_events(tool_id);

CREATE TABLE IF NOT EXISTS undo_records (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    pick_event_id   INTEGER NOT NULL,
    demand_line_id  INTEGER NOT NULL,
    tool_id         INTEGER NOT NULL,
    qty_picked      INTEGER NOT NULL,
    picked_by       TEXT NOT NULL DEFAULT '',
    notes           TEXT NOT NULL DEFAULT '',
    picked_at       TEXT NOT NULL,
    part_number     TEXT NOT NULL,
    tool_label      TEXT NOT NULL,
    order_label     TEXT NOT NULL,
    undone_by       TEXT NOT NULL DEFAULT '',
    undone_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_undo_records_event ON undo_records(pick_event_id);
CREATE INDEX IF NOT EXISTS idx_undo_records_line ON undo_records(demand_line_id);

CREATE TABLE IF NOT EXISTS audit_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL,
    entity_id   INTEGER NOT NULL,
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS outbox (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT NOT NULL,
    payload     BLOB NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    station_id  TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    sent_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at);
`
