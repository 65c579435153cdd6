package sqlite

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS shown_notifications (
	key      TEXT PRIMARY KEY,
	shown_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_shown_notifications_shown_at ON shown_notifications(shown_at);

CREATE TABLE IF NOT EXISTS deliveries (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	channel         TEXT NOT NULL,
	tag             TEXT NOT NULL DEFAULT '',
	notification_id INTEGER NOT NULL DEFAULT 0,
	title           TEXT NOT NULL DEFAULT '',
	body            TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL DEFAULT '',
	url             TEXT NOT NULL DEFAULT '',
	shown_at        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deliveries_notification_id ON deliveries(notification_id);
`
