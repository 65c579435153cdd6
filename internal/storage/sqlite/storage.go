// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements storage.Store using SQLite.
type SQLiteStorage struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ storage.Store = (*SQLiteStorage)(nil)

// NewSQLiteStorage creates a SQLite-backed storage at the provided path.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("sqlite storage: db path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite storage: create db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: open db: %w", err)
	}

	// One connection keeps pragmas applied and serializes writers within
	// the process; other processes are handled by busy_timeout.
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db, now: time.Now}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying SQLite connection.
func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStorage) init() error {
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("sqlite storage: set busy timeout: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return fmt.Errorf("sqlite storage: set journal mode: %w", err)
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("sqlite storage: create schema: %w", err)
	}
	return nil
}

// Get returns the value stored at key.
func (s *SQLiteStorage) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite storage: get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value at key.
func (s *SQLiteStorage) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite storage: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite storage: delete %s: %w", key, err)
	}
	return nil
}

// MarkShown records key in the shown ring. The check and the insert run in
// one transaction so concurrent processes agree on who showed it first.
func (s *SQLiteStorage) MarkShown(ctx context.Context, key string, capacity int, ttl time.Duration) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite storage: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	var shownAt int64
	err = tx.GetContext(ctx, &shownAt, `SELECT shown_at FROM shown_notifications WHERE key = ?`, key)
	switch {
	case err == nil:
		if ttl <= 0 || now.Sub(time.Unix(0, shownAt)) < ttl {
			return false, nil
		}
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("sqlite storage: lookup shown %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO shown_notifications (key, shown_at) VALUES (?, ?)`, key, now.UnixNano()); err != nil {
		return false, fmt.Errorf("sqlite storage: mark shown %s: %w", key, err)
	}
	if capacity > 0 {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM shown_notifications WHERE key NOT IN (
				SELECT key FROM shown_notifications ORDER BY shown_at DESC, rowid DESC LIMIT ?
			)`, capacity)
		if err != nil {
			return false, fmt.Errorf("sqlite storage: trim shown ring: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite storage: commit: %w", err)
	}
	return true, nil
}

// ForgetShown removes key from the shown ring.
func (s *SQLiteStorage) ForgetShown(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM shown_notifications WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite storage: forget shown %s: %w", key, err)
	}
	return nil
}

type deliveryRow struct {
	ID             int64  `db:"id"`
	Channel        string `db:"channel"`
	Tag            string `db:"tag"`
	NotificationID int    `db:"notification_id"`
	Title          string `db:"title"`
	Body           string `db:"body"`
	Type           string `db:"type"`
	URL            string `db:"url"`
	ShownAt        int64  `db:"shown_at"`
}

func (r deliveryRow) toStorage() storage.DeliveryRow {
	return storage.DeliveryRow{
		ID:             r.ID,
		Channel:        r.Channel,
		Tag:            r.Tag,
		NotificationID: r.NotificationID,
		Title:          r.Title,
		Body:           r.Body,
		Type:           r.Type,
		URL:            r.URL,
		ShownAt:        time.Unix(0, r.ShownAt).UTC(),
	}
}

// RecordDelivery appends d to the delivery log.
func (s *SQLiteStorage) RecordDelivery(ctx context.Context, d notification.Delivery) error {
	row := storage.RowFromDelivery(d)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO deliveries (channel, tag, notification_id, title, body, type, url, shown_at)
		VALUES (:channel, :tag, :notification_id, :title, :body, :type, :url, :shown_at)`,
		deliveryRow{
			Channel:        row.Channel,
			Tag:            row.Tag,
			NotificationID: row.NotificationID,
			Title:          row.Title,
			Body:           row.Body,
			Type:           row.Type,
			URL:            row.URL,
			ShownAt:        row.ShownAt.UnixNano(),
		})
	if err != nil {
		return fmt.Errorf("sqlite storage: record delivery: %w", err)
	}
	return nil
}

// ListDeliveries returns the most recent deliveries first. A limit <= 0
// returns everything.
func (s *SQLiteStorage) ListDeliveries(ctx context.Context, limit int) ([]storage.DeliveryRow, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []deliveryRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM deliveries ORDER BY id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("sqlite storage: list deliveries: %w", err)
	}
	out := make([]storage.DeliveryRow, len(rows))
	for i, r := range rows {
		out[i] = r.toStorage()
	}
	return out, nil
}

// DuplicateDeliveries reports backend notifications shown more than once.
func (s *SQLiteStorage) DuplicateDeliveries(ctx context.Context) ([]storage.Duplicate, error) {
	var dups []storage.Duplicate
	err := s.db.SelectContext(ctx, &dups, `
		SELECT notification_id, COUNT(*) AS deliveries, GROUP_CONCAT(DISTINCT channel) AS channels
		FROM deliveries
		WHERE notification_id > 0
		GROUP BY notification_id
		HAVING COUNT(*) > 1
		ORDER BY notification_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: duplicate deliveries: %w", err)
	}
	return dups, nil
}
