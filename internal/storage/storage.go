// Package storage provides the local persisted state of the notification
// layer: small string keys, the ring of recently shown notifications and
// the delivery log.
package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/config"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
)

// Persisted keys.
const (
	KeyAuthToken            = "pharmacy_auth_token"
	KeyUser                 = "pharmacy_user"
	KeyFCMToken             = "fcm_token"
	KeyNotificationSound    = "notificationSound"
	KeyNotificationInterval = "notificationInterval"
	KeyNotificationDismiss  = "notification_dismissed"
	KeyInstallationID       = "installation_id"
)

const dbFileName = "pharmacy-notify.db"

// ErrNotFound is returned by Get when a key is absent.
var ErrNotFound = errors.New("key not found")

// KV stores small string values by key.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Ring records which dedup keys were recently shown, keeping at most
// capacity entries.
type Ring interface {
	// MarkShown records key and reports whether it was absent (or older
	// than ttl when ttl > 0).
	MarkShown(ctx context.Context, key string, capacity int, ttl time.Duration) (bool, error)
	// ForgetShown removes key from the ring.
	ForgetShown(ctx context.Context, key string) error
}

// DeliveryRow is one entry of the delivery log.
type DeliveryRow struct {
	ID             int64     `db:"id"`
	Channel        string    `db:"channel"`
	Tag            string    `db:"tag"`
	NotificationID int       `db:"notification_id"`
	Title          string    `db:"title"`
	Body           string    `db:"body"`
	Type           string    `db:"type"`
	URL            string    `db:"url"`
	ShownAt        time.Time `db:"shown_at"`
}

// Duplicate summarizes a backend notification surfaced more than once.
type Duplicate struct {
	NotificationID int    `db:"notification_id"`
	Deliveries     int    `db:"deliveries"`
	Channels       string `db:"channels"`
}

// DeliveryLog keeps the history of displayed notifications.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, d notification.Delivery) error
	ListDeliveries(ctx context.Context, limit int) ([]DeliveryRow, error)
	DuplicateDeliveries(ctx context.Context) ([]Duplicate, error)
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
}

// Store is the full local state.
type Store interface {
	KV
	Ring
	DeliveryLog
	Close() error
}

// DBPath returns the database location under the configured state dir.
func DBPath() string {
	stateDir := config.Get("state_dir", "")
	if stateDir == "" {
		stateDir = filepath.Join(os.TempDir(), "pharmacy-notify")
	}
	return filepath.Join(stateDir, dbFileName)
}

// GetOr returns the value at key or fallback when it is missing or unreadable.
func GetOr(ctx context.Context, kv KV, key, fallback string) string {
	v, err := kv.Get(ctx, key)
	if err != nil {
		return fallback
	}
	return v
}

// RowFromDelivery converts a delivery into a log row.
func RowFromDelivery(d notification.Delivery) DeliveryRow {
	shownAt := d.ShownAt
	if shownAt.IsZero() {
		shownAt = time.Now()
	}
	return DeliveryRow{
		Channel:        string(d.Channel),
		Tag:            d.Data.Tag,
		NotificationID: d.Data.NotificationID,
		Title:          d.Title,
		Body:           d.Body,
		Type:           d.Data.Type,
		URL:            d.Data.URL,
		ShownAt:        shownAt.UTC(),
	}
}
