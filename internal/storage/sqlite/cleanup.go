package sqlite

import (
	"context"
	"fmt"
	"time"
)

// Cleanup removes deliveries shown before olderThan and returns how many were removed.
func (s *SQLiteStorage) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE shown_at < ?`, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite storage: cleanup deliveries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite storage: cleanup rows affected: %w", err)
	}
	return n, nil
}
