// ABOUTME: Bounce ledger operations
// ABOUTME: Records hard-bounced addresses so reconciliation stays idempotent
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// RecordBounce stores the address and reports whether it was new.
func (s *Store) RecordBounce(ctx context.Context, bounce *models.Bounce) (bool, error) {
	bounce.Email = models.NormalizeEmail(bounce.Email)
	if bounce.DetectedAt.IsZero() {
		bounce.DetectedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO bounces (email, message_id, detected_at) VALUES (?, ?, ?)
	`, bounce.Email, bounce.MessageID, bounce.DetectedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to record bounce: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) IsBounced(ctx context.Context, email string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bounces WHERE email = ?`,
		models.NormalizeEmail(email)).Scan(&count)
	return count > 0, err
}

func (s *Store) ListBounces(ctx context.Context, limit int) ([]models.Bounce, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, message_id, detected_at FROM bounces ORDER BY detected_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bounces: %w", err)
	}
	defer rows.Close()

	var bounces []models.Bounce
	for rows.Next() {
		var b models.Bounce
		if err := rows.Scan(&b.Email, &b.MessageID, &b.DetectedAt); err != nil {
			return nil, err
		}
		bounces = append(bounces, b)
	}
	return bounces, rows.Err()
}
