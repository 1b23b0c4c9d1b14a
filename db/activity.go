// ABOUTME: Activity log operations
// ABOUTME: Appends and lists audit rows for every engine decision
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

func (s *Store) LogActivity(ctx context.Context, entry *models.ActivityLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, activity_type, lead_id, contact_id, email, summary, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID.String(), entry.Type, nullableID(entry.LeadID), nullableID(entry.ContactID),
		entry.Email, entry.Summary, entry.Status, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	return nil
}

// ListActivity returns the newest entries first, optionally filtered by type.
func (s *Store) ListActivity(ctx context.Context, activityType string, limit int) ([]models.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, activity_type, lead_id, contact_id, email, summary, status, created_at FROM activity_log`
	args := []interface{}{}
	if activityType != "" {
		query += ` WHERE activity_type = ?`
		args = append(args, activityType)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var entries []models.ActivityLogEntry
	for rows.Next() {
		var e models.ActivityLogEntry
		var leadID, contactID uuid.NullUUID
		if err := rows.Scan(&e.ID, &e.Type, &leadID, &contactID, &e.Email, &e.Summary, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		if leadID.Valid {
			e.LeadID = &leadID.UUID
		}
		if contactID.Valid {
			e.ContactID = &contactID.UUID
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullableID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}
