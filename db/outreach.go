// ABOUTME: Outreach ledger operations
// ABOUTME: Append-only record of sent messages used for dedup, budget and bounce rollback
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

const outreachColumns = `id, lead_id, website, contact_email, contact_name, subject, body, message_id, sent_at`

func (s *Store) CreateOutreach(ctx context.Context, record *models.OutreachRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.ContactEmail = models.NormalizeEmail(record.ContactEmail)
	if record.SentAt.IsZero() {
		record.SentAt = time.Now()
	}
	record.SentAt = record.SentAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outreach_records (`+outreachColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID.String(), record.LeadID.String(), record.Website, record.ContactEmail, record.ContactName,
		record.Subject, record.Body, record.MessageID, record.SentAt)
	if err != nil {
		return fmt.Errorf("failed to create outreach record: %w", err)
	}
	return nil
}

// CountOutreachSince counts records sent at or after since.
func (s *Store) CountOutreachSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outreach_records WHERE sent_at >= ?`, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outreach: %w", err)
	}
	return count, nil
}

func (s *Store) ListOutreachSince(ctx context.Context, since time.Time) ([]models.OutreachRecord, error) {
	return s.queryOutreach(ctx, `
		SELECT `+outreachColumns+` FROM outreach_records
		WHERE sent_at >= ?
		ORDER BY sent_at ASC
	`, since.UTC())
}

func (s *Store) ListOutreachByEmail(ctx context.Context, email string) ([]models.OutreachRecord, error) {
	return s.queryOutreach(ctx, `
		SELECT `+outreachColumns+` FROM outreach_records
		WHERE contact_email = ?
		ORDER BY sent_at ASC
	`, models.NormalizeEmail(email))
}

func (s *Store) ListRecentOutreach(ctx context.Context, limit int) ([]models.OutreachRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryOutreach(ctx, `
		SELECT `+outreachColumns+` FROM outreach_records
		ORDER BY sent_at DESC
		LIMIT ?
	`, limit)
}

// ListOutreachEmails returns every address that has ever been emailed.
func (s *Store) ListOutreachEmails(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT contact_email FROM outreach_records`)
	if err != nil {
		return nil, fmt.Errorf("failed to list emailed addresses: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// CountDeliverableOutreach counts a lead's records whose address has not bounced.
func (s *Store) CountDeliverableOutreach(ctx context.Context, leadID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM outreach_records
		WHERE lead_id = ?
			AND contact_email NOT IN (SELECT email FROM bounces)
	`, leadID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count deliverable outreach: %w", err)
	}
	return count, nil
}

func (s *Store) queryOutreach(ctx context.Context, query string, args ...interface{}) ([]models.OutreachRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outreach: %w", err)
	}
	defer rows.Close()

	var records []models.OutreachRecord
	for rows.Next() {
		var r models.OutreachRecord
		if err := rows.Scan(
			&r.ID,
			&r.LeadID,
			&r.Website,
			&r.ContactEmail,
			&r.ContactName,
			&r.Subject,
			&r.Body,
			&r.MessageID,
			&r.SentAt,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
