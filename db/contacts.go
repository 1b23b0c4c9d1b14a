// ABOUTME: Contact database operations
// ABOUTME: Handles contact creation, per-lead listing, contacted marks and bounce deletion
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

const contactColumns = `id, lead_id, email, first_name, last_name, full_name, title, match_score, contacted_at, created_at`

// CreateContact inserts a contact and marks its lead as having contacts.
func (s *Store) CreateContact(ctx context.Context, contact *models.Contact) error {
	contact.Email = models.NormalizeEmail(contact.Email)
	if contact.Email == "" {
		return fmt.Errorf("contact email is required")
	}
	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, contact.ID.String(), contact.LeadID.String(), contact.Email, contact.FirstName, contact.LastName,
		contact.FullName, contact.Title, contact.MatchScore, contact.ContactedAt, contact.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE leads SET has_contacts = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), contact.LeadID.String()); err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}

	return tx.Commit()
}

func (s *Store) GetContactByEmail(ctx context.Context, email string) (*models.Contact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE email = ?`,
		models.NormalizeEmail(email))

	contact, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// ListContactsForLead returns the lead's contacts in insertion order.
func (s *Store) ListContactsForLead(ctx context.Context, leadID uuid.UUID) ([]models.Contact, error) {
	return s.queryContacts(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE lead_id = ?
		ORDER BY created_at ASC, id ASC
	`, leadID.String())
}

func (s *Store) ListContacts(ctx context.Context, limit int) ([]models.Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryContacts(ctx, `
		SELECT `+contactColumns+` FROM contacts
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
}

func (s *Store) CountContactsForLead(ctx context.Context, leadID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts WHERE lead_id = ?`, leadID.String()).Scan(&count)
	return count, err
}

func (s *Store) MarkContactContacted(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE contacts SET contacted_at = ? WHERE id = ?`, at.UTC(), id.String())
	return err
}

// DeleteContactsByEmail removes every contact with the address and returns the
// ids of the leads they belonged to.
func (s *Store) DeleteContactsByEmail(ctx context.Context, email string) ([]uuid.UUID, error) {
	email = models.NormalizeEmail(email)

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT lead_id FROM contacts WHERE email = ?`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up contacts: %w", err)
	}
	var leadIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		leadIDs = append(leadIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE email = ?`, email); err != nil {
		return nil, fmt.Errorf("failed to delete contact: %w", err)
	}
	return leadIDs, nil
}

func (s *Store) queryContacts(ctx context.Context, query string, args ...interface{}) ([]models.Contact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var c models.Contact
	err := row.Scan(
		&c.ID,
		&c.LeadID,
		&c.Email,
		&c.FirstName,
		&c.LastName,
		&c.FullName,
		&c.Title,
		&c.MatchScore,
		&c.ContactedAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
