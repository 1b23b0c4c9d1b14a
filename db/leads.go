// ABOUTME: Lead database operations
// ABOUTME: Creates leads, lists outreach-eligible leads and updates lead status
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

const leadColumns = `id, website, industry, research_notes, icp_fit, has_contacts, status, created_at, updated_at`

func (s *Store) CreateLead(ctx context.Context, lead *models.Lead) error {
	if strings.TrimSpace(lead.Website) == "" {
		return fmt.Errorf("lead website is required")
	}
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Status == "" {
		lead.Status = models.LeadNew
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.CreatedAt = lead.CreatedAt.UTC()
	lead.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, lead.ID.String(), strings.TrimSpace(lead.Website), lead.Industry, lead.ResearchNotes,
		string(lead.ICPFit), lead.HasContacts, string(lead.Status), lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

func (s *Store) GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id.String())

	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// LeadFilter narrows FindLeads. Zero fields match everything.
type LeadFilter struct {
	Status models.LeadStatus
	ICPFit models.ICPFit
	Search string // substring of website
	Limit  int
}

// ListLeads returns leads newest first, optionally filtered by status.
func (s *Store) ListLeads(ctx context.Context, status models.LeadStatus, limit int) ([]models.Lead, error) {
	return s.FindLeads(ctx, LeadFilter{Status: status, Limit: limit})
}

// FindLeads returns leads matching filter, newest first.
func (s *Store) FindLeads(ctx context.Context, filter LeadFilter) ([]models.Lead, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	args := []interface{}{}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ICPFit != "" {
		query += ` AND icp_fit = ?`
		args = append(args, string(filter.ICPFit))
	}
	if filter.Search != "" {
		query += ` AND LOWER(website) LIKE ?`
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.Limit)

	return s.queryLeads(ctx, query, args...)
}

// ListEligibleLeads returns leads with contacts whose fit and status are in the
// given sets, oldest first.
func (s *Store) ListEligibleLeads(ctx context.Context, fits []models.ICPFit, statuses []models.LeadStatus) ([]models.Lead, error) {
	if len(fits) == 0 || len(statuses) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(fits)+len(statuses))
	for _, f := range fits {
		args = append(args, string(f))
	}
	for _, st := range statuses {
		args = append(args, string(st))
	}

	query := `
		SELECT ` + leadColumns + ` FROM leads
		WHERE has_contacts = 1
			AND icp_fit IN (` + placeholders(len(fits)) + `)
			AND status IN (` + placeholders(len(statuses)) + `)
		ORDER BY created_at ASC, id ASC`

	return s.queryLeads(ctx, query, args...)
}

func (s *Store) UpdateLeadStatus(ctx context.Context, id uuid.UUID, status models.LeadStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id.String())
	return err
}

func (s *Store) SetLeadHasContacts(ctx context.Context, id uuid.UUID, hasContacts bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE leads SET has_contacts = ?, updated_at = ? WHERE id = ?`,
		hasContacts, time.Now().UTC(), id.String())
	return err
}

func (s *Store) queryLeads(ctx context.Context, query string, args ...interface{}) ([]models.Lead, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var lead models.Lead
	var fit, status string
	err := row.Scan(
		&lead.ID,
		&lead.Website,
		&lead.Industry,
		&lead.ResearchNotes,
		&fit,
		&lead.HasContacts,
		&status,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	lead.ICPFit = models.ICPFit(fit)
	lead.Status = models.LeadStatus(status)
	return &lead, nil
}
