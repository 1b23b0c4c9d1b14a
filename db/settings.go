// ABOUTME: Agent settings persistence
// ABOUTME: Reads and writes the singleton settings row and its heartbeat
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// GetSettings loads the settings row. Returns (nil, nil) if the row is missing.
func (s *Store) GetSettings(ctx context.Context) (*models.AgentSettings, error) {
	var (
		settings models.AgentSettings
		sendDays string
		fits     string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT enabled, auto_send, max_emails_per_day, send_hours_start, send_hours_end,
			send_days, min_minutes_between_sends, allowed_icp_fits, min_match_score,
			max_contacts_per_lead_per_day, last_heartbeat, updated_at
		FROM agent_settings WHERE id = ?
	`, models.SettingsID).Scan(
		&settings.Enabled,
		&settings.AutoSend,
		&settings.MaxEmailsPerDay,
		&settings.SendHoursStart,
		&settings.SendHoursEnd,
		&sendDays,
		&settings.MinMinutesBetweenSends,
		&fits,
		&settings.MinMatchScore,
		&settings.MaxContactsPerLeadPerDay,
		&settings.LastHeartbeat,
		&settings.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent settings: %w", err)
	}

	settings.SendDays, err = models.ParseWeekdays(sendDays)
	if err != nil {
		return nil, fmt.Errorf("failed to parse send_days: %w", err)
	}

	for _, f := range strings.Split(fits, ",") {
		if strings.TrimSpace(f) == "" {
			continue
		}
		fit, err := models.ParseICPFit(f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse allowed_icp_fits: %w", err)
		}
		settings.AllowedICPFits = append(settings.AllowedICPFits, fit)
	}

	return &settings, nil
}

// SaveSettings validates and overwrites the settings row.
func (s *Store) SaveSettings(ctx context.Context, settings *models.AgentSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	fits := make([]string, len(settings.AllowedICPFits))
	for i, f := range settings.AllowedICPFits {
		fits[i] = string(f)
	}
	settings.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_settings (id, enabled, auto_send, max_emails_per_day, send_hours_start,
			send_hours_end, send_days, min_minutes_between_sends, allowed_icp_fits, min_match_score,
			max_contacts_per_lead_per_day, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled,
			auto_send = excluded.auto_send,
			max_emails_per_day = excluded.max_emails_per_day,
			send_hours_start = excluded.send_hours_start,
			send_hours_end = excluded.send_hours_end,
			send_days = excluded.send_days,
			min_minutes_between_sends = excluded.min_minutes_between_sends,
			allowed_icp_fits = excluded.allowed_icp_fits,
			min_match_score = excluded.min_match_score,
			max_contacts_per_lead_per_day = excluded.max_contacts_per_lead_per_day,
			updated_at = excluded.updated_at
	`, models.SettingsID, settings.Enabled, settings.AutoSend, settings.MaxEmailsPerDay,
		settings.SendHoursStart, settings.SendHoursEnd, settings.SendDays.String(),
		settings.MinMinutesBetweenSends, strings.Join(fits, ","), settings.MinMatchScore,
		settings.MaxContactsPerLeadPerDay, settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save agent settings: %w", err)
	}
	return nil
}

// TouchHeartbeat records that an automated run started.
func (s *Store) TouchHeartbeat(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agent_settings SET last_heartbeat = ? WHERE id = ?`, at.UTC(), models.SettingsID)
	return err
}
