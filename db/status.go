// ABOUTME: Read-only pipeline snapshot queries
// ABOUTME: Aggregates lead, contact, outreach and bounce counts for status reports
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// PipelineCounts summarises the pipeline. dayStart bounds OutreachToday.
func (s *Store) PipelineCounts(ctx context.Context, dayStart time.Time) (*models.PipelineStatus, error) {
	status := &models.PipelineStatus{LeadsByStatus: make(map[models.LeadStatus]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		status.LeadsByStatus[models.LeadStatus(st)] = n
		status.TotalLeads += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&status.TotalContacts, `SELECT COUNT(*) FROM contacts`, nil},
		{&status.OutreachTotal, `SELECT COUNT(*) FROM outreach_records`, nil},
		{&status.OutreachToday, `SELECT COUNT(*) FROM outreach_records WHERE sent_at >= ?`, []interface{}{dayStart.UTC()}},
		{&status.BouncesTotal, `SELECT COUNT(*) FROM bounces`, nil},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count pipeline: %w", err)
		}
	}

	return status, nil
}
