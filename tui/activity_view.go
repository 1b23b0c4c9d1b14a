// ABOUTME: Recent activity table for the watch dashboard
// ABOUTME: Lists the newest audit log entries with a status indicator
package tui

import (
	"github.com/charmbracelet/bubbles/table"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

func statusIndicator(status string) string {
	switch status {
	case models.ActivitySuccess:
		return "🟢"
	case models.ActivityFailed:
		return "🔴"
	default:
		return "🟡"
	}
}

func (m Model) renderActivityTable() string {
	columns := []table.Column{
		{Title: "", Width: 3},
		{Title: "Time", Width: 11},
		{Title: "Type", Width: 18},
		{Title: "Summary", Width: max(m.width-40, 20)},
	}

	rows := make([]table.Row, 0, len(m.activity))
	for _, a := range m.activity {
		rows = append(rows, table.Row{
			statusIndicator(a.Status),
			a.CreatedAt.Local().Format("01-02 15:04"),
			a.Type,
			a.Summary,
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(min(len(rows)+2, max(m.height-26, 5))),
	)
	return t.View()
}
