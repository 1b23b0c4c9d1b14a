// ABOUTME: Lipgloss rendering of the agent overview
// ABOUTME: Shared by the status command and the watch dashboard
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mb2470/onsite-affiliate-sdr-agent/engine"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// DefaultWidth is used when the terminal size is unknown.
const DefaultWidth = 60

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
	help  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("170")),
		label: r.NewStyle().Bold(true).Width(22),
		ok:    r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		muted: r.NewStyle().Foreground(lipgloss.Color("240")),
		help:  r.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1),
	}
}

// RenderOverview draws settings, the gate preview and pipeline counts.
func RenderOverview(ov *engine.Overview, r *lipgloss.Renderer, width int) string {
	st := newStyles(r)
	s := ov.Settings
	var b strings.Builder

	row := func(label, value string) {
		b.WriteString(st.label.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	heading := func(title string) {
		b.WriteString(st.title.Render(title))
		b.WriteString("\n")
		b.WriteString(st.muted.Render(strings.Repeat("─", width)))
		b.WriteString("\n")
	}

	heading("Outreach Agent")
	if ov.Gate.Eligible {
		row("Gate", st.ok.Render("open"))
	} else {
		row("Gate", st.warn.Render("closed: "+ov.Gate.Reason))
	}
	row("Sent today", fmt.Sprintf("%d / %d (remaining %d)", ov.Gate.SentToday, s.MaxEmailsPerDay, ov.Gate.RemainingBudget))
	row("Auto-send", onOff(s.AutoSend))
	row("Send window", fmt.Sprintf("%02d:00-%02d:00 on %s", s.SendHoursStart, s.SendHoursEnd, s.SendDays))
	row("Min gap", fmt.Sprintf("%d min + jitter", s.MinMinutesBetweenSends))
	row("Allowed fits", JoinFits(s.AllowedICPFits))
	row("Per lead per day", fmt.Sprintf("%d", s.MaxContactsPerLeadPerDay))
	if s.LastHeartbeat != nil {
		row("Last heartbeat", s.LastHeartbeat.Local().Format("2006-01-02 15:04"))
	} else {
		row("Last heartbeat", st.muted.Render("never"))
	}

	b.WriteString("\n")
	heading("Pipeline")
	p := ov.Status
	row("Leads", fmt.Sprintf("%d", p.TotalLeads))
	for _, status := range sortedStatuses(p.LeadsByStatus) {
		row("  "+string(status), fmt.Sprintf("%d", p.LeadsByStatus[status]))
	}
	row("Contacts", fmt.Sprintf("%d", p.TotalContacts))
	row("Emails sent", fmt.Sprintf("%d (%d today)", p.OutreachTotal, p.OutreachToday))
	row("Bounces", fmt.Sprintf("%d", p.BouncesTotal))

	return strings.TrimRight(b.String(), "\n")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// JoinFits renders an ICP fit list for display.
func JoinFits(fits []models.ICPFit) string {
	if len(fits) == 0 {
		return "none"
	}
	parts := make([]string, len(fits))
	for i, f := range fits {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

func sortedStatuses(m map[models.LeadStatus]int) []models.LeadStatus {
	out := make([]models.LeadStatus, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
