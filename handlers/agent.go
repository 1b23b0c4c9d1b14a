// ABOUTME: Agent MCP tool handlers
// ABOUTME: Implements get_pipeline_stats, get_agent_settings, update_agent_settings and get_activity_log
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mb2470/onsite-affiliate-sdr-agent/db"
	"github.com/mb2470/onsite-affiliate-sdr-agent/engine"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// Store is the slice of the datastore the MCP tools touch.
type Store interface {
	GetSettings(ctx context.Context) (*models.AgentSettings, error)
	SaveSettings(ctx context.Context, settings *models.AgentSettings) error
	ListActivity(ctx context.Context, activityType string, limit int) ([]models.ActivityLogEntry, error)
	FindLeads(ctx context.Context, filter db.LeadFilter) ([]models.Lead, error)
}

// Overviewer previews the gate and pipeline counts.
type Overviewer interface {
	Overview(ctx context.Context) (*engine.Overview, error)
}

type AgentHandlers struct {
	store    Store
	overview Overviewer
}

func NewAgentHandlers(store Store, overview Overviewer) *AgentHandlers {
	return &AgentHandlers{store: store, overview: overview}
}

type GetPipelineStatsInput struct{}

type PipelineStatsOutput struct {
	Now             string                    `json:"now"`
	Eligible        bool                      `json:"eligible"`
	Reason          string                    `json:"reason,omitempty"`
	SentToday       int                       `json:"sent_today"`
	RemainingBudget int                       `json:"remaining_budget"`
	TotalLeads      int                       `json:"total_leads"`
	TotalContacts   int                       `json:"total_contacts"`
	OutreachTotal   int                       `json:"outreach_total"`
	BouncesTotal    int                       `json:"bounces_total"`
	ByStatus        map[models.LeadStatus]int `json:"by_status"`
}

func (h *AgentHandlers) GetPipelineStats(ctx context.Context, _ *mcp.CallToolRequest, _ GetPipelineStatsInput) (*mcp.CallToolResult, PipelineStatsOutput, error) {
	ov, err := h.overview.Overview(ctx)
	if err != nil {
		return nil, PipelineStatsOutput{}, fmt.Errorf("failed to load pipeline stats: %w", err)
	}

	return nil, PipelineStatsOutput{
		Now:             ov.Now.UTC().Format(time.RFC3339),
		Eligible:        ov.Gate.Eligible,
		Reason:          ov.Gate.Reason,
		SentToday:       ov.Gate.SentToday,
		RemainingBudget: ov.Gate.RemainingBudget,
		TotalLeads:      ov.Status.TotalLeads,
		TotalContacts:   ov.Status.TotalContacts,
		OutreachTotal:   ov.Status.OutreachTotal,
		BouncesTotal:    ov.Status.BouncesTotal,
		ByStatus:        ov.Status.LeadsByStatus,
	}, nil
}

type GetAgentSettingsInput struct{}

type SettingsOutput struct {
	Enabled                  bool     `json:"enabled"`
	AutoSend                 bool     `json:"auto_send"`
	MaxEmailsPerDay          int      `json:"max_emails_per_day"`
	SendHoursStart           int      `json:"send_hours_start"`
	SendHoursEnd             int      `json:"send_hours_end"`
	SendDays                 string   `json:"send_days"`
	MinMinutesBetweenSends   int      `json:"min_minutes_between_sends"`
	AllowedICPFits           []string `json:"allowed_icp_fits"`
	MinMatchScore            int      `json:"min_match_score"`
	MaxContactsPerLeadPerDay int      `json:"max_contacts_per_lead_per_day"`
	LastHeartbeat            *string  `json:"last_heartbeat,omitempty"`
}

func (h *AgentHandlers) GetAgentSettings(ctx context.Context, _ *mcp.CallToolRequest, _ GetAgentSettingsInput) (*mcp.CallToolResult, SettingsOutput, error) {
	settings, err := h.loadSettings(ctx)
	if err != nil {
		return nil, SettingsOutput{}, err
	}
	return nil, settingsToOutput(settings), nil
}

type UpdateAgentSettingsInput struct {
	Enabled                  *bool    `json:"enabled,omitempty" jsonschema:"Enable or pause the agent"`
	AutoSend                 *bool    `json:"auto_send,omitempty" jsonschema:"Send automatically during auto runs"`
	MaxEmailsPerDay          *int     `json:"max_emails_per_day,omitempty" jsonschema:"Daily send budget"`
	SendHoursStart           *int     `json:"send_hours_start,omitempty" jsonschema:"First hour of the send window (0-23)"`
	SendHoursEnd             *int     `json:"send_hours_end,omitempty" jsonschema:"Hour the send window closes (1-24)"`
	SendDays                 string   `json:"send_days,omitempty" jsonschema:"Comma-separated weekdays, e.g. mon,tue,wed"`
	MinMinutesBetweenSends   *int     `json:"min_minutes_between_sends,omitempty" jsonschema:"Minimum minutes between sends"`
	AllowedICPFits           []string `json:"allowed_icp_fits,omitempty" jsonschema:"Allowed ICP fits: HIGH, MEDIUM, LOW"`
	MinMatchScore            *int     `json:"min_match_score,omitempty" jsonschema:"Minimum contact score to email"`
	MaxContactsPerLeadPerDay *int     `json:"max_contacts_per_lead_per_day,omitempty" jsonschema:"Contacts emailed per lead per day"`
}

func (h *AgentHandlers) UpdateAgentSettings(ctx context.Context, _ *mcp.CallToolRequest, input UpdateAgentSettingsInput) (*mcp.CallToolResult, SettingsOutput, error) {
	settings, err := h.loadSettings(ctx)
	if err != nil {
		return nil, SettingsOutput{}, err
	}

	if err := applySettingsUpdate(settings, input); err != nil {
		return nil, SettingsOutput{}, err
	}

	if err := h.store.SaveSettings(ctx, settings); err != nil {
		return nil, SettingsOutput{}, fmt.Errorf("failed to save settings: %w", err)
	}

	return nil, settingsToOutput(settings), nil
}

func applySettingsUpdate(s *models.AgentSettings, in UpdateAgentSettingsInput) error {
	update := models.SettingsUpdate{
		Enabled:                  in.Enabled,
		AutoSend:                 in.AutoSend,
		MaxEmailsPerDay:          in.MaxEmailsPerDay,
		SendHoursStart:           in.SendHoursStart,
		SendHoursEnd:             in.SendHoursEnd,
		MinMinutesBetweenSends:   in.MinMinutesBetweenSends,
		AllowedICPFits:           in.AllowedICPFits,
		MinMatchScore:            in.MinMatchScore,
		MaxContactsPerLeadPerDay: in.MaxContactsPerLeadPerDay,
	}
	if in.SendDays != "" {
		update.SendDays = &in.SendDays
	}
	return update.Apply(s)
}

type GetActivityLogInput struct {
	ActivityType string `json:"activity_type,omitempty" jsonschema:"Filter by type: email_sent, email_failed, email_skipped, email_bounced, lead_reverted, run_completed, run_skipped"`
	Status       string `json:"status,omitempty" jsonschema:"Filter by status: success, failed, skipped"`
	Limit        int    `json:"limit,omitempty" jsonschema:"Maximum number of entries (default 50)"`
}

type ActivityOutput struct {
	Type      string `json:"activity_type"`
	Email     string `json:"email,omitempty"`
	LeadID    string `json:"lead_id,omitempty"`
	Summary   string `json:"summary"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type GetActivityLogOutput struct {
	Count      int              `json:"count"`
	Activities []ActivityOutput `json:"activities"`
}

func (h *AgentHandlers) GetActivityLog(ctx context.Context, _ *mcp.CallToolRequest, input GetActivityLogInput) (*mcp.CallToolResult, GetActivityLogOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	// Status is filtered here, so over-fetch to still fill the page.
	fetch := limit
	if input.Status != "" {
		fetch = limit * 5
	}

	entries, err := h.store.ListActivity(ctx, input.ActivityType, fetch)
	if err != nil {
		return nil, GetActivityLogOutput{}, fmt.Errorf("failed to list activity: %w", err)
	}

	out := GetActivityLogOutput{Activities: []ActivityOutput{}}
	for _, e := range entries {
		if input.Status != "" && e.Status != input.Status {
			continue
		}
		if len(out.Activities) == limit {
			break
		}
		a := ActivityOutput{
			Type:      e.Type,
			Email:     e.Email,
			Summary:   e.Summary,
			Status:    e.Status,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if e.LeadID != nil {
			a.LeadID = e.LeadID.String()
		}
		out.Activities = append(out.Activities, a)
	}
	out.Count = len(out.Activities)

	return nil, out, nil
}

func (h *AgentHandlers) loadSettings(ctx context.Context) (*models.AgentSettings, error) {
	settings, err := h.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings == nil {
		return nil, engine.ErrSettingsMissing
	}
	return settings, nil
}

func settingsToOutput(s *models.AgentSettings) SettingsOutput {
	fits := make([]string, len(s.AllowedICPFits))
	for i, f := range s.AllowedICPFits {
		fits[i] = string(f)
	}

	out := SettingsOutput{
		Enabled:                  s.Enabled,
		AutoSend:                 s.AutoSend,
		MaxEmailsPerDay:          s.MaxEmailsPerDay,
		SendHoursStart:           s.SendHoursStart,
		SendHoursEnd:             s.SendHoursEnd,
		SendDays:                 s.SendDays.String(),
		MinMinutesBetweenSends:   s.MinMinutesBetweenSends,
		AllowedICPFits:           fits,
		MinMatchScore:            s.MinMatchScore,
		MaxContactsPerLeadPerDay: s.MaxContactsPerLeadPerDay,
	}
	if s.LastHeartbeat != nil {
		hb := s.LastHeartbeat.UTC().Format(time.RFC3339)
		out.LastHeartbeat = &hb
	}
	return out
}
