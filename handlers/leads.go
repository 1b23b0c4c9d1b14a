// ABOUTME: Lead MCP tool handler
// ABOUTME: Implements get_leads with status, fit and website filters
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mb2470/onsite-affiliate-sdr-agent/db"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

type GetLeadsInput struct {
	Status string `json:"status,omitempty" jsonschema:"Filter by status: new, enriching, enriched, no_contacts, contacted, processed"`
	ICPFit string `json:"icp_fit,omitempty" jsonschema:"Filter by ICP fit: HIGH, MEDIUM, LOW"`
	Search string `json:"search,omitempty" jsonschema:"Only websites containing this term"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 50)"`
}

type LeadOutput struct {
	ID          string `json:"id"`
	Website     string `json:"website"`
	Industry    string `json:"industry,omitempty"`
	ICPFit      string `json:"icp_fit"`
	Status      string `json:"status"`
	HasContacts bool   `json:"has_contacts"`
	CreatedAt   string `json:"created_at"`
}

type GetLeadsOutput struct {
	Count int          `json:"count"`
	Leads []LeadOutput `json:"leads"`
}

func (h *AgentHandlers) GetLeads(ctx context.Context, _ *mcp.CallToolRequest, input GetLeadsInput) (*mcp.CallToolResult, GetLeadsOutput, error) {
	filter := db.LeadFilter{Search: input.Search, Limit: input.Limit}

	if input.Status != "" {
		status, err := models.ParseLeadStatus(input.Status)
		if err != nil {
			return nil, GetLeadsOutput{}, err
		}
		filter.Status = status
	}
	if input.ICPFit != "" {
		fit, err := models.ParseICPFit(input.ICPFit)
		if err != nil {
			return nil, GetLeadsOutput{}, err
		}
		filter.ICPFit = fit
	}

	leads, err := h.store.FindLeads(ctx, filter)
	if err != nil {
		return nil, GetLeadsOutput{}, fmt.Errorf("failed to find leads: %w", err)
	}

	out := GetLeadsOutput{Count: len(leads), Leads: make([]LeadOutput, len(leads))}
	for i, l := range leads {
		out.Leads[i] = LeadOutput{
			ID:          l.ID.String(),
			Website:     l.Website,
			Industry:    l.Industry,
			ICPFit:      string(l.ICPFit),
			Status:      string(l.Status),
			HasContacts: l.HasContacts,
			CreatedAt:   l.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return nil, out, nil
}
