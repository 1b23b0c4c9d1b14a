// ABOUTME: Lead funnel graph generation
// ABOUTME: Renders lead status counts and state transitions with graphviz
package viz

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// funnelStages are drawn left to right in this order.
var funnelStages = []models.LeadStatus{
	models.LeadNew,
	models.LeadEnriching,
	models.LeadEnriched,
	models.LeadNoContacts,
	models.LeadContacted,
	models.LeadProcessed,
}

type transition struct {
	from, to models.LeadStatus
	label    string
	style    cgraph.EdgeStyle
}

var funnelTransitions = []transition{
	{models.LeadNew, models.LeadEnriching, "research", ""},
	{models.LeadEnriching, models.LeadEnriched, "contacts found", ""},
	{models.LeadEnriching, models.LeadNoContacts, "none found", "dotted"},
	{models.LeadEnriched, models.LeadContacted, "emailed", "bold"},
	{models.LeadContacted, models.LeadEnriched, "bounced", "dashed"},
	{models.LeadContacted, models.LeadProcessed, "", ""},
}

// ParseFormat maps a user-facing format name to a graphviz format.
func ParseFormat(name string) (graphviz.Format, error) {
	switch name {
	case "dot", "":
		return graphviz.XDOT, nil
	case "svg":
		return graphviz.SVG, nil
	case "png":
		return graphviz.PNG, nil
	}
	return "", fmt.Errorf("unsupported graph format %q (expected dot, svg or png)", name)
}

// RenderFunnel writes the lead funnel for status to w.
func RenderFunnel(ctx context.Context, status *models.PipelineStatus, format graphviz.Format, w io.Writer) error {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to create graphviz: %w", err)
	}
	defer func() { _ = gv.Close() }()

	graph, err := gv.Graph()
	if err != nil {
		return fmt.Errorf("failed to create graph: %w", err)
	}
	defer func() { _ = graph.Close() }()

	graph.SetLabel(fmt.Sprintf("Lead funnel: %d leads, %d emails sent, %d bounces",
		status.TotalLeads, status.OutreachTotal, status.BouncesTotal))
	graph.SetRankDir(cgraph.LRRank)

	nodes := make(map[models.LeadStatus]*cgraph.Node, len(funnelStages))
	for _, stage := range funnelStages {
		node, err := graph.CreateNodeByName(string(stage))
		if err != nil {
			return fmt.Errorf("failed to create %s node: %w", stage, err)
		}
		count := status.LeadsByStatus[stage]
		node.SetLabel(fmt.Sprintf("%s (%d)", stage, count))
		node.SetShape("box")
		node.SetStyle("filled")
		node.SetFillColor(stageColor(stage, count))
		nodes[stage] = node
	}

	for _, t := range funnelTransitions {
		edge, err := graph.CreateEdgeByName(t.label, nodes[t.from], nodes[t.to])
		if err != nil {
			return fmt.Errorf("failed to create edge %s->%s: %w", t.from, t.to, err)
		}
		if t.label != "" {
			edge.SetLabel(t.label)
		}
		if t.style != "" {
			edge.SetStyle(t.style)
		}
	}

	if err := gv.Render(ctx, graph, format, w); err != nil {
		return fmt.Errorf("failed to render graph: %w", err)
	}
	return nil
}

func stageColor(stage models.LeadStatus, count int) string {
	switch {
	case count == 0:
		return "white"
	case stage == models.LeadEnriched:
		return "lightgreen"
	case stage == models.LeadContacted:
		return "lightblue"
	case stage == models.LeadNoContacts:
		return "lightgrey"
	default:
		return "lightyellow"
	}
}
