// ABOUTME: MCP server subcommand
// ABOUTME: Exposes pipeline, settings, activity and lead tools over stdio
package cli

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mb2470/onsite-affiliate-sdr-agent/handlers"
)

const serverVersion = "0.1.0"

// NewMCPServer registers the agent tools on a fresh MCP server.
func NewMCPServer(app *App) (*mcp.Server, error) {
	eng, err := app.engineFor(nil, nil)
	if err != nil {
		return nil, err
	}
	agent := handlers.NewAgentHandlers(app.Store, eng)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "sdr",
		Version: serverVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_pipeline_stats",
		Description: "Get pipeline counts, today's sends and whether the agent may send right now",
	}, agent.GetPipelineStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_agent_settings",
		Description: "Get current agent configuration and settings",
	}, agent.GetAgentSettings)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_agent_settings",
		Description: "Update agent configuration (enable/disable, limits, send window, ICP filters)",
	}, agent.UpdateAgentSettings)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_activity_log",
		Description: "Get recent agent activity such as sends, failures, bounces and run summaries",
	}, agent.GetActivityLog)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_leads",
		Description: "Query leads with optional status, ICP fit and website filters",
	}, agent.GetLeads)

	return server, nil
}

// MCPCommand starts the MCP server on stdio
func MCPCommand(ctx context.Context, app *App) error {
	app.Logger.Info("starting MCP server")

	server, err := NewMCPServer(app)
	if err != nil {
		return err
	}
	return server.Run(ctx, &mcp.StdioTransport{})
}
