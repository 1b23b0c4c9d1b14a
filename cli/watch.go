// ABOUTME: Live dashboard and funnel graph commands
// ABOUTME: Runs the bubbletea dashboard and renders the lead funnel with graphviz
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mb2470/onsite-affiliate-sdr-agent/db"
	"github.com/mb2470/onsite-affiliate-sdr-agent/engine"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
	"github.com/mb2470/onsite-affiliate-sdr-agent/tui"
	"github.com/mb2470/onsite-affiliate-sdr-agent/viz"
)

type dashboardSource struct {
	engine *engine.Engine
	store  *db.Store
}

func (s dashboardSource) Overview(ctx context.Context) (*engine.Overview, error) {
	return s.engine.Overview(ctx)
}

func (s dashboardSource) ListActivity(ctx context.Context, activityType string, limit int) ([]models.ActivityLogEntry, error) {
	return s.store.ListActivity(ctx, activityType, limit)
}

// WatchCommand shows a refreshing dashboard until the user quits.
func WatchCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("interval", 30*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *interval < time.Second {
		return fmt.Errorf("--interval must be at least 1s")
	}

	eng, err := app.engineFor(nil, nil)
	if err != nil {
		return err
	}
	return tui.Run(ctx, dashboardSource{engine: eng, store: app.Store}, *interval)
}

// GraphCommand renders the lead funnel as DOT, SVG or PNG.
func GraphCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("graph", flag.ContinueOnError)
	output := fs.String("output", "", "Output file (default: stdout)")
	format := fs.String("format", "dot", "Output format: dot, svg or png")
	if err := fs.Parse(args); err != nil {
		return err
	}

	gvFormat, err := viz.ParseFormat(*format)
	if err != nil {
		return err
	}

	eng, err := app.engineFor(nil, nil)
	if err != nil {
		return err
	}
	status, err := eng.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pipeline status: %w", err)
	}

	var w io.Writer = app.Out
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if err := viz.RenderFunnel(ctx, status, gvFormat, w); err != nil {
		return err
	}
	if *output != "" {
		app.printf("✓ Graph written to %s\n", *output)
	}
	return nil
}
