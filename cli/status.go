// ABOUTME: Read-only status and Gmail verification commands
// ABOUTME: Renders the pipeline overview with lipgloss sized to the terminal
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/mb2470/onsite-affiliate-sdr-agent/tui"
)

// StatusCommand prints settings, the gate preview and pipeline counts.
func StatusCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	eng, err := app.engineFor(nil, nil)
	if err != nil {
		return err
	}
	ov, err := eng.Overview(ctx)
	if err != nil {
		return fmt.Errorf("failed to load status: %w", err)
	}

	if *asJSON {
		return app.printJSON(ov)
	}
	app.println(tui.RenderOverview(ov, lipgloss.NewRenderer(app.Out), app.width()))
	return nil
}

// width is the terminal width when Out is a terminal.
func (a *App) width() int {
	f, ok := a.Out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return tui.DefaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return tui.DefaultWidth
	}
	return min(w, 100)
}

// VerifyGmailCommand prints the address the transport sends as.
func VerifyGmailCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("verify-gmail", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	transport, err := app.buildTransport(ctx)
	if err != nil {
		return err
	}

	app.println("Verifying Gmail connection...")
	address, err := transport.Verify(ctx)
	if err != nil {
		return fmt.Errorf("gmail verification failed: %w", err)
	}

	app.printf("  ✓ Connected as %s\n", address)
	if configured := app.Config.Gmail.FromEmail; configured != "" && !strings.EqualFold(configured, address) {
		app.printf("  ! GMAIL_FROM_EMAIL is %s; messages will be sent from %s\n", configured, address)
	}
	return nil
}
