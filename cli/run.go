// ABOUTME: Engine-driving CLI commands
// ABOUTME: Implements auto, send-batch and check-bounces with a printed run report
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/mb2470/onsite-affiliate-sdr-agent/engine"
)

// AutoCommand runs one full cycle: gate, bounce reconciliation, dispatch.
func AutoCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("auto", flag.ContinueOnError)
	days := fs.Int("days", app.Config.BounceLookbackDays, "Bounce lookback window in days")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	eng, err := app.fullEngine(ctx)
	if err != nil {
		return err
	}

	report, err := eng.RunAuto(ctx, *days)
	if err != nil {
		return fmt.Errorf("auto run failed: %w", lockHint(err))
	}

	if *asJSON {
		return app.printJSON(report)
	}
	app.printReport("Auto run", report)
	return nil
}

// SendBatchCommand dispatches up to N messages, bounded by today's remaining budget.
func SendBatchCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("send-batch", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: sdr send-batch N")
	}
	n, err := strconv.Atoi(fs.Arg(0))
	if err != nil || n < 1 {
		return fmt.Errorf("batch size must be a positive integer, got %q", fs.Arg(0))
	}

	eng, err := app.fullEngine(ctx)
	if err != nil {
		return err
	}

	report, err := eng.SendBatch(ctx, n)
	if err != nil {
		return fmt.Errorf("send-batch failed: %w", lockHint(err))
	}

	if *asJSON {
		return app.printJSON(report)
	}
	app.printReport("Batch", report)
	return nil
}

// CheckBouncesCommand reconciles hard bounces without sending anything.
func CheckBouncesCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("check-bounces", flag.ContinueOnError)
	days := fs.Int("days", app.Config.BounceLookbackDays, "Lookback window in days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	transport, err := app.buildTransport(ctx)
	if err != nil {
		return err
	}
	eng, err := app.engineFor(nil, transport)
	if err != nil {
		return err
	}

	app.printf("Checking bounces from the last %d day(s)...\n", *days)
	bounced, err := eng.CheckBounces(ctx, *days)
	for _, email := range bounced {
		app.printf("  ✗ %s bounced, contact removed\n", email)
	}
	if err != nil {
		return fmt.Errorf("bounce check incomplete: %w", err)
	}

	if len(bounced) == 0 {
		app.println("  ✓ No new bounces")
	} else {
		app.printf("\n✓ Reconciled %d bounce(s)\n", len(bounced))
	}
	return nil
}

// lockHint points at sdr unlock when the run lock is held.
func lockHint(err error) error {
	if errors.Is(err, engine.ErrLocked) {
		return fmt.Errorf("%w; run 'sdr unlock' if no other run is alive", err)
	}
	return err
}

func (a *App) printReport(title string, r *engine.Report) {
	a.printf("%s %s\n", title, r.RunID)

	if !r.Gate.Eligible && r.Gate.Reason != "" {
		a.printf("  → Skipped: %s\n", r.Gate.Reason)
	}
	for _, email := range r.Bounced {
		a.printf("  ✗ Bounce reconciled: %s\n", email)
	}
	for _, w := range r.Warnings {
		a.printf("  ! %s\n", w)
	}

	a.printf("  ✓ Sent: %d  Failed: %d  Skipped: %d\n", r.Batch.Sent, r.Batch.Failed, r.Batch.Skipped)
	if r.Batch.StopReason != "" && r.Batch.StopReason != r.Gate.Reason {
		a.printf("  → Stopped: %s\n", r.Batch.StopReason)
	}
	a.printf("  → Sent today: %d  Remaining budget: %d\n", r.Gate.SentToday, r.Gate.RemainingBudget)

	if r.Status != nil {
		a.printf("  → Pipeline: %d leads, %d contacts, %d emails sent, %d bounces\n",
			r.Status.TotalLeads, r.Status.TotalContacts, r.Status.OutreachTotal, r.Status.BouncesTotal)
	}
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
