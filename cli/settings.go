// ABOUTME: Agent settings CLI commands
// ABOUTME: Shows and updates the singleton settings row
package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
	"github.com/mb2470/onsite-affiliate-sdr-agent/tui"
)

// SettingsCommand routes settings show|set.
func SettingsCommand(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: sdr settings show|set [flags]")
	}
	switch args[0] {
	case "show":
		return showSettings(ctx, app, args[1:])
	case "set":
		return setSettings(ctx, app, args[1:])
	default:
		return fmt.Errorf("unknown settings command: %s", args[0])
	}
}

func showSettings(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := app.Store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if s == nil {
		return fmt.Errorf("settings row is missing; reopen the database to reseed it")
	}

	if *asJSON {
		return app.printJSON(s)
	}

	app.printf("Enabled:                %t\n", s.Enabled)
	app.printf("Auto-send:              %t\n", s.AutoSend)
	app.printf("Max emails per day:     %d\n", s.MaxEmailsPerDay)
	app.printf("Send hours:             %d-%d\n", s.SendHoursStart, s.SendHoursEnd)
	app.printf("Send days:              %s\n", s.SendDays)
	app.printf("Min minutes between:    %d\n", s.MinMinutesBetweenSends)
	app.printf("Allowed ICP fits:       %s\n", tui.JoinFits(s.AllowedICPFits))
	app.printf("Min match score:        %d\n", s.MinMatchScore)
	app.printf("Contacts/lead/day:      %d\n", s.MaxContactsPerLeadPerDay)
	return nil
}

func setSettings(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	enabled := fs.Bool("enabled", false, "Enable the agent")
	autoSend := fs.Bool("auto-send", false, "Send automatically during auto runs")
	maxPerDay := fs.Int("max-per-day", 0, "Daily send budget")
	hoursStart := fs.Int("hours-start", 0, "First hour of the send window (0-23)")
	hoursEnd := fs.Int("hours-end", 0, "Hour the send window closes (1-24)")
	days := fs.String("days", "", "Send days, e.g. mon,tue,wed")
	minGap := fs.Int("min-gap", 0, "Minimum minutes between sends")
	fits := fs.String("fits", "", "Allowed ICP fits, e.g. HIGH,MEDIUM")
	minScore := fs.Int("min-score", 0, "Minimum contact match score")
	perLead := fs.Int("per-lead", 0, "Contacts emailed per lead per day")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var update models.SettingsUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "enabled":
			update.Enabled = enabled
		case "auto-send":
			update.AutoSend = autoSend
		case "max-per-day":
			update.MaxEmailsPerDay = maxPerDay
		case "hours-start":
			update.SendHoursStart = hoursStart
		case "hours-end":
			update.SendHoursEnd = hoursEnd
		case "days":
			update.SendDays = days
		case "min-gap":
			update.MinMinutesBetweenSends = minGap
		case "fits":
			update.AllowedICPFits = splitList(*fits)
		case "min-score":
			update.MinMatchScore = minScore
		case "per-lead":
			update.MaxContactsPerLeadPerDay = perLead
		}
	})

	s, err := app.Store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if s == nil {
		return fmt.Errorf("settings row is missing; reopen the database to reseed it")
	}

	if err := update.Apply(s); err != nil {
		return err
	}
	if err := app.Store.SaveSettings(ctx, s); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	app.println("✓ Settings updated")
	return showSettings(ctx, app, nil)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
