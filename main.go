// ABOUTME: Entry point for the outreach agent CLI and MCP server
// ABOUTME: Loads configuration, opens the ledger and routes to commands
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mb2470/onsite-affiliate-sdr-agent/cli"
	"github.com/mb2470/onsite-affiliate-sdr-agent/config"
	"github.com/mb2470/onsite-affiliate-sdr-agent/db"
	"github.com/mb2470/onsite-affiliate-sdr-agent/logging"
)

const version = "0.1.0"

type command func(ctx context.Context, app *cli.App, args []string) error

var commands = map[string]command{
	"auto":          cli.AutoCommand,
	"send-batch":    cli.SendBatchCommand,
	"check-bounces": cli.CheckBouncesCommand,
	"unlock":        cli.UnlockCommand,
	"status":        cli.StatusCommand,
	"verify-gmail":  cli.VerifyGmailCommand,
	"auth":          cli.AuthCommand,
	"settings":      cli.SettingsCommand,
	"lead":          cli.LeadCommand,
	"contact":       cli.ContactCommand,
	"serve":         cli.ServeCommand,
	"watch":         cli.WatchCommand,
	"graph":         cli.GraphCommand,
	"mcp": func(ctx context.Context, app *cli.App, args []string) error {
		return cli.MCPCommand(ctx, app)
	},
}

func main() {
	os.Exit(run())
}

func run() int {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/sdr/sdr.db)")
	configPath := flag.String("config", "", "Config file (default: ~/.config/sdr/config.toml)")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("sdr version %s\n", version)
		return 0
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		return 0
	}

	name, commandArgs := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		fmt.Fprintln(os.Stderr, "Error: invalid configuration:")
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "  ✗ %v\n", p)
		}
		return 1
	}

	logger, closer, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closer.Close()

	finalDBPath := *dbPath
	if finalDBPath == "" {
		finalDBPath = cfg.DBPath
	}
	if finalDBPath == "" {
		finalDBPath = db.DefaultPath()
	}

	database, err := db.OpenDatabase(finalDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer database.Close()
	logger.Debug("database opened", "path", finalDBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(database, cfg, logger)
	if err := cmd(ctx, app, commandArgs); err != nil {
		logger.Error("command failed", "command", name, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `sdr v%s - Onsite Affiliate outreach agent

USAGE:
  sdr [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --db-path <path>       Database path (default: ~/.local/share/sdr/sdr.db)
  --config <file>        Config file (default: ~/.config/sdr/config.toml)

OUTREACH COMMANDS:
  sdr auto                  Gate, reconcile bounces, then send one batch
    --days <n>                Bounce lookback window (default: 7)
    --json                    Print the run report as JSON

  sdr send-batch <n>        Send up to n emails (gate applies, auto-send does not)
    --json                    Print the run report as JSON

  sdr check-bounces         Reconcile hard bounces without sending
    --days <n>                Lookback window (default: 7)

  sdr status                Show settings, gate and pipeline counts
    --json                    Print as JSON

  sdr unlock                Clear the run lock left by a crashed run

  sdr verify-gmail          Print the address mail is sent from

  sdr auth                  Authorize Gmail and save the token
    --addr <host:port>        Callback listener (default: localhost:8080)
    --no-browser              Print the URL instead of opening a browser

DATA COMMANDS:
  sdr settings show         Show agent settings
  sdr settings set          Update agent settings
    --enabled, --auto-send    Switches (use --enabled=false to pause)
    --max-per-day <n>         Daily send budget
    --hours-start <h>         Send window start hour (0-23)
    --hours-end <h>           Send window end hour (1-24)
    --days <list>             Send days, e.g. mon,tue,wed,thu,fri
    --min-gap <minutes>       Minimum minutes between sends
    --fits <list>             Allowed ICP fits, e.g. HIGH,MEDIUM
    --min-score <n>           Minimum contact match score
    --per-lead <n>            Contacts per lead per day

  sdr lead add              Add a lead
    --website <domain>        Website (required)
    --industry, --notes       Lead context for the generator
    --fit <fit>               HIGH, MEDIUM or LOW (default: HIGH)
    --status <status>         Lead status (default: enriched)
  sdr lead list             List leads (--status, --fit, --search, --limit)

  sdr contact add           Add a contact
    --lead <id|website>       Owning lead (required)
    --email <email>           Email address (required)
    --first, --last, --title  Name and job title
  sdr contact list          List contacts (--lead, --limit)

SERVER COMMANDS:
  sdr serve                 Run auto on a schedule and serve /healthz, /metrics, /api/status
    --schedule <cron>         Cron spec (default: */15 * * * *)
    --addr <host:port>        Listen address (default: :9090)
    --run-now                 Run once before waiting for the schedule

  sdr mcp                   Start MCP server on stdio

  sdr watch                 Live dashboard of the gate, pipeline and activity
    --interval <duration>     Refresh interval (default: 30s)

  sdr graph                 Render the lead funnel
    --format <fmt>            dot, svg or png (default: dot)
    --output <file>           Output file (default: stdout)

EXAMPLES:
  # Enable the agent with a 20 email budget
  sdr settings set --enabled --auto-send --max-per-day 20

  # Queue a lead and a contact
  sdr lead add --website acme.com --industry "Home goods"
  sdr contact add --lead acme.com --email dana@acme.com --first Dana --title "VP Marketing"

  # Send three emails now
  sdr send-batch 3

`, version)
}
