// ABOUTME: Long-running serve command
// ABOUTME: Triggers auto runs on a cron schedule and serves health, metrics and status over HTTP
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"github.com/mb2470/onsite-affiliate-sdr-agent/engine"
	"github.com/mb2470/onsite-affiliate-sdr-agent/metrics"
	"github.com/mb2470/onsite-affiliate-sdr-agent/web"
)

// ServeCommand blocks until ctx is cancelled.
func ServeCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	schedule := fs.String("schedule", app.Config.Serve.Schedule, "Cron schedule for auto runs")
	addr := fs.String("addr", app.Config.Serve.ListenAddr, "HTTP listen address")
	runNow := fs.Bool("run-now", false, "Run once immediately before waiting for the schedule")
	if err := fs.Parse(args); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Recorder = metrics.New(registry)

	eng, err := app.fullEngine(ctx)
	if err != nil {
		return err
	}

	cronLog := cronLogger{app.Logger.With("component", "cron")}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(*schedule, func() { app.scheduledRun(ctx, eng) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", *schedule, err)
	}

	if *runNow {
		app.scheduledRun(ctx, eng)
	}

	c.Start()
	app.Logger.Info("scheduler started", "schedule", *schedule)
	defer func() {
		<-c.Stop().Done()
		app.Logger.Info("scheduler stopped")
	}()

	srv := web.NewServer(eng, app.Store, registry, app.Logger.With("component", "http"))
	return srv.ListenAndServe(ctx, *addr)
}

// scheduledRun performs one auto run and logs the outcome instead of failing.
func (a *App) scheduledRun(ctx context.Context, eng *engine.Engine) {
	if ctx.Err() != nil {
		return
	}

	report, err := eng.RunAuto(ctx, a.Config.BounceLookbackDays)
	switch {
	case errors.Is(err, engine.ErrLocked):
		a.Logger.Info("auto run skipped, another run holds the lock")
	case err != nil:
		a.Logger.Error("auto run failed", "error", err)
	default:
		a.Logger.Info("auto run finished",
			"run_id", report.RunID,
			"eligible", report.Gate.Eligible,
			"reason", report.Gate.Reason,
			"sent", report.Batch.Sent,
			"failed", report.Batch.Failed,
			"skipped", report.Batch.Skipped,
			"bounced", len(report.Bounced),
		)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
