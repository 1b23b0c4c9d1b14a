// ABOUTME: Invocation coordinators for auto, send-batch and check-bounces
// ABOUTME: Loads settings once, takes the run lock and assembles the run report
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

const (
	LockName = "outreach"

	reasonAutoSendOff = "auto-send disabled"
)

// Report summarises one invocation.
type Report struct {
	RunID    string                 `json:"run_id"`
	Gate     GateResult             `json:"gate"`
	Bounced  []string               `json:"bounced,omitempty"`
	Batch    BatchResult            `json:"batch"`
	Status   *models.PipelineStatus `json:"status,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
	Settings *models.AgentSettings  `json:"-"`
}

// RunAuto runs gate → reconcile → dispatch once and returns a report with a
// pipeline snapshot.
func (e *Engine) RunAuto(ctx context.Context, lookbackDays int) (*Report, error) {
	start := time.Now()
	ctx, runID := withRunID(ctx)
	log := e.log(ctx)
	report := &Report{RunID: runID}

	release, err := e.lock(ctx, LockName)
	if err != nil {
		return nil, err
	}
	defer release()
	defer func() { e.metrics.RunFinished("auto", time.Since(start)) }()

	settings, err := e.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	report.Settings = settings

	now := e.clock.Now()
	if err := e.store.TouchHeartbeat(ctx, now); err != nil {
		log.Warn("failed to write heartbeat", "error", err)
	}

	report.Gate, err = e.Evaluate(ctx, settings, now)
	if err != nil {
		return nil, err
	}
	if !report.Gate.Eligible {
		log.Info("run skipped", "reason", report.Gate.Reason)
		report.Batch.StopReason = report.Gate.Reason
		e.audit(ctx, models.ActivityLogEntry{
			Type:    models.ActivityRunSkipped,
			Summary: fmt.Sprintf("Run skipped: %s", report.Gate.Reason),
			Status:  models.ActivitySkipped,
		})
		return e.finish(ctx, report, true)
	}

	bounced, err := e.ReconcileBounces(ctx, lookbackDays)
	if err != nil {
		// Dispatch can still proceed; a missed bounce is picked up next run
		log.Warn("bounce reconciliation incomplete", "error", err)
		report.Warnings = append(report.Warnings, fmt.Sprintf("bounce check: %v", err))
	}
	report.Bounced = bounced

	budget := report.Gate.RemainingBudget
	if settings.AutoSend {
		report.Batch, err = e.RunBatch(ctx, settings, budget)
		if err != nil {
			return nil, err
		}
	} else {
		report.Batch, err = e.holdCandidates(ctx, settings, budget)
		if err != nil {
			return nil, err
		}
	}

	e.audit(ctx, models.ActivityLogEntry{
		Type: models.ActivityRunCompleted,
		Summary: fmt.Sprintf("Run complete: %d sent, %d failed, %d skipped, %d bounces",
			report.Batch.Sent, report.Batch.Failed, report.Batch.Skipped, len(report.Bounced)),
		Status: models.ActivitySuccess,
	})
	return e.finish(ctx, report, true)
}

// holdCandidates reports what would be sent without generating or sending.
func (e *Engine) holdCandidates(ctx context.Context, settings *models.AgentSettings, budget int) (BatchResult, error) {
	var res BatchResult
	candidates, err := e.SelectCandidates(ctx, settings, budget)
	if err != nil {
		return res, err
	}
	e.skipRest(ctx, candidates, reasonAutoSendOff, &res)
	if len(candidates) == 0 {
		res.StopReason = reasonAutoSendOff
	}
	return res, nil
}

// SendBatch dispatches up to n messages without reconciling bounces. The
// gate still applies; auto-send does not.
func (e *Engine) SendBatch(ctx context.Context, n int) (*Report, error) {
	start := time.Now()
	ctx, runID := withRunID(ctx)
	report := &Report{RunID: runID}

	release, err := e.lock(ctx, LockName)
	if err != nil {
		return nil, err
	}
	defer release()
	defer func() { e.metrics.RunFinished("send_batch", time.Since(start)) }()

	settings, err := e.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	report.Settings = settings

	report.Gate, err = e.Evaluate(ctx, settings, e.clock.Now())
	if err != nil {
		return nil, err
	}
	if !report.Gate.Eligible {
		report.Batch.StopReason = report.Gate.Reason
		return report, nil
	}

	budget := n
	if report.Gate.RemainingBudget < budget {
		budget = report.Gate.RemainingBudget
	}
	report.Batch, err = e.RunBatch(ctx, settings, budget)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, report, false)
}

// CheckBounces runs the reconciler alone under the run lock.
func (e *Engine) CheckBounces(ctx context.Context, lookbackDays int) ([]string, error) {
	start := time.Now()
	ctx, _ = withRunID(ctx)

	release, err := e.lock(ctx, LockName)
	if err != nil {
		return nil, err
	}
	defer release()
	defer func() { e.metrics.RunFinished("check_bounces", time.Since(start)) }()

	return e.ReconcileBounces(ctx, lookbackDays)
}

// finish refreshes the budget figures after the run and optionally attaches
// a pipeline snapshot.
func (e *Engine) finish(ctx context.Context, report *Report, withStatus bool) (*Report, error) {
	if withStatus {
		status, err := e.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load pipeline status: %w", err)
		}
		report.Status = status
	}

	sentToday, err := e.store.CountOutreachSince(ctx, StartOfUTCDay(e.clock.Now()))
	if err != nil {
		e.log(ctx).Warn("failed to refresh budget", "error", err)
		return report, nil
	}
	report.Gate.SentToday = sentToday
	report.Gate.RemainingBudget = max(report.Settings.MaxEmailsPerDay-sentToday, 0)
	return report, nil
}
