// ABOUTME: Settings gate deciding whether the engine may send right now
// ABOUTME: Checks the enabled flag, daily budget, send days and send hours
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// Gate reasons, in evaluation order.
const (
	ReasonPaused          = "paused"
	ReasonBudgetExhausted = "budget exhausted"
	ReasonNotSendDay      = "not a send day"
	ReasonOutsideHours    = "outside send hours"
)

type GateResult struct {
	Eligible        bool   `json:"eligible"`
	Reason          string `json:"reason,omitempty"`
	RemainingBudget int    `json:"remaining_budget"`
	SentToday       int    `json:"sent_today"`
}

// StartOfUTCDay truncates t to midnight UTC. The daily budget resets here.
func StartOfUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EvaluateGate applies the gate to an already-counted day. It has no side effects.
func EvaluateGate(settings *models.AgentSettings, sentToday int, now time.Time, loc *time.Location) GateResult {
	remaining := settings.MaxEmailsPerDay - sentToday
	if remaining < 0 {
		remaining = 0
	}
	result := GateResult{RemainingBudget: remaining, SentToday: sentToday}

	local := now.In(loc)
	switch {
	case !settings.Enabled:
		result.Reason = ReasonPaused
	case remaining <= 0:
		result.Reason = ReasonBudgetExhausted
	case !settings.SendDays.Contains(local.Weekday()):
		result.Reason = ReasonNotSendDay
	case local.Hour() < settings.SendHoursStart || local.Hour() >= settings.SendHoursEnd:
		result.Reason = ReasonOutsideHours
	default:
		result.Eligible = true
	}
	return result
}

// Evaluate counts today's sends from the ledger and applies the gate.
func (e *Engine) Evaluate(ctx context.Context, settings *models.AgentSettings, now time.Time) (GateResult, error) {
	sentToday, err := e.store.CountOutreachSince(ctx, StartOfUTCDay(now))
	if err != nil {
		return GateResult{}, fmt.Errorf("failed to count today's sends: %w", err)
	}
	result := EvaluateGate(settings, sentToday, now, e.location)
	if result.Eligible {
		e.metrics.GateDecision("eligible")
	} else {
		e.metrics.GateDecision(result.Reason)
	}
	return result, nil
}
