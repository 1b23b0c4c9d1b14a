// ABOUTME: Inter-send pacing policy
// ABOUTME: Computes the next allowed send time and waits for it through a Sleeper
package engine

import (
	"context"
	"time"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// NextSendAt is the earliest time the next message may go out after lastSend.
func NextSendAt(lastSend time.Time, settings *models.AgentSettings, jitter time.Duration) time.Time {
	return lastSend.Add(time.Duration(settings.MinMinutesBetweenSends)*time.Minute + jitter)
}

// pace waits until the next send is allowed. It returns ctx.Err() if the run
// is cancelled while waiting.
func (e *Engine) pace(ctx context.Context, settings *models.AgentSettings, lastSend time.Time) error {
	next := NextSendAt(lastSend, settings, e.jitter())
	wait := next.Sub(e.clock.Now())
	e.log(ctx).Info("pacing before next send", "wait", wait.Round(time.Second), "next_send_at", next)
	return e.sleeper.Sleep(ctx, wait)
}
