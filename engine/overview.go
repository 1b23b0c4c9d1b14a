// ABOUTME: Read-only dashboard view of the engine
// ABOUTME: Combines settings, a gate preview and pipeline counts without side effects
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// Overview is what the status surfaces show.
type Overview struct {
	Now      time.Time              `json:"now"`
	Settings *models.AgentSettings  `json:"settings"`
	Gate     GateResult             `json:"gate"`
	Status   *models.PipelineStatus `json:"status"`
}

// Overview previews the gate and counts the pipeline. Unlike Evaluate it
// records no gate metrics.
func (e *Engine) Overview(ctx context.Context) (*Overview, error) {
	settings, err := e.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	sentToday, err := e.store.CountOutreachSince(ctx, StartOfUTCDay(now))
	if err != nil {
		return nil, fmt.Errorf("failed to count today's sends: %w", err)
	}

	status, err := e.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline status: %w", err)
	}

	return &Overview{
		Now:      now,
		Settings: settings,
		Gate:     EvaluateGate(settings, sentToday, now, e.location),
		Status:   status,
	}, nil
}
