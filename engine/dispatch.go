// ABOUTME: Dispatch loop sending one candidate at a time
// ABOUTME: Generates, sends, persists the ledger row and paces between successful sends
package engine

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// Stop reasons reported by RunBatch besides gate reasons.
const (
	StopBudgetReached = "budget reached"
	StopExhausted     = "candidates exhausted"
	StopCancelled     = "cancelled"
)

// Send outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// ResearchExcerptLimit bounds the research notes passed to the generator.
const ResearchExcerptLimit = 300

type BatchResult struct {
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	StopReason string `json:"stop_reason,omitempty"`
}

// RunBatch sends to at most budget candidates. Per-candidate failures are
// counted and audited; only store errors that prevent selection abort the batch.
func (e *Engine) RunBatch(ctx context.Context, settings *models.AgentSettings, budget int) (BatchResult, error) {
	ctx, _ = withRunID(ctx)
	log := e.log(ctx)
	var res BatchResult

	if budget <= 0 {
		res.StopReason = StopBudgetReached
		return res, nil
	}
	if e.generator == nil || e.transport == nil {
		return res, fmt.Errorf("dispatch requires a generator and a transport")
	}

	view, err := e.loadLedger(ctx, e.clock.Now())
	if err != nil {
		return res, fmt.Errorf("failed to load outreach ledger: %w", err)
	}
	candidates, err := e.selectCandidates(ctx, settings, view, budget)
	if err != nil {
		return res, err
	}
	log.Info("selected candidates", "count", len(candidates), "budget", budget)

	for i, c := range candidates {
		remaining := candidates[i:]

		if ctx.Err() != nil {
			e.skipRest(ctx, remaining, StopCancelled, &res)
			return res, nil
		}
		if res.Sent >= budget {
			e.skipRest(ctx, remaining, StopBudgetReached, &res)
			return res, nil
		}

		// The window can close mid-run; check before every send
		gate, err := e.Evaluate(ctx, settings, e.clock.Now())
		if err != nil {
			e.skipRest(ctx, remaining, "gate check failed", &res)
			return res, err
		}
		if !gate.Eligible {
			log.Info("gate closed mid-run", "reason", gate.Reason)
			e.skipRest(ctx, remaining, gate.Reason, &res)
			return res, nil
		}

		if view.emailed.has(c.Contact.Email) {
			e.skipOne(ctx, c, "already emailed", &res)
			continue
		}

		if !e.dispatchOne(ctx, c) {
			res.Failed++
			e.metrics.SendOutcome(OutcomeFailed)
			continue
		}
		res.Sent++
		view.emailed.add(c.Contact.Email)
		e.metrics.SendOutcome(OutcomeSent)

		moreWork := i < len(candidates)-1 && res.Sent < budget
		if !moreWork {
			continue
		}
		if err := e.pace(ctx, settings, e.clock.Now()); err != nil {
			e.skipRest(ctx, candidates[i+1:], StopCancelled, &res)
			return res, nil
		}
	}

	if res.Sent >= budget {
		res.StopReason = StopBudgetReached
	} else {
		res.StopReason = StopExhausted
	}
	return res, nil
}

// dispatchOne runs generate → send → persist for one candidate and reports
// whether the message went out.
func (e *Engine) dispatchOne(ctx context.Context, c Candidate) bool {
	log := e.log(ctx).With("lead_id", c.Lead.ID, "email", c.Contact.Email)

	draft, err := e.generator.Generate(ctx, models.DraftRequest{
		Website:         c.Lead.Website,
		Industry:        c.Lead.Industry,
		ResearchExcerpt: excerpt(c.Lead.ResearchNotes, ResearchExcerptLimit),
		FirstName:       c.Contact.GreetingName(),
	})
	if err != nil {
		log.Warn("content generation failed", "error", err)
		e.audit(ctx, models.ActivityLogEntry{
			Type:      models.ActivityGenerationFailed,
			LeadID:    &c.Lead.ID,
			ContactID: &c.Contact.ID,
			Email:     c.Contact.Email,
			Summary:   fmt.Sprintf("Generation failed for %s: %v", c.Lead.Website, err),
			Status:    models.ActivityFailed,
		})
		return false
	}

	messageID, err := e.transport.Send(ctx, c.Contact.Email, draft.Subject, draft.Body)
	if err != nil {
		log.Warn("send failed", "error", err)
		e.audit(ctx, models.ActivityLogEntry{
			Type:      models.ActivityEmailFailed,
			LeadID:    &c.Lead.ID,
			ContactID: &c.Contact.ID,
			Email:     c.Contact.Email,
			Summary:   fmt.Sprintf("Send to %s (%s) failed: %v", c.Contact.Email, c.Lead.Website, err),
			Status:    models.ActivityFailed,
		})
		return false
	}

	// The message is out; persist even if the run is being cancelled
	persistCtx := context.WithoutCancel(ctx)
	sentAt := e.clock.Now()

	record := &models.OutreachRecord{
		LeadID:       c.Lead.ID,
		Website:      c.Lead.Website,
		ContactEmail: c.Contact.Email,
		ContactName:  c.Contact.FullName,
		Subject:      draft.Subject,
		Body:         draft.Body,
		MessageID:    messageID,
		SentAt:       sentAt,
	}
	if err := e.store.CreateOutreach(persistCtx, record); err != nil {
		// Sent but not recorded: the contact may be selected again next run
		log.Error("failed to record outreach after send", "message_id", messageID, "error", err)
	}
	if err := e.store.MarkContactContacted(persistCtx, c.Contact.ID, sentAt); err != nil {
		log.Error("failed to mark contact contacted", "error", err)
	}
	if err := e.store.UpdateLeadStatus(persistCtx, c.Lead.ID, models.LeadContacted); err != nil {
		log.Error("failed to advance lead status", "error", err)
	}

	e.audit(ctx, models.ActivityLogEntry{
		Type:      models.ActivityEmailSent,
		LeadID:    &c.Lead.ID,
		ContactID: &c.Contact.ID,
		Email:     c.Contact.Email,
		Summary:   fmt.Sprintf("Sent %q to %s at %s", draft.Subject, c.Contact.Email, c.Lead.Website),
		Status:    models.ActivitySuccess,
		CreatedAt: sentAt,
	})
	log.Info("sent outreach", "message_id", messageID, "score", c.Score)
	return true
}

func (e *Engine) skipOne(ctx context.Context, c Candidate, reason string, res *BatchResult) {
	res.Skipped++
	e.metrics.SendOutcome(OutcomeSkipped)
	e.audit(ctx, models.ActivityLogEntry{
		Type:      models.ActivityEmailSkipped,
		LeadID:    &c.Lead.ID,
		ContactID: &c.Contact.ID,
		Email:     c.Contact.Email,
		Summary:   fmt.Sprintf("Skipped %s at %s: %s", c.Contact.Email, c.Lead.Website, reason),
		Status:    models.ActivitySkipped,
	})
}

func (e *Engine) skipRest(ctx context.Context, rest []Candidate, reason string, res *BatchResult) {
	res.StopReason = reason
	for _, c := range rest {
		e.skipOne(ctx, c, reason, res)
	}
}

// excerpt truncates s to at most limit runes.
func excerpt(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
