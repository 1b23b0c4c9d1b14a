// ABOUTME: Bounce reconciler rolling back state for undeliverable addresses
// ABOUTME: Deletes bounced contacts and reverts leads left without a deliverable send
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// ReconcileBounces scans failure notifications from the last lookbackDays and
// returns the addresses whose bounce changed stored state.
func (e *Engine) ReconcileBounces(ctx context.Context, lookbackDays int) ([]string, error) {
	ctx, _ = withRunID(ctx)
	log := e.log(ctx)

	if e.transport == nil {
		return nil, fmt.Errorf("bounce reconciliation requires a transport")
	}
	if e.extract == nil {
		return nil, fmt.Errorf("bounce reconciliation requires an extractor")
	}

	ids, err := e.transport.ListFailureNotifications(ctx, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to list failure notifications: %w", err)
	}
	log.Info("found failure notifications", "count", len(ids), "lookback_days", lookbackDays)

	var (
		addresses []string
		sourceMsg = make(map[string]string)
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := e.transport.GetMessage(ctx, id)
		if err != nil {
			log.Warn("failed to read failure notification", "message_id", id, "error", err)
			continue
		}
		for _, addr := range e.extract(msg) {
			addr = models.NormalizeEmail(addr)
			if addr == "" || addr == e.sender {
				continue
			}
			if _, seen := sourceMsg[addr]; seen {
				continue
			}
			sourceMsg[addr] = id
			addresses = append(addresses, addr)
		}
	}

	var (
		removed []string
		errs    []error
	)
	for _, addr := range addresses {
		changed, err := e.applyBounce(ctx, addr, sourceMsg[addr])
		if err != nil {
			log.Error("failed to apply bounce", "email", addr, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		if changed {
			removed = append(removed, addr)
		}
	}
	return removed, errors.Join(errs...)
}

// applyBounce deletes the bounced contact and settles every lead touched by
// the address. Leads are settled on every sighting, not only the first, so a
// run that failed part way is completed by the next one. It reports whether
// any stored state changed.
func (e *Engine) applyBounce(ctx context.Context, email, messageID string) (bool, error) {
	log := e.log(ctx).With("email", email)

	contactLeads, err := e.store.DeleteContactsByEmail(ctx, email)
	if err != nil {
		return false, err
	}

	// The bounce row must exist before settling: deliverable counts exclude it.
	isNew, err := e.store.RecordBounce(ctx, &models.Bounce{
		Email:      email,
		MessageID:  messageID,
		DetectedAt: e.clock.Now(),
	})
	if err != nil {
		return false, err
	}
	if isNew {
		e.metrics.BounceRecorded()
	}

	records, err := e.store.ListOutreachByEmail(ctx, email)
	if err != nil {
		return false, err
	}

	var leadIDs []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, id := range contactLeads {
		if !seen[id] {
			seen[id] = true
			leadIDs = append(leadIDs, id)
		}
	}
	for _, r := range records {
		if !seen[r.LeadID] {
			seen[r.LeadID] = true
			leadIDs = append(leadIDs, r.LeadID)
		}
	}

	settled := 0
	for _, leadID := range leadIDs {
		changed, err := e.settleLead(ctx, leadID, email)
		if err != nil {
			return false, err
		}
		if changed {
			settled++
		}
	}

	if !isNew && len(contactLeads) == 0 && settled == 0 {
		return false, nil
	}

	e.audit(ctx, models.ActivityLogEntry{
		Type:    models.ActivityEmailBounced,
		Email:   email,
		Summary: fmt.Sprintf("Bounced: %s, removed from contacts", email),
		Status:  models.ActivityFailed,
	})
	log.Info("reconciled bounce", "contacts_removed", len(contactLeads), "outreach_records", len(records), "leads_settled", settled)
	return true, nil
}

// settleLead clears hasContacts when the lead has none left and reverts it
// to enriched when no send reached a deliverable address.
func (e *Engine) settleLead(ctx context.Context, leadID uuid.UUID, email string) (bool, error) {
	lead, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		return false, err
	}
	if lead == nil {
		return false, nil
	}

	changed := false
	if lead.HasContacts {
		left, err := e.store.CountContactsForLead(ctx, leadID)
		if err != nil {
			return false, err
		}
		if left == 0 {
			if err := e.store.SetLeadHasContacts(ctx, leadID, false); err != nil {
				return false, err
			}
			changed = true
		}
	}

	reverted, err := e.revertIfUndelivered(ctx, lead, email)
	if err != nil {
		return false, err
	}
	return changed || reverted, nil
}

// revertIfUndelivered moves a contacted lead back to enriched when none of
// its sends reached a deliverable address.
func (e *Engine) revertIfUndelivered(ctx context.Context, lead *models.Lead, email string) (bool, error) {
	if lead.Status != models.LeadContacted {
		return false, nil
	}

	deliverable, err := e.store.CountDeliverableOutreach(ctx, lead.ID)
	if err != nil {
		return false, err
	}
	if deliverable > 0 {
		return false, nil
	}

	if err := e.store.UpdateLeadStatus(ctx, lead.ID, models.LeadEnriched); err != nil {
		return false, err
	}
	leadID := lead.ID
	e.metrics.LeadReverted()
	e.audit(ctx, models.ActivityLogEntry{
		Type:    models.ActivityLeadReverted,
		LeadID:  &leadID,
		Email:   email,
		Summary: fmt.Sprintf("Reset %s to enriched after bounce from %s", lead.Website, email),
		Status:  models.ActivitySuccess,
	})
	e.log(ctx).Info("reverted lead", "lead_id", lead.ID, "website", lead.Website)
	return true, nil
}
