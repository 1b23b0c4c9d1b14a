// ABOUTME: Candidate selector choosing the next lead/contact pairs
// ABOUTME: Applies fit, status, per-lead daily cap and the all-time emailed set
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// Candidate is a lead paired with the contact to email.
type Candidate struct {
	Lead    models.Lead
	Contact models.Contact
	Score   int
}

// selectableStatuses allows a second contact at an already-contacted company.
var selectableStatuses = []models.LeadStatus{models.LeadEnriched, models.LeadContacted}

// emailedSet is the all-time set of addresses that received outreach.
type emailedSet map[string]bool

func (s emailedSet) has(email string) bool { return s[models.NormalizeEmail(email)] }
func (s emailedSet) add(email string)      { s[models.NormalizeEmail(email)] = true }

// ledgerView is the slice of the outreach ledger the selector needs.
type ledgerView struct {
	emailed    emailedSet
	sentToday  map[string]int
	dayStarted time.Time
}

func (e *Engine) loadLedger(ctx context.Context, now time.Time) (*ledgerView, error) {
	emails, err := e.store.ListOutreachEmails(ctx)
	if err != nil {
		return nil, err
	}
	view := &ledgerView{
		emailed:    make(emailedSet, len(emails)),
		sentToday:  make(map[string]int),
		dayStarted: StartOfUTCDay(now),
	}
	for _, email := range emails {
		view.emailed.add(email)
	}

	today, err := e.store.ListOutreachSince(ctx, view.dayStarted)
	if err != nil {
		return nil, err
	}
	for _, r := range today {
		view.sentToday[models.NormalizeWebsite(r.Website)]++
	}
	return view, nil
}

// SelectCandidates returns at most maxCount pairs, one per lead, oldest lead
// first. It only reads.
func (e *Engine) SelectCandidates(ctx context.Context, settings *models.AgentSettings, maxCount int) ([]Candidate, error) {
	view, err := e.loadLedger(ctx, e.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to load outreach ledger: %w", err)
	}
	return e.selectCandidates(ctx, settings, view, maxCount)
}

func (e *Engine) selectCandidates(ctx context.Context, settings *models.AgentSettings, view *ledgerView, maxCount int) ([]Candidate, error) {
	if maxCount <= 0 {
		return nil, nil
	}

	leads, err := e.store.ListEligibleLeads(ctx, settings.AllowedICPFits, selectableStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible leads: %w", err)
	}

	perLeadCap := settings.MaxContactsPerLeadPerDay
	if perLeadCap < 1 {
		perLeadCap = 1
	}

	// Counts for this selection only; the ledger view stays untouched
	sentToday := make(map[string]int, len(view.sentToday))
	for site, n := range view.sentToday {
		sentToday[site] = n
	}
	picked := make(emailedSet)

	var candidates []Candidate
	for _, lead := range leads {
		if len(candidates) >= maxCount {
			break
		}
		site := models.NormalizeWebsite(lead.Website)
		if sentToday[site] >= perLeadCap {
			continue
		}

		contacts, err := e.store.ListContactsForLead(ctx, lead.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list contacts for lead %s: %w", lead.ID, err)
		}

		contact, score, ok := pickContact(contacts, settings.MinMatchScore, func(email string) bool {
			return view.emailed.has(email) || picked.has(email)
		})
		if !ok {
			continue
		}

		picked.add(contact.Email)
		sentToday[site]++
		candidates = append(candidates, Candidate{Lead: lead, Contact: contact, Score: score})
	}
	return candidates, nil
}

// pickContact scores the pool and returns the best contact not yet emailed.
// Ties keep retrieval order.
func pickContact(contacts []models.Contact, minScore int, emailed func(string) bool) (models.Contact, int, bool) {
	type scored struct {
		contact models.Contact
		score   int
	}
	pool := make([]scored, len(contacts))
	for i, c := range contacts {
		pool[i] = scored{contact: c, score: Score(c.Title)}
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].score > pool[j].score })

	for _, p := range pool {
		if p.contact.Email == "" || p.score < minScore || emailed(p.contact.Email) {
			continue
		}
		return p.contact, p.score, true
	}
	return models.Contact{}, 0, false
}
