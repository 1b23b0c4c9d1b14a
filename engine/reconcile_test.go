package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mb2470/onsite-affiliate-sdr-agent/db"
	"github.com/mb2470/onsite-affiliate-sdr-agent/mail"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileRevertsLeadWithSingleBouncedSend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.addLead(t, "acme.com", models.ICPHigh, monday9am.Add(-48*time.Hour), "sam@example.com|CMO")
	h.recordSend(t, lead, "sam@example.com", monday9am.Add(-24*time.Hour))
	require.NoError(t, h.store.UpdateLeadStatus(ctx, lead.ID, models.LeadContacted))
	h.transport.messages["n1"] = bounceNotice("Your message wasn't delivered to sam@example.com because the address couldn't be found.")

	removed, err := h.engine.ReconcileBounces(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"sam@example.com"}, removed)

	got, err := h.store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadEnriched, got.Status)
	assert.False(t, got.HasContacts, "last contact was removed")

	contact, err := h.store.GetContactByEmail(ctx, "sam@example.com")
	require.NoError(t, err)
	assert.Nil(t, contact)

	reverted, err := h.store.ListActivity(ctx, models.ActivityLeadReverted, 10)
	require.NoError(t, err)
	assert.Len(t, reverted, 1)
	bounced, err := h.store.ListActivity(ctx, models.ActivityEmailBounced, 10)
	require.NoError(t, err)
	assert.Len(t, bounced, 1)
}

func TestReconcileKeepsLeadWithOtherDeliveredSend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.addLead(t, "acme.com", models.ICPHigh, monday9am.Add(-48*time.Hour),
		"bad@acme.com|CMO", "good@acme.com|CEO")
	h.recordSend(t, lead, "bad@acme.com", monday9am.Add(-24*time.Hour))
	h.recordSend(t, lead, "good@acme.com", monday9am.Add(-23*time.Hour))
	require.NoError(t, h.store.UpdateLeadStatus(ctx, lead.ID, models.LeadContacted))
	h.transport.messages["n1"] = &models.MailMessage{
		Headers: map[string]string{"x-failed-recipients": "Bad@acme.com"},
	}

	removed, err := h.engine.ReconcileBounces(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"bad@acme.com"}, removed)

	got, err := h.store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadContacted, got.Status)
	assert.True(t, got.HasContacts)
}

func TestReconcileRevertsWhenEverySendBounced(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.addLead(t, "acme.com", models.ICPHigh, monday9am.Add(-48*time.Hour),
		"one@acme.com|CMO", "two@acme.com|CEO")
	h.recordSend(t, lead, "one@acme.com", monday9am.Add(-24*time.Hour))
	h.recordSend(t, lead, "two@acme.com", monday9am.Add(-23*time.Hour))
	require.NoError(t, h.store.UpdateLeadStatus(ctx, lead.ID, models.LeadContacted))

	// Bounces arrive on separate runs
	h.transport.messages["n1"] = bounceNotice("wasn't delivered to one@acme.com")
	_, err := h.engine.ReconcileBounces(ctx, 7)
	require.NoError(t, err)
	got, err := h.store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadContacted, got.Status)

	h.transport.messages["n2"] = bounceNotice("wasn't delivered to two@acme.com")
	removed, err := h.engine.ReconcileBounces(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"two@acme.com"}, removed, "known bounce is not reported again")

	got, err = h.store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadEnriched, got.Status)
}

func TestReconcileIsIdempotentAndIgnoresSender(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.addLead(t, "acme.com", models.ICPHigh, monday9am.Add(-48*time.Hour), "sam@example.com|CMO")
	h.recordSend(t, lead, "sam@example.com", monday9am.Add(-24*time.Hour))
	h.transport.messages["n1"] = bounceNotice(
		"Your message wasn't delivered to sam@example.com\nrejected: sam@onsite.test")

	removed, err := h.engine.ReconcileBounces(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"sam@example.com"}, removed)

	removed, err = h.engine.ReconcileBounces(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, removed)

	bounced, err := h.store.ListActivity(ctx, models.ActivityEmailBounced, 10)
	require.NoError(t, err)
	assert.Len(t, bounced, 1)
}

func TestReconcileSkipsUnreadableNotifications(t *testing.T) {
	h := newHarness(t)
	h.transport.extraIDs = []string{"gone"}

	removed, err := h.engine.ReconcileBounces(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestBouncedLeadIsSelectableWithAnotherContact(t *testing.T) {
	h := newHarness(t)
	settings := h.enable(t, nil)
	ctx := context.Background()
	h.addLead(t, "acme.com", models.ICPHigh, monday9am.Add(-48*time.Hour),
		"cmo@acme.com|CMO", "ceo@acme.com|CEO")

	res, err := h.engine.RunBatch(ctx, settings, 1)
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)

	h.transport.messages["n1"] = bounceNotice("wasn't delivered to cmo@acme.com")
	_, err = h.engine.ReconcileBounces(ctx, 7)
	require.NoError(t, err)

	// Next day the reverted lead gets its next-best contact
	h.clock.Advance(24 * time.Hour)
	res, err = h.engine.RunBatch(ctx, settings, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, []string{"cmo@acme.com", "ceo@acme.com"}, h.transport.sent)
}

// flakyStore fails GetLead a fixed number of times before delegating.
type flakyStore struct {
	*db.Store
	getLeadFailures int
}

func (s *flakyStore) GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	if s.getLeadFailures > 0 {
		s.getLeadFailures--
		return nil, errors.New("database is locked")
	}
	return s.Store.GetLead(ctx, id)
}

func TestReconcileFinishesRollbackAfterFailedRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.addLead(t, "acme.com", models.ICPHigh, monday9am.Add(-48*time.Hour), "sam@example.com|CMO")
	h.recordSend(t, lead, "sam@example.com", monday9am.Add(-24*time.Hour))
	require.NoError(t, h.store.UpdateLeadStatus(ctx, lead.ID, models.LeadContacted))
	h.transport.messages["n1"] = bounceNotice("Your message wasn't delivered to sam@example.com because the address couldn't be found.")

	flaky := &flakyStore{Store: h.store, getLeadFailures: 1}
	eng := New(flaky, Options{
		Generator: h.generator,
		Transport: h.transport,
		Extractor: mail.ExtractBouncedAddresses,
		Clock:     h.clock,
		Sleeper:   h.sleeper,
		Location:  est,
		Sender:    "sam@onsite.test",
	})

	_, err := eng.ReconcileBounces(ctx, 7)
	require.Error(t, err)

	// The bounce row is already stored but the lead was never settled
	got, err := h.store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadContacted, got.Status)

	removed, err := eng.ReconcileBounces(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"sam@example.com"}, removed)

	got, err = h.store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadEnriched, got.Status)
	assert.False(t, got.HasContacts)

	// Settled leads make later runs a no-op
	removed, err = eng.ReconcileBounces(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, removed)
	bounced, err := h.store.ListActivity(ctx, models.ActivityEmailBounced, 10)
	require.NoError(t, err)
	assert.Len(t, bounced, 1)
}
