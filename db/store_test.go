// ABOUTME: Tests for the outreach Store
// ABOUTME: Covers settings, lead eligibility, ledger counts, bounces and the lease lock
package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := OpenDatabase(filepath.Join(t.TempDir(), "sdr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewStore(database)
}

func addLead(t *testing.T, s *Store, website string, fit models.ICPFit, status models.LeadStatus, created time.Time) *models.Lead {
	t.Helper()
	lead := &models.Lead{Website: website, ICPFit: fit, Status: status, CreatedAt: created}
	require.NoError(t, s.CreateLead(context.Background(), lead))
	return lead
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.False(t, settings.Enabled)
	assert.Equal(t, 50, settings.MaxEmailsPerDay)
	assert.Equal(t, []models.ICPFit{models.ICPHigh}, settings.AllowedICPFits)
	assert.Equal(t, models.DefaultSettings().SendDays, settings.SendDays)
	assert.Nil(t, settings.LastHeartbeat)

	settings.Enabled = true
	settings.MaxEmailsPerDay = 5
	settings.AllowedICPFits = []models.ICPFit{models.ICPHigh, models.ICPMedium}
	settings.SendDays = models.Weekdays{time.Saturday}
	require.NoError(t, s.SaveSettings(ctx, settings))

	beat := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	require.NoError(t, s.TouchHeartbeat(ctx, beat))

	reloaded, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, reloaded.Enabled)
	assert.Equal(t, 5, reloaded.MaxEmailsPerDay)
	assert.Equal(t, []models.ICPFit{models.ICPHigh, models.ICPMedium}, reloaded.AllowedICPFits)
	assert.Equal(t, models.Weekdays{time.Saturday}, reloaded.SendDays)
	require.NotNil(t, reloaded.LastHeartbeat)
	assert.True(t, beat.Equal(*reloaded.LastHeartbeat))
}

func TestSaveSettingsRejectsInvalid(t *testing.T) {
	s := setupStore(t)
	settings := models.DefaultSettings()
	settings.SendHoursStart = 18

	err := s.SaveSettings(context.Background(), &settings)
	assert.Error(t, err)
}

func TestListEligibleLeads(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	newer := addLead(t, s, "newer.com", models.ICPHigh, models.LeadEnriched, base.Add(2*time.Hour))
	older := addLead(t, s, "older.com", models.ICPHigh, models.LeadContacted, base)
	low := addLead(t, s, "low.com", models.ICPLow, models.LeadEnriched, base)
	fresh := addLead(t, s, "fresh.com", models.ICPHigh, models.LeadNew, base)
	bare := addLead(t, s, "bare.com", models.ICPHigh, models.LeadEnriched, base)

	for i, lead := range []*models.Lead{newer, older, low, fresh} {
		require.NoError(t, s.CreateContact(ctx, &models.Contact{
			LeadID: lead.ID,
			Email:  lead.Website + "@example.com",
			Title:  "CMO",
		}), "contact %d", i)
	}
	_ = bare

	leads, err := s.ListEligibleLeads(ctx,
		[]models.ICPFit{models.ICPHigh},
		[]models.LeadStatus{models.LeadEnriched, models.LeadContacted})
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, older.ID, leads[0].ID, "oldest lead first")
	assert.Equal(t, newer.ID, leads[1].ID)
	assert.True(t, leads[0].HasContacts)

	none, err := s.ListEligibleLeads(ctx, nil, []models.LeadStatus{models.LeadEnriched})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindLeads(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	addLead(t, s, "acme.com", models.ICPHigh, models.LeadEnriched, base)
	addLead(t, s, "acme-outdoor.com", models.ICPMedium, models.LeadContacted, base.Add(time.Hour))
	addLead(t, s, "globex.com", models.ICPHigh, models.LeadNew, base.Add(2*time.Hour))

	all, err := s.FindLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "globex.com", all[0].Website, "newest first")

	acme, err := s.FindLeads(ctx, LeadFilter{Search: "ACME"})
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	high, err := s.FindLeads(ctx, LeadFilter{ICPFit: models.ICPHigh, Status: models.LeadEnriched})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "acme.com", high[0].Website)

	limited, err := s.ListLeads(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestContactsNormalizeAndDelete(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	lead := addLead(t, s, "acme.com", models.ICPHigh, models.LeadEnriched, time.Time{})

	contact := &models.Contact{LeadID: lead.ID, Email: "  Sam@Example.COM ", FirstName: "Sam", MatchScore: 95}
	require.NoError(t, s.CreateContact(ctx, contact))
	assert.Equal(t, "sam@example.com", contact.Email)

	dup := &models.Contact{LeadID: lead.ID, Email: "sam@example.com"}
	assert.Error(t, s.CreateContact(ctx, dup), "email is the natural key")

	found, err := s.GetContactByEmail(ctx, "SAM@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 95, found.MatchScore)
	assert.Nil(t, found.ContactedAt)

	sentAt := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkContactContacted(ctx, contact.ID, sentAt))
	found, err = s.GetContactByEmail(ctx, "sam@example.com")
	require.NoError(t, err)
	require.NotNil(t, found.ContactedAt)
	assert.True(t, sentAt.Equal(*found.ContactedAt))

	leadIDs, err := s.DeleteContactsByEmail(ctx, "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, lead.ID, leadIDs[0])

	remaining, err := s.CountContactsForLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	missing, err := s.GetContactByEmail(ctx, "sam@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOutreachLedgerCounts(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	lead := addLead(t, s, "acme.com", models.ICPHigh, models.LeadContacted, time.Time{})
	dayStart := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	records := []models.OutreachRecord{
		{LeadID: lead.ID, Website: "acme.com", ContactEmail: "old@acme.com", SentAt: dayStart.Add(-time.Minute)},
		{LeadID: lead.ID, Website: "acme.com", ContactEmail: "Sam@acme.com", SentAt: dayStart.Add(9 * time.Hour)},
		{LeadID: lead.ID, Website: "acme.com", ContactEmail: "kim@acme.com", SentAt: dayStart.Add(10*time.Hour + 500*time.Millisecond)},
	}
	for i := range records {
		records[i].Subject = "Hello"
		records[i].Body = "Body"
		require.NoError(t, s.CreateOutreach(ctx, &records[i]))
	}

	count, err := s.CountOutreachSince(ctx, dayStart)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	today, err := s.ListOutreachSince(ctx, dayStart)
	require.NoError(t, err)
	require.Len(t, today, 2)
	assert.Equal(t, "sam@acme.com", today[0].ContactEmail)

	emails, err := s.ListOutreachEmails(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old@acme.com", "sam@acme.com", "kim@acme.com"}, emails)

	byEmail, err := s.ListOutreachByEmail(ctx, "SAM@acme.com")
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)

	deliverable, err := s.CountDeliverableOutreach(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, deliverable)

	isNew, err := s.RecordBounce(ctx, &models.Bounce{Email: "sam@acme.com"})
	require.NoError(t, err)
	assert.True(t, isNew)

	again, err := s.RecordBounce(ctx, &models.Bounce{Email: "SAM@acme.com"})
	require.NoError(t, err)
	assert.False(t, again, "recording a bounce is idempotent")

	deliverable, err = s.CountDeliverableOutreach(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, deliverable)

	bounced, err := s.IsBounced(ctx, "sam@acme.com")
	require.NoError(t, err)
	assert.True(t, bounced)

	status, err := s.PipelineCounts(ctx, dayStart)
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalLeads)
	assert.Equal(t, 1, status.LeadsByStatus[models.LeadContacted])
	assert.Equal(t, 3, status.OutreachTotal)
	assert.Equal(t, 2, status.OutreachToday)
	assert.Equal(t, 1, status.BouncesTotal)
}

func TestActivityLog(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	lead := addLead(t, s, "acme.com", models.ICPHigh, models.LeadEnriched, time.Time{})

	require.NoError(t, s.LogActivity(ctx, &models.ActivityLogEntry{
		Type: models.ActivityEmailSent, LeadID: &lead.ID, Email: "sam@acme.com",
		Summary: "sent", Status: models.ActivitySuccess,
	}))
	require.NoError(t, s.LogActivity(ctx, &models.ActivityLogEntry{
		Type: models.ActivityRunCompleted, Summary: "done", Status: models.ActivitySuccess,
	}))

	all, err := s.ListActivity(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sent, err := s.ListActivity(ctx, models.ActivityEmailSent, 10)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].LeadID)
	assert.Equal(t, lead.ID, *sent[0].LeadID)
	assert.Nil(t, sent[0].ContactID)
}

func TestLeaseLocker(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	now := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	locker := NewLeaseLocker(s, time.Minute)
	locker.now = func() time.Time { return now }

	release, ok, err := locker.TryLock(ctx, "dispatch")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "dispatch")
	require.NoError(t, err)
	assert.False(t, ok, "lease is held")

	_, ok, err = locker.TryLock(ctx, "reconcile")
	require.NoError(t, err)
	assert.True(t, ok, "names are independent")

	release()
	release2, ok, err := locker.TryLock(ctx, "dispatch")
	require.NoError(t, err)
	assert.True(t, ok, "released lease can be taken")
	_ = release2

	// An expired lease is taken over
	now = now.Add(2 * time.Minute)
	_, ok, err = locker.TryLock(ctx, "dispatch")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseLockerForceRelease(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	locker := NewLeaseLocker(s, time.Hour)

	released, err := locker.ForceRelease(ctx, "dispatch")
	require.NoError(t, err)
	assert.False(t, released, "nothing held")

	// Owner never releases, as after a crash
	_, ok, err := locker.TryLock(ctx, "dispatch")
	require.NoError(t, err)
	require.True(t, ok)

	released, err = locker.ForceRelease(ctx, "dispatch")
	require.NoError(t, err)
	assert.True(t, released)

	_, ok, err = locker.TryLock(ctx, "dispatch")
	require.NoError(t, err)
	assert.True(t, ok, "lease is free again before its TTL")
}
