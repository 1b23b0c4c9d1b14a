// ABOUTME: Tests for CLI commands
// ABOUTME: Drives commands against a temporary database with fake generator and transport
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mb2470/onsite-affiliate-sdr-agent/config"
	"github.com/mb2470/onsite-affiliate-sdr-agent/db"
	"github.com/mb2470/onsite-affiliate-sdr-agent/engine"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, req models.DraftRequest) (*models.Draft, error) {
	return &models.Draft{Subject: "Hi " + req.FirstName, Body: "About " + req.Website}, nil
}

type stubTransport struct {
	sent     []string
	notices  map[string]*models.MailMessage
	verifyAs string
}

func (t *stubTransport) Send(ctx context.Context, to, subject, body string) (string, error) {
	t.sent = append(t.sent, to)
	return fmt.Sprintf("m%d", len(t.sent)), nil
}

func (t *stubTransport) ListFailureNotifications(ctx context.Context, lookbackDays int) ([]string, error) {
	var ids []string
	for id := range t.notices {
		ids = append(ids, id)
	}
	return ids, nil
}

func (t *stubTransport) GetMessage(ctx context.Context, id string) (*models.MailMessage, error) {
	if msg, ok := t.notices[id]; ok {
		return msg, nil
	}
	return nil, errors.New("not found")
}

func (t *stubTransport) Verify(ctx context.Context) (string, error) {
	return t.verifyAs, nil
}

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func setupApp(t *testing.T) (*App, *bytes.Buffer, *stubTransport) {
	t.Helper()
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "sdr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	cfg := config.Default()
	cfg.Gmail.FromEmail = "sam@onsite.test"

	out := &bytes.Buffer{}
	transport := &stubTransport{notices: map[string]*models.MailMessage{}, verifyAs: "sam@onsite.test"}

	app := NewApp(database, cfg, nil)
	app.Out = out
	app.Sleeper = &recordingSleeper{}
	app.NewGenerator = func() (engine.Generator, error) { return stubGenerator{}, nil }
	app.NewTransport = func(ctx context.Context) (engine.Transport, error) { return transport, nil }
	return app, out, transport
}

// openAllWeek enables sending around the clock so tests do not depend on wall time.
func openAllWeek(t *testing.T, app *App) {
	t.Helper()
	require.NoError(t, SettingsCommand(context.Background(), app, []string{
		"set", "-enabled", "-auto-send", "-max-per-day=5",
		"-hours-start=0", "-hours-end=24", "-days=sun,mon,tue,wed,thu,fri,sat", "-min-gap=0",
	}))
}

func TestLeadAndContactCommands(t *testing.T) {
	app, out, _ := setupApp(t)
	ctx := context.Background()

	require.NoError(t, LeadCommand(ctx, app, []string{"add", "-website", "https://www.Acme.com/", "-fit", "high", "-notes", "Sells shoes"}))
	assert.Contains(t, out.String(), "✓ Lead created: acme.com")

	require.NoError(t, ContactCommand(ctx, app, []string{"add", "-lead", "acme.com", "-email", "Dana@Acme.com", "-first", "Dana", "-title", "VP Marketing"}))
	assert.Contains(t, out.String(), "Score: 100")

	err := ContactCommand(ctx, app, []string{"add", "-lead", "acme.com", "-email", "dana@acme.com"})
	assert.ErrorContains(t, err, "already exists")

	err = ContactCommand(ctx, app, []string{"add", "-lead", "nowhere.com", "-email", "x@nowhere.com"})
	assert.ErrorContains(t, err, "lead not found")

	out.Reset()
	require.NoError(t, LeadCommand(ctx, app, []string{"list", "-fit", "HIGH"}))
	assert.Contains(t, out.String(), "acme.com")
	assert.Contains(t, out.String(), "Total: 1 lead(s)")

	out.Reset()
	require.NoError(t, ContactCommand(ctx, app, []string{"list", "-lead", "acme.com"}))
	assert.Contains(t, out.String(), "dana@acme.com")
	assert.Contains(t, out.String(), "100")

	stored, err := app.Store.GetContactByEmail(ctx, "dana@acme.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 100, stored.MatchScore)

	assert.Error(t, LeadCommand(ctx, app, []string{"add"}))
	assert.Error(t, LeadCommand(ctx, app, []string{"archive"}))
}

func TestSettingsCommand(t *testing.T) {
	app, out, _ := setupApp(t)
	ctx := context.Background()

	require.NoError(t, SettingsCommand(ctx, app, []string{"set", "-enabled", "-fits", "HIGH,medium", "-per-lead=2"}))
	assert.Contains(t, out.String(), "✓ Settings updated")
	assert.Contains(t, out.String(), "HIGH, MEDIUM")

	s, err := app.Store.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, s.Enabled)
	assert.False(t, s.AutoSend)
	assert.Equal(t, 2, s.MaxContactsPerLeadPerDay)
	assert.Equal(t, 50, s.MaxEmailsPerDay)

	err = SettingsCommand(ctx, app, []string{"set", "-hours-start=20"})
	assert.Error(t, err)

	s, err = app.Store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, s.SendHoursStart)
}

func TestAutoCommandSends(t *testing.T) {
	app, out, transport := setupApp(t)
	ctx := context.Background()
	openAllWeek(t, app)

	require.NoError(t, LeadCommand(ctx, app, []string{"add", "-website", "acme.com"}))
	require.NoError(t, ContactCommand(ctx, app, []string{"add", "-lead", "acme.com", "-email", "cmo@acme.com", "-title", "CMO"}))

	out.Reset()
	require.NoError(t, AutoCommand(ctx, app, nil))
	assert.Equal(t, []string{"cmo@acme.com"}, transport.sent)
	assert.Contains(t, out.String(), "Sent: 1  Failed: 0  Skipped: 0")
	assert.Contains(t, out.String(), "Remaining budget: 4")

	// Second run finds nobody left to email
	out.Reset()
	require.NoError(t, AutoCommand(ctx, app, nil))
	assert.Len(t, transport.sent, 1)
	assert.Contains(t, out.String(), "Sent: 0")
}

func TestAutoCommandPausedSendsNothing(t *testing.T) {
	app, out, transport := setupApp(t)
	ctx := context.Background()

	require.NoError(t, AutoCommand(ctx, app, []string{"-json"}))
	assert.Empty(t, transport.sent)
	assert.Contains(t, out.String(), `"reason": "`+engine.ReasonPaused+`"`)
}

func TestAutoCommandRequiresCredentials(t *testing.T) {
	app, _, transport := setupApp(t)
	app.NewGenerator = nil

	err := AutoCommand(context.Background(), app, nil)
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Empty(t, transport.sent)
}

func TestSendBatchCommand(t *testing.T) {
	app, out, transport := setupApp(t)
	ctx := context.Background()
	openAllWeek(t, app)

	for _, site := range []string{"a.com", "b.com", "c.com"} {
		require.NoError(t, LeadCommand(ctx, app, []string{"add", "-website", site}))
		require.NoError(t, ContactCommand(ctx, app, []string{"add", "-lead", site, "-email", "ceo@" + site, "-title", "CEO"}))
	}

	assert.Error(t, SendBatchCommand(ctx, app, nil))
	assert.Error(t, SendBatchCommand(ctx, app, []string{"zero"}))
	assert.Error(t, SendBatchCommand(ctx, app, []string{"0"}))

	out.Reset()
	require.NoError(t, SendBatchCommand(ctx, app, []string{"2"}))
	assert.Len(t, transport.sent, 2)
	assert.Contains(t, out.String(), "Sent: 2")

	sleeper := app.Sleeper.(*recordingSleeper)
	require.Len(t, sleeper.delays, 1, "pacing runs between sends only")
	assert.Greater(t, sleeper.delays[0], 25*time.Second)
}

func TestCheckBouncesCommand(t *testing.T) {
	app, out, transport := setupApp(t)
	ctx := context.Background()

	require.NoError(t, LeadCommand(ctx, app, []string{"add", "-website", "acme.com"}))
	require.NoError(t, ContactCommand(ctx, app, []string{"add", "-lead", "acme.com", "-email", "gone@acme.com"}))
	transport.notices["n1"] = &models.MailMessage{
		ID:      "n1",
		Headers: map[string]string{},
		Body:    "Your message wasn't delivered to gone@acme.com because the address couldn't be found.",
	}

	out.Reset()
	require.NoError(t, CheckBouncesCommand(ctx, app, nil))
	assert.Contains(t, out.String(), "gone@acme.com bounced")

	contact, err := app.Store.GetContactByEmail(ctx, "gone@acme.com")
	require.NoError(t, err)
	assert.Nil(t, contact)

	out.Reset()
	require.NoError(t, CheckBouncesCommand(ctx, app, nil))
	assert.Contains(t, out.String(), "No new bounces")
}

func TestStatusCommand(t *testing.T) {
	app, out, _ := setupApp(t)
	ctx := context.Background()
	require.NoError(t, LeadCommand(ctx, app, []string{"add", "-website", "acme.com"}))

	require.NoError(t, StatusCommand(ctx, app, nil))
	assert.Contains(t, out.String(), "Outreach Agent")
	assert.Contains(t, out.String(), "closed: "+engine.ReasonPaused)
	assert.Contains(t, out.String(), "Pipeline")

	out.Reset()
	require.NoError(t, StatusCommand(ctx, app, []string{"-json"}))
	assert.Contains(t, out.String(), `"total_leads": 1`)
}

func TestVerifyGmailCommand(t *testing.T) {
	app, out, transport := setupApp(t)
	transport.verifyAs = "other@onsite.test"

	require.NoError(t, VerifyGmailCommand(context.Background(), app, nil))
	assert.Contains(t, out.String(), "✓ Connected as other@onsite.test")
	assert.Contains(t, out.String(), "GMAIL_FROM_EMAIL is sam@onsite.test")
}

func TestAuthCommandRequiresClient(t *testing.T) {
	app, _, _ := setupApp(t)
	err := AuthCommand(context.Background(), app, []string{"-no-browser"})
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
}

func TestNewMCPServer(t *testing.T) {
	app, _, _ := setupApp(t)
	server, err := NewMCPServer(app)
	require.NoError(t, err)
	assert.NotNil(t, server)
}

func TestScheduledRunToleratesLock(t *testing.T) {
	app, _, transport := setupApp(t)
	ctx := context.Background()
	openAllWeek(t, app)
	require.NoError(t, LeadCommand(ctx, app, []string{"add", "-website", "acme.com"}))
	require.NoError(t, ContactCommand(ctx, app, []string{"add", "-lead", "acme.com", "-email", "cmo@acme.com"}))

	release, ok, err := db.NewLeaseLocker(app.Store, lockTTL).TryLock(ctx, engine.LockName)
	require.NoError(t, err)
	require.True(t, ok)

	eng, err := app.fullEngine(ctx)
	require.NoError(t, err)

	app.scheduledRun(ctx, eng)
	assert.Empty(t, transport.sent)

	release()
	app.scheduledRun(ctx, eng)
	assert.Equal(t, []string{"cmo@acme.com"}, transport.sent)
}

func TestUnlockClearsStaleRunLock(t *testing.T) {
	app, out, transport := setupApp(t)
	ctx := context.Background()
	openAllWeek(t, app)
	require.NoError(t, LeadCommand(ctx, app, []string{"add", "-website", "acme.com"}))
	require.NoError(t, ContactCommand(ctx, app, []string{"add", "-lead", "acme.com", "-email", "cmo@acme.com"}))

	out.Reset()
	require.NoError(t, UnlockCommand(ctx, app, nil))
	assert.Contains(t, out.String(), "No run lock held")

	// A crashed run never calls its release func
	_, ok, err := db.NewLeaseLocker(app.Store, lockTTL).TryLock(ctx, engine.LockName)
	require.NoError(t, err)
	require.True(t, ok)

	err = AutoCommand(ctx, app, nil)
	require.ErrorIs(t, err, engine.ErrLocked)
	assert.Contains(t, err.Error(), "sdr unlock")
	assert.Empty(t, transport.sent)

	out.Reset()
	require.NoError(t, UnlockCommand(ctx, app, nil))
	assert.Contains(t, out.String(), "✓ Released stale run lock")

	require.NoError(t, AutoCommand(ctx, app, nil))
	assert.Equal(t, []string{"cmo@acme.com"}, transport.sent)
}

func TestGraphCommand(t *testing.T) {
	app, out, _ := setupApp(t)
	ctx := context.Background()
	require.NoError(t, LeadCommand(ctx, app, []string{"add", "-website", "acme.com"}))

	out.Reset()
	require.NoError(t, GraphCommand(ctx, app, nil))
	assert.Contains(t, out.String(), "enriched (1)")

	assert.Error(t, GraphCommand(ctx, app, []string{"-format", "gif"}))
}

func TestWatchCommandRejectsShortInterval(t *testing.T) {
	app, _, _ := setupApp(t)
	assert.Error(t, WatchCommand(context.Background(), app, []string{"-interval", "10ms"}))
}
