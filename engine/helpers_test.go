package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mb2470/onsite-affiliate-sdr-agent/db"
	"github.com/mb2470/onsite-affiliate-sdr-agent/mail"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
	"github.com/stretchr/testify/require"
)

// est is a fixed-offset stand-in for America/New_York in winter.
var est = time.FixedZone("EST", -5*60*60)

// monday9am is 09:00 EST on Monday 2024-01-15.
var monday9am = time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSleeper advances the clock instead of blocking.
type fakeSleeper struct {
	clock  *fakeClock
	waits  []time.Duration
	cancel context.CancelFunc
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	if s.cancel != nil {
		s.cancel()
		return ctx.Err()
	}
	s.clock.Advance(d)
	return nil
}

type fakeGenerator struct {
	failFor map[string]bool
	calls   []models.DraftRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req models.DraftRequest) (*models.Draft, error) {
	g.calls = append(g.calls, req)
	if g.failFor[req.Website] {
		return nil, errors.New("model overloaded")
	}
	return &models.Draft{Subject: "Idea for " + req.Website, Body: "Hi " + req.FirstName}, nil
}

type fakeTransport struct {
	clock    *fakeClock
	failFor  map[string]bool
	sent     []string
	sentAt   []time.Time
	messages map[string]*models.MailMessage
	extraIDs []string
	sender   string
}

func (t *fakeTransport) Send(ctx context.Context, to, subject, body string) (string, error) {
	if t.failFor[to] {
		return "", errors.New("smtp 550")
	}
	t.sent = append(t.sent, to)
	if t.clock != nil {
		t.sentAt = append(t.sentAt, t.clock.Now())
	}
	return fmt.Sprintf("msg-%d", len(t.sent)), nil
}

func (t *fakeTransport) ListFailureNotifications(ctx context.Context, lookbackDays int) ([]string, error) {
	ids := append([]string{}, t.extraIDs...)
	for id := range t.messages {
		ids = append(ids, id)
	}
	return ids, nil
}

func (t *fakeTransport) GetMessage(ctx context.Context, id string) (*models.MailMessage, error) {
	msg, ok := t.messages[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return msg, nil
}

func (t *fakeTransport) Verify(ctx context.Context) (string, error) {
	return t.sender, nil
}

func bounceNotice(body string) *models.MailMessage {
	return &models.MailMessage{Headers: map[string]string{}, Body: body}
}

type harness struct {
	store     *db.Store
	engine    *Engine
	clock     *fakeClock
	sleeper   *fakeSleeper
	generator *fakeGenerator
	transport *fakeTransport
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "sdr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	h := &harness{
		store:     db.NewStore(database),
		clock:     &fakeClock{now: monday9am},
		generator: &fakeGenerator{failFor: map[string]bool{}},
	}
	h.sleeper = &fakeSleeper{clock: h.clock}
	h.transport = &fakeTransport{clock: h.clock, failFor: map[string]bool{}, messages: map[string]*models.MailMessage{}}
	h.engine = New(h.store, Options{
		Generator: h.generator,
		Transport: h.transport,
		Extractor: mail.ExtractBouncedAddresses,
		Clock:     h.clock,
		Sleeper:   h.sleeper,
		Location:  est,
		Jitter:    func() time.Duration { return 45 * time.Second },
		Sender:    "sam@onsite.test",
	})
	return h
}

// enable saves settings matching the documented scenario and lets modify adjust them.
func (h *harness) enable(t *testing.T, modify func(s *models.AgentSettings)) *models.AgentSettings {
	t.Helper()
	s := models.DefaultSettings()
	s.Enabled = true
	s.AutoSend = true
	s.MaxEmailsPerDay = 5
	if modify != nil {
		modify(&s)
	}
	require.NoError(t, h.store.SaveSettings(context.Background(), &s))
	loaded, err := h.store.GetSettings(context.Background())
	require.NoError(t, err)
	return loaded
}

// addLead creates a lead whose contacts are given as "email|title" pairs.
func (h *harness) addLead(t *testing.T, website string, fit models.ICPFit, created time.Time, contacts ...string) *models.Lead {
	t.Helper()
	ctx := context.Background()
	lead := &models.Lead{Website: website, ICPFit: fit, Status: models.LeadEnriched, CreatedAt: created}
	require.NoError(t, h.store.CreateLead(ctx, lead))
	for i, spec := range contacts {
		parts := strings.SplitN(spec, "|", 2)
		c := &models.Contact{
			LeadID:    lead.ID,
			Email:     parts[0],
			FirstName: strings.Split(parts[0], "@")[0],
			CreatedAt: created.Add(time.Duration(i) * time.Second),
		}
		if len(parts) == 2 {
			c.Title = parts[1]
		}
		require.NoError(t, h.store.CreateContact(ctx, c))
	}
	lead.HasContacts = len(contacts) > 0
	return lead
}

func (h *harness) recordSend(t *testing.T, lead *models.Lead, email string, at time.Time) {
	t.Helper()
	require.NoError(t, h.store.CreateOutreach(context.Background(), &models.OutreachRecord{
		LeadID: lead.ID, Website: lead.Website, ContactEmail: email,
		Subject: "earlier", Body: "earlier", SentAt: at,
	}))
}
