// ABOUTME: Outreach engine wiring and collaborator interfaces
// ABOUTME: Defines Store, Generator, Transport, Clock, Sleeper, Locker and Recorder
package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrLocked is returned when another invocation holds the run lock.
	ErrLocked = errors.New("another outreach run is in progress")
	// ErrSettingsMissing is returned when the settings row does not exist.
	ErrSettingsMissing = errors.New("agent settings not found")
)

// Store is the durable state the engine reads and mutates.
type Store interface {
	GetSettings(ctx context.Context) (*models.AgentSettings, error)
	TouchHeartbeat(ctx context.Context, at time.Time) error

	ListEligibleLeads(ctx context.Context, fits []models.ICPFit, statuses []models.LeadStatus) ([]models.Lead, error)
	GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, status models.LeadStatus) error
	SetLeadHasContacts(ctx context.Context, id uuid.UUID, hasContacts bool) error

	ListContactsForLead(ctx context.Context, leadID uuid.UUID) ([]models.Contact, error)
	CountContactsForLead(ctx context.Context, leadID uuid.UUID) (int, error)
	MarkContactContacted(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteContactsByEmail(ctx context.Context, email string) ([]uuid.UUID, error)

	CreateOutreach(ctx context.Context, record *models.OutreachRecord) error
	CountOutreachSince(ctx context.Context, since time.Time) (int, error)
	ListOutreachSince(ctx context.Context, since time.Time) ([]models.OutreachRecord, error)
	ListOutreachEmails(ctx context.Context) ([]string, error)
	ListOutreachByEmail(ctx context.Context, email string) ([]models.OutreachRecord, error)
	CountDeliverableOutreach(ctx context.Context, leadID uuid.UUID) (int, error)

	RecordBounce(ctx context.Context, bounce *models.Bounce) (bool, error)
	LogActivity(ctx context.Context, entry *models.ActivityLogEntry) error
	PipelineCounts(ctx context.Context, dayStart time.Time) (*models.PipelineStatus, error)
}

// Generator produces message content for a lead/contact pair.
type Generator interface {
	Generate(ctx context.Context, req models.DraftRequest) (*models.Draft, error)
}

// Transport sends mail and exposes delivery-failure notifications.
type Transport interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
	ListFailureNotifications(ctx context.Context, lookbackDays int) ([]string, error)
	GetMessage(ctx context.Context, id string) (*models.MailMessage, error)
	Verify(ctx context.Context) (string, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock uses the system time in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Sleeper suspends the dispatch loop between sends.
type Sleeper interface {
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Locker grants an advisory lock around an invocation.
type Locker interface {
	TryLock(ctx context.Context, name string) (release func(), ok bool, err error)
}

// Recorder receives engine events for metrics.
type Recorder interface {
	SendOutcome(outcome string)
	GateDecision(reason string)
	BounceRecorded()
	LeadReverted()
	RunFinished(kind string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) SendOutcome(string)                {}
func (nopRecorder) GateDecision(string)               {}
func (nopRecorder) BounceRecorded()                   {}
func (nopRecorder) LeadReverted()                     {}
func (nopRecorder) RunFinished(string, time.Duration) {}

// Extractor pulls hard-bounced recipient addresses out of a failure notification.
type Extractor func(msg *models.MailMessage) []string

// Options configures an Engine. Zero values select production defaults.
type Options struct {
	Generator Generator
	Transport Transport
	Extractor Extractor
	Clock     Clock
	Sleeper   Sleeper
	Locker    Locker
	Recorder  Recorder
	Logger    *slog.Logger
	// Location is the sales-region clock used for send days and hours.
	Location *time.Location
	// Jitter returns the random extra delay added after each send.
	Jitter func() time.Duration
	// Sender is the verified from-address; bounces naming it are ignored.
	Sender string
}

// Engine runs the outreach cycle.
type Engine struct {
	store     Store
	generator Generator
	transport Transport
	extract   Extractor
	clock     Clock
	sleeper   Sleeper
	locker    Locker
	metrics   Recorder
	logger    *slog.Logger
	location  *time.Location
	jitter    func() time.Duration
	sender    string
}

func New(store Store, opts Options) *Engine {
	e := &Engine{
		store:     store,
		generator: opts.Generator,
		transport: opts.Transport,
		extract:   opts.Extractor,
		clock:     opts.Clock,
		sleeper:   opts.Sleeper,
		locker:    opts.Locker,
		metrics:   opts.Recorder,
		logger:    opts.Logger,
		location:  opts.Location,
		jitter:    opts.Jitter,
		sender:    models.NormalizeEmail(opts.Sender),
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.sleeper == nil {
		e.sleeper = TimerSleeper{}
	}
	if e.metrics == nil {
		e.metrics = nopRecorder{}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.location == nil {
		e.location = time.UTC
	}
	if e.jitter == nil {
		e.jitter = DefaultJitter
	}
	return e
}

// DefaultJitter returns a uniformly random delay between 30 and 120 seconds.
func DefaultJitter() time.Duration {
	return MinJitter + rand.N(MaxJitter-MinJitter+1)
}

const (
	MinJitter = 30 * time.Second
	MaxJitter = 120 * time.Second
)

type runIDKey struct{}

// withRunID tags ctx with a fresh run id unless it already carries one.
func withRunID(ctx context.Context) (context.Context, string) {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return ctx, id
	}
	id := ulid.Make().String()
	return context.WithValue(ctx, runIDKey{}, id), id
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return e.logger.With("run_id", id)
	}
	return e.logger
}

// lock takes the named lock when a Locker is configured.
func (e *Engine) lock(ctx context.Context, name string) (func(), error) {
	if e.locker == nil {
		return func() {}, nil
	}
	release, ok, err := e.locker.TryLock(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return release, nil
}

// LoadSettings reads the settings row once for an invocation.
func (e *Engine) LoadSettings(ctx context.Context) (*models.AgentSettings, error) {
	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, ErrSettingsMissing
	}
	return settings, nil
}

// Status returns a read-only pipeline snapshot.
func (e *Engine) Status(ctx context.Context) (*models.PipelineStatus, error) {
	return e.store.PipelineCounts(ctx, StartOfUTCDay(e.clock.Now()))
}

func (e *Engine) audit(ctx context.Context, entry models.ActivityLogEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = e.clock.Now()
	}
	// Audit rows are written even after the run has been cancelled
	if err := e.store.LogActivity(context.WithoutCancel(ctx), &entry); err != nil {
		e.log(ctx).Error("failed to write activity log", "type", entry.Type, "error", err)
	}
}
