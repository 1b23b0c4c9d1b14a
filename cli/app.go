// ABOUTME: Shared dependencies for CLI commands
// ABOUTME: Builds the engine, generator and Gmail transport from configuration
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mb2470/onsite-affiliate-sdr-agent/config"
	"github.com/mb2470/onsite-affiliate-sdr-agent/db"
	"github.com/mb2470/onsite-affiliate-sdr-agent/engine"
	"github.com/mb2470/onsite-affiliate-sdr-agent/generator"
	"github.com/mb2470/onsite-affiliate-sdr-agent/mail"
)

// lockTTL bounds how long a crashed run can hold the outreach lock. A full
// day's batch at the default pacing fits comfortably inside it.
const lockTTL = 12 * time.Hour

// App carries what every command needs.
type App struct {
	DB       *sql.DB
	Store    *db.Store
	Config   *config.Config
	Logger   *slog.Logger
	Recorder engine.Recorder
	Out      io.Writer

	// NewGenerator and NewTransport override the production collaborators.
	NewGenerator func() (engine.Generator, error)
	NewTransport func(ctx context.Context) (engine.Transport, error)
	// Sleeper overrides the pacing delay; nil uses a real timer.
	Sleeper engine.Sleeper
}

// NewApp wires an App around an open database.
func NewApp(database *sql.DB, cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &App{
		DB:     database,
		Store:  db.NewStore(database),
		Config: cfg,
		Logger: logger,
		Out:    os.Stdout,
	}
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.Out, format, args...)
}

func (a *App) println(args ...any) {
	_, _ = fmt.Fprintln(a.Out, args...)
}

func (a *App) buildGenerator() (engine.Generator, error) {
	if a.NewGenerator != nil {
		return a.NewGenerator()
	}
	if err := a.Config.RequireGenerator(); err != nil {
		return nil, err
	}
	client, err := generator.New(generator.Config{
		APIKey: a.Config.Anthropic.APIKey,
		Model:  a.Config.Anthropic.Model,
		Logger: a.Logger.With("component", "generator"),
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (a *App) buildTransport(ctx context.Context) (engine.Transport, error) {
	if a.NewTransport != nil {
		return a.NewTransport(ctx)
	}
	if err := a.Config.RequireTransport(); err != nil {
		return nil, err
	}
	creds, err := a.Config.GmailCredentials()
	if err != nil {
		return nil, err
	}
	transport, err := mail.NewGmailTransport(ctx, mail.TransportConfig{
		Credentials: creds,
		FromEmail:   a.Config.Gmail.FromEmail,
		FromName:    a.Config.Gmail.FromName,
		Logger:      a.Logger.With("component", "gmail"),
	})
	if err != nil {
		return nil, err
	}
	return transport, nil
}

// engineFor builds an engine. Collaborators a command does not need are left nil.
func (a *App) engineFor(gen engine.Generator, transport engine.Transport) (*engine.Engine, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, err
	}
	return engine.New(a.Store, engine.Options{
		Generator: gen,
		Transport: transport,
		Extractor: mail.ExtractBouncedAddresses,
		Sleeper:   a.Sleeper,
		Locker:    db.NewLeaseLocker(a.Store, lockTTL),
		Recorder:  a.Recorder,
		Logger:    a.Logger.With("component", "engine"),
		Location:  loc,
		Sender:    a.Config.Gmail.FromEmail,
	}), nil
}

// fullEngine builds an engine with generator and transport, failing before
// any work when credentials are missing.
func (a *App) fullEngine(ctx context.Context) (*engine.Engine, error) {
	gen, err := a.buildGenerator()
	if err != nil {
		return nil, err
	}
	transport, err := a.buildTransport(ctx)
	if err != nil {
		return nil, err
	}
	return a.engineFor(gen, transport)
}
