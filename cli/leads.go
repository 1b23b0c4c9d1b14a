// ABOUTME: Lead and contact CLI commands
// ABOUTME: Adds and lists the records the outreach engine selects from
package cli

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/mb2470/onsite-affiliate-sdr-agent/db"
	"github.com/mb2470/onsite-affiliate-sdr-agent/engine"
	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// LeadCommand routes lead add|list.
func LeadCommand(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: sdr lead add|list [flags]")
	}
	switch args[0] {
	case "add":
		return addLead(ctx, app, args[1:])
	case "list":
		return listLeads(ctx, app, args[1:])
	default:
		return fmt.Errorf("unknown lead command: %s", args[0])
	}
}

// ContactCommand routes contact add|list.
func ContactCommand(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: sdr contact add|list [flags]")
	}
	switch args[0] {
	case "add":
		return addContact(ctx, app, args[1:])
	case "list":
		return listContacts(ctx, app, args[1:])
	default:
		return fmt.Errorf("unknown contact command: %s", args[0])
	}
}

func addLead(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("lead add", flag.ContinueOnError)
	website := fs.String("website", "", "Company website (required)")
	industry := fs.String("industry", "", "Industry")
	notes := fs.String("notes", "", "Research notes")
	fit := fs.String("fit", "HIGH", "ICP fit: HIGH, MEDIUM or LOW")
	status := fs.String("status", string(models.LeadEnriched), "Lead status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *website == "" {
		return fmt.Errorf("--website is required")
	}
	icp, err := models.ParseICPFit(*fit)
	if err != nil {
		return err
	}
	st, err := models.ParseLeadStatus(*status)
	if err != nil {
		return err
	}

	lead := &models.Lead{
		Website:       models.NormalizeWebsite(*website),
		Industry:      *industry,
		ResearchNotes: *notes,
		ICPFit:        icp,
		Status:        st,
	}
	if err := app.Store.CreateLead(ctx, lead); err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}

	app.printf("✓ Lead created: %s (ID: %s)\n", lead.Website, lead.ID)
	app.printf("  Fit: %s  Status: %s\n", lead.ICPFit, lead.Status)
	return nil
}

func listLeads(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("lead list", flag.ContinueOnError)
	status := fs.String("status", "", "Filter by status")
	fit := fs.String("fit", "", "Filter by ICP fit")
	search := fs.String("search", "", "Filter websites containing this term")
	limit := fs.Int("limit", 50, "Maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := db.LeadFilter{Search: *search, Limit: *limit}
	if *status != "" {
		st, err := models.ParseLeadStatus(*status)
		if err != nil {
			return err
		}
		filter.Status = st
	}
	if *fit != "" {
		icp, err := models.ParseICPFit(*fit)
		if err != nil {
			return err
		}
		filter.ICPFit = icp
	}

	leads, err := app.Store.FindLeads(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list leads: %w", err)
	}
	if len(leads) == 0 {
		app.println("No leads found")
		return nil
	}

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WEBSITE\tFIT\tSTATUS\tCONTACTS\tID")
	_, _ = fmt.Fprintln(w, "-------\t---\t------\t--------\t--")
	for _, l := range leads {
		contacts := "no"
		if l.HasContacts {
			contacts = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.Website, l.ICPFit, l.Status, contacts, l.ID.String()[:8])
	}
	_ = w.Flush()

	app.printf("\nTotal: %d lead(s)\n", len(leads))
	return nil
}

// resolveLead accepts a lead id or website.
func resolveLead(ctx context.Context, app *App, ref string) (*models.Lead, error) {
	if id, err := uuid.Parse(ref); err == nil {
		lead, err := app.Store.GetLead(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load lead: %w", err)
		}
		if lead == nil {
			return nil, fmt.Errorf("lead not found: %s", ref)
		}
		return lead, nil
	}

	website := models.NormalizeWebsite(ref)
	leads, err := app.Store.FindLeads(ctx, db.LeadFilter{Search: website, Limit: 100})
	if err != nil {
		return nil, fmt.Errorf("failed to look up lead: %w", err)
	}
	for i := range leads {
		if models.NormalizeWebsite(leads[i].Website) == website {
			return &leads[i], nil
		}
	}
	return nil, fmt.Errorf("lead not found: %s", ref)
}

func addContact(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("contact add", flag.ContinueOnError)
	leadRef := fs.String("lead", "", "Lead ID or website (required)")
	email := fs.String("email", "", "Email address (required)")
	first := fs.String("first", "", "First name")
	last := fs.String("last", "", "Last name")
	title := fs.String("title", "", "Job title")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *leadRef == "" || *email == "" {
		return fmt.Errorf("--lead and --email are required")
	}

	lead, err := resolveLead(ctx, app, *leadRef)
	if err != nil {
		return err
	}

	existing, err := app.Store.GetContactByEmail(ctx, *email)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate contact: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("contact %s already exists", existing.Email)
	}

	contact := &models.Contact{
		LeadID:     lead.ID,
		Email:      *email,
		FirstName:  *first,
		LastName:   *last,
		Title:      *title,
		MatchScore: engine.Score(*title),
	}
	if *first != "" || *last != "" {
		contact.FullName = joinName(*first, *last)
	}
	if err := app.Store.CreateContact(ctx, contact); err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}

	app.printf("✓ Contact created: %s (ID: %s)\n", contact.Email, contact.ID)
	app.printf("  Lead: %s  Score: %d\n", lead.Website, contact.MatchScore)
	return nil
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

func listContacts(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("contact list", flag.ContinueOnError)
	leadRef := fs.String("lead", "", "Only contacts of this lead (ID or website)")
	limit := fs.Int("limit", 50, "Maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var contacts []models.Contact
	if *leadRef != "" {
		lead, err := resolveLead(ctx, app, *leadRef)
		if err != nil {
			return err
		}
		contacts, err = app.Store.ListContactsForLead(ctx, lead.ID)
		if err != nil {
			return fmt.Errorf("failed to list contacts: %w", err)
		}
	} else {
		var err error
		contacts, err = app.Store.ListContacts(ctx, *limit)
		if err != nil {
			return fmt.Errorf("failed to list contacts: %w", err)
		}
	}

	if len(contacts) == 0 {
		app.println("No contacts found")
		return nil
	}

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EMAIL\tNAME\tTITLE\tSCORE\tCONTACTED")
	_, _ = fmt.Fprintln(w, "-----\t----\t-----\t-----\t---------")
	for _, c := range contacts {
		contacted := "-"
		if c.ContactedAt != nil {
			contacted = c.ContactedAt.Local().Format("2006-01-02")
		}
		name := c.FullName
		if name == "" {
			name = "-"
		}
		title := c.Title
		if title == "" {
			title = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", c.Email, name, title, c.MatchScore, contacted)
	}
	_ = w.Flush()

	app.printf("\nTotal: %d contact(s)\n", len(contacts))
	return nil
}
