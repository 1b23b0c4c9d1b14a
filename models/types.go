// ABOUTME: Data models for the outreach pipeline
// ABOUTME: Defines AgentSettings, Lead, Contact, OutreachRecord, ActivityLogEntry and bounce types
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SettingsID is the fixed primary key of the single agent_settings row.
const SettingsID = "00000000-0000-0000-0000-000000000001"

type ICPFit string

const (
	ICPHigh   ICPFit = "HIGH"
	ICPMedium ICPFit = "MEDIUM"
	ICPLow    ICPFit = "LOW"
)

// ParseICPFit accepts any casing of HIGH, MEDIUM or LOW.
func ParseICPFit(s string) (ICPFit, error) {
	switch ICPFit(strings.ToUpper(strings.TrimSpace(s))) {
	case ICPHigh:
		return ICPHigh, nil
	case ICPMedium:
		return ICPMedium, nil
	case ICPLow:
		return ICPLow, nil
	}
	return "", fmt.Errorf("invalid icp fit %q (expected HIGH, MEDIUM or LOW)", s)
}

type LeadStatus string

const (
	LeadNew        LeadStatus = "new"
	LeadEnriching  LeadStatus = "enriching"
	LeadEnriched   LeadStatus = "enriched"
	LeadNoContacts LeadStatus = "no_contacts"
	LeadContacted  LeadStatus = "contacted"
	LeadProcessed  LeadStatus = "processed"
)

// ParseLeadStatus validates a lead status string.
func ParseLeadStatus(s string) (LeadStatus, error) {
	status := LeadStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case LeadNew, LeadEnriching, LeadEnriched, LeadNoContacts, LeadContacted, LeadProcessed:
		return status, nil
	}
	return "", fmt.Errorf("invalid lead status %q", s)
}

// Activity types written to the audit log.
const (
	ActivityEmailSent        = "email_sent"
	ActivityEmailFailed      = "email_failed"
	ActivityGenerationFailed = "generation_failed"
	ActivityEmailSkipped     = "email_skipped"
	ActivityEmailBounced     = "email_bounced"
	ActivityLeadReverted     = "lead_reverted"
	ActivityRunCompleted     = "run_completed"
	ActivityRunSkipped       = "run_skipped"
)

// Activity statuses.
const (
	ActivitySuccess = "success"
	ActivityFailed  = "failed"
	ActivitySkipped = "skipped"
)

type AgentSettings struct {
	Enabled                  bool       `json:"enabled"`
	AutoSend                 bool       `json:"auto_send"`
	MaxEmailsPerDay          int        `json:"max_emails_per_day"`
	SendHoursStart           int        `json:"send_hours_start"`
	SendHoursEnd             int        `json:"send_hours_end"`
	SendDays                 Weekdays   `json:"send_days"`
	MinMinutesBetweenSends   int        `json:"min_minutes_between_sends"`
	AllowedICPFits           []ICPFit   `json:"allowed_icp_fits"`
	MinMatchScore            int        `json:"min_match_score"`
	MaxContactsPerLeadPerDay int        `json:"max_contacts_per_lead_per_day"`
	LastHeartbeat            *time.Time `json:"last_heartbeat,omitempty"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// DefaultSettings mirrors the seeded settings row. The agent starts paused.
func DefaultSettings() AgentSettings {
	return AgentSettings{
		Enabled:                  false,
		AutoSend:                 false,
		MaxEmailsPerDay:          50,
		SendHoursStart:           9,
		SendHoursEnd:             17,
		SendDays:                 Weekdays{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		MinMinutesBetweenSends:   15,
		AllowedICPFits:           []ICPFit{ICPHigh},
		MinMatchScore:            0,
		MaxContactsPerLeadPerDay: 1,
	}
}

// Validate reports settings that would make the engine misbehave.
func (s *AgentSettings) Validate() error {
	var problems []string
	if s.MaxEmailsPerDay < 0 {
		problems = append(problems, "max_emails_per_day must not be negative")
	}
	if s.SendHoursStart < 0 || s.SendHoursStart > 23 {
		problems = append(problems, "send_hours_start must be within 0-23")
	}
	if s.SendHoursEnd < 0 || s.SendHoursEnd > 24 {
		problems = append(problems, "send_hours_end must be within 0-24")
	}
	if s.SendHoursStart >= s.SendHoursEnd {
		problems = append(problems, "send_hours_start must be before send_hours_end")
	}
	if s.MinMinutesBetweenSends < 0 {
		problems = append(problems, "min_minutes_between_sends must not be negative")
	}
	if s.MaxContactsPerLeadPerDay < 0 {
		problems = append(problems, "max_contacts_per_lead_per_day must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid agent settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

// AllowsFit reports whether leads with the given fit may be contacted.
func (s *AgentSettings) AllowsFit(fit ICPFit) bool {
	for _, f := range s.AllowedICPFits {
		if f == fit {
			return true
		}
	}
	return false
}

// Weekdays is a set of days, persisted as a comma-separated list ("mon,tue").
type Weekdays []time.Weekday

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWeekdays parses "mon,tue,wed" or full names ("Monday"). Empty input yields an empty set.
func ParseWeekdays(s string) (Weekdays, error) {
	var days Weekdays
	seen := make(map[time.Weekday]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if len(part) > 3 {
			part = part[:3]
		}
		day, ok := weekdayNames[part]
		if !ok {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

// Contains reports whether day is in the set.
func (w Weekdays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == day {
			return true
		}
	}
	return false
}

func (w Weekdays) String() string {
	parts := make([]string, len(w))
	for i, d := range w {
		parts[i] = strings.ToLower(d.String()[:3])
	}
	return strings.Join(parts, ",")
}

type Lead struct {
	ID            uuid.UUID  `json:"id"`
	Website       string     `json:"website"`
	Industry      string     `json:"industry,omitempty"`
	ResearchNotes string     `json:"research_notes,omitempty"`
	ICPFit        ICPFit     `json:"icp_fit"`
	HasContacts   bool       `json:"has_contacts"`
	Status        LeadStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Contact struct {
	ID          uuid.UUID  `json:"id"`
	LeadID      uuid.UUID  `json:"lead_id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	FullName    string     `json:"full_name,omitempty"`
	Title       string     `json:"title,omitempty"`
	MatchScore  int        `json:"match_score"`
	ContactedAt *time.Time `json:"contacted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// GreetingName returns the first name used to address the contact.
func (c *Contact) GreetingName() string {
	if c.FirstName != "" {
		return c.FirstName
	}
	if fields := strings.Fields(c.FullName); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

type OutreachRecord struct {
	ID           uuid.UUID `json:"id"`
	LeadID       uuid.UUID `json:"lead_id"`
	Website      string    `json:"website"`
	ContactEmail string    `json:"contact_email"`
	ContactName  string    `json:"contact_name,omitempty"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	MessageID    string    `json:"message_id,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

type ActivityLogEntry struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"activity_type"`
	LeadID    *uuid.UUID `json:"lead_id,omitempty"`
	ContactID *uuid.UUID `json:"contact_id,omitempty"`
	Email     string     `json:"email,omitempty"`
	Summary   string     `json:"summary"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

type Bounce struct {
	Email      string    `json:"email"`
	MessageID  string    `json:"message_id,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// MailMessage is a transport message reduced to what bounce parsing needs.
// Header names are lower-cased.
type MailMessage struct {
	ID      string
	Headers map[string]string
	Body    string
}

// PipelineStatus is a read-only snapshot of pipeline counts.
type PipelineStatus struct {
	LeadsByStatus map[LeadStatus]int `json:"leads_by_status"`
	TotalLeads    int                `json:"total_leads"`
	TotalContacts int                `json:"total_contacts"`
	OutreachTotal int                `json:"outreach_total"`
	OutreachToday int                `json:"outreach_today"`
	BouncesTotal  int                `json:"bounces_total"`
}

// NormalizeEmail lower-cases and trims an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeWebsite strips scheme, "www." and any path so websites group consistently.
func NormalizeWebsite(website string) string {
	w := strings.ToLower(strings.TrimSpace(website))
	w = strings.TrimPrefix(w, "https://")
	w = strings.TrimPrefix(w, "http://")
	w = strings.TrimPrefix(w, "www.")
	if i := strings.IndexAny(w, "/?#"); i >= 0 {
		w = w[:i]
	}
	return w
}

// DraftRequest is the lead context handed to the content generator.
type DraftRequest struct {
	Website         string `json:"website"`
	Industry        string `json:"industry,omitempty"`
	ResearchExcerpt string `json:"research_excerpt,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
}

// Draft is a generated outreach message.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
