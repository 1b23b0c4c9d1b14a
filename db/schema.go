// ABOUTME: Database schema definitions
// ABOUTME: Creates the settings, lead, contact, outreach ledger, audit and lock tables
package db

import (
	"database/sql"
	"fmt"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_settings (
	id TEXT PRIMARY KEY,
	enabled INTEGER NOT NULL DEFAULT 0,
	auto_send INTEGER NOT NULL DEFAULT 0,
	max_emails_per_day INTEGER NOT NULL DEFAULT 50,
	send_hours_start INTEGER NOT NULL DEFAULT 9,
	send_hours_end INTEGER NOT NULL DEFAULT 17,
	send_days TEXT NOT NULL DEFAULT 'mon,tue,wed,thu,fri',
	min_minutes_between_sends INTEGER NOT NULL DEFAULT 15,
	allowed_icp_fits TEXT NOT NULL DEFAULT 'HIGH',
	min_match_score INTEGER NOT NULL DEFAULT 0,
	max_contacts_per_lead_per_day INTEGER NOT NULL DEFAULT 1,
	last_heartbeat DATETIME,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	website TEXT NOT NULL,
	industry TEXT NOT NULL DEFAULT '',
	research_notes TEXT NOT NULL DEFAULT '',
	icp_fit TEXT NOT NULL CHECK(icp_fit IN ('HIGH', 'MEDIUM', 'LOW')),
	has_contacts INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'new'
		CHECK(status IN ('new', 'enriching', 'enriched', 'no_contacts', 'contacted', 'processed')),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);

CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	lead_id TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	full_name TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	match_score INTEGER NOT NULL DEFAULT 0,
	contacted_at DATETIME,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (lead_id) REFERENCES leads(id)
);

CREATE INDEX IF NOT EXISTS idx_contacts_lead_id ON contacts(lead_id);

CREATE TABLE IF NOT EXISTS outreach_records (
	id TEXT PRIMARY KEY,
	lead_id TEXT NOT NULL,
	website TEXT NOT NULL,
	contact_email TEXT NOT NULL,
	contact_name TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL,
	body TEXT NOT NULL,
	message_id TEXT NOT NULL DEFAULT '',
	sent_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outreach_contact_email ON outreach_records(contact_email);
CREATE INDEX IF NOT EXISTS idx_outreach_sent_at ON outreach_records(sent_at);
CREATE INDEX IF NOT EXISTS idx_outreach_lead_id ON outreach_records(lead_id);

CREATE TABLE IF NOT EXISTS activity_log (
	id TEXT PRIMARY KEY,
	activity_type TEXT NOT NULL,
	lead_id TEXT,
	contact_id TEXT,
	email TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('success', 'failed', 'skipped')),
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activity_created_at ON activity_log(created_at);
CREATE INDEX IF NOT EXISTS idx_activity_type ON activity_log(activity_type);

CREATE TABLE IF NOT EXISTS bounces (
	email TEXT PRIMARY KEY,
	message_id TEXT NOT NULL DEFAULT '',
	detected_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduler_lock (
	name TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	expires_at DATETIME NOT NULL
);
`

func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	// Seed the settings row paused so a fresh install never sends
	if _, err := db.Exec(`INSERT OR IGNORE INTO agent_settings (id) VALUES (?)`, models.SettingsID); err != nil {
		return fmt.Errorf("failed to seed agent settings: %w", err)
	}

	return nil
}
