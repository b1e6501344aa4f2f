package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "contacts: contact records with cached score state",
		SQL: `
CREATE TABLE contacts (
    id           INTEGER PRIMARY KEY,
    uuid         TEXT NOT NULL UNIQUE,
    name         TEXT NOT NULL,
    email        TEXT,
    score        INTEGER NOT NULL DEFAULT 0,
    status       TEXT NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'qualified', 'customer')),
    model_id     INTEGER,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);

CREATE INDEX idx_contacts_status ON contacts(status);
CREATE INDEX idx_contacts_email  ON contacts(email);
`,
	},
	{
		Version:     2,
		Description: "scoring_models: versioned scoring models with thresholds",
		SQL: `
CREATE TABLE scoring_models (
    id                  INTEGER PRIMARY KEY,
    name                TEXT NOT NULL,
    is_active           INTEGER NOT NULL DEFAULT 1,
    is_default          INTEGER NOT NULL DEFAULT 0,
    qualified_threshold INTEGER NOT NULL CHECK (qualified_threshold >= 0),
    customer_threshold  INTEGER NOT NULL CHECK (customer_threshold >= qualified_threshold),
    created_at          INTEGER NOT NULL
);

-- At most one default model across the system.
CREATE UNIQUE INDEX idx_models_default ON scoring_models(is_default) WHERE is_default = 1;
`,
	},
	{
		Version:     3,
		Description: "scoring_rules: per-model event rules with decay/cooldown/caps",
		SQL: `
CREATE TABLE scoring_rules (
    id              INTEGER PRIMARY KEY,
    model_id        INTEGER NOT NULL,
    event_type      TEXT NOT NULL,
    points          INTEGER NOT NULL CHECK (points BETWEEN -100 AND 100),
    is_active       INTEGER NOT NULL DEFAULT 1,
    decay_days      INTEGER,
    decay_points    INTEGER,
    max_occurrences INTEGER,
    cooldown_hours  INTEGER,
    conditions      TEXT NOT NULL DEFAULT '[]',
    created_at      INTEGER NOT NULL,

    FOREIGN KEY (model_id) REFERENCES scoring_models(id)
);

CREATE INDEX idx_rules_model ON scoring_rules(model_id);
CREATE INDEX idx_rules_event ON scoring_rules(model_id, event_type);
`,
	},
	{
		Version:     4,
		Description: "rule_applications: per (contact, rule) firing history",
		SQL: `
CREATE TABLE rule_applications (
    id               INTEGER PRIMARY KEY,
    contact_id       INTEGER NOT NULL,
    rule_id          INTEGER NOT NULL,
    applied_at       INTEGER NOT NULL,
    occurrence_index INTEGER NOT NULL,

    FOREIGN KEY (contact_id) REFERENCES contacts(id),
    FOREIGN KEY (rule_id)    REFERENCES scoring_rules(id),
    UNIQUE (contact_id, rule_id, occurrence_index)
);

CREATE INDEX idx_apps_contact_rule ON rule_applications(contact_id, rule_id, applied_at DESC);
`,
	},
	{
		Version:     5,
		Description: "score_history: append-only point ledger with decay staging",
		SQL: `
CREATE TABLE score_history (
    id           INTEGER PRIMARY KEY,
    contact_id   INTEGER NOT NULL,
    delta        INTEGER NOT NULL,
    reason       TEXT NOT NULL,
    rule_id      INTEGER,
    decay_of     INTEGER,
    created_at   INTEGER NOT NULL,
    decay_at     INTEGER,
    decay_points INTEGER,
    decayed      INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY (contact_id) REFERENCES contacts(id),
    FOREIGN KEY (rule_id)    REFERENCES scoring_rules(id),
    FOREIGN KEY (decay_of)   REFERENCES score_history(id)
);

CREATE INDEX idx_history_contact ON score_history(contact_id, created_at DESC);
CREATE INDEX idx_history_due     ON score_history(decay_at) WHERE decay_at IS NOT NULL AND decayed = 0;
`,
	},
	{
		Version:     6,
		Description: "seed: default scoring model and starter rules",
		SQL: `
INSERT INTO scoring_models (name, is_active, is_default, qualified_threshold, customer_threshold, created_at)
VALUES ('Default', 1, 1, 50, 100, strftime('%s', 'now') * 1000);

INSERT INTO scoring_rules (model_id, event_type, points, is_active, decay_days, decay_points, max_occurrences, cooldown_hours, conditions, created_at)
VALUES
    (1, 'MEETING_BOOKED', 30, 1, NULL, NULL, NULL, NULL,  '[]', strftime('%s', 'now') * 1000),
    (1, 'DEMO_REQUESTED', 25, 1, NULL, NULL, 3,    NULL,  '[]', strftime('%s', 'now') * 1000),
    (1, 'CALL_COMPLETED', 15, 1, NULL, NULL, NULL, 4,     '[]', strftime('%s', 'now') * 1000),
    (1, 'FORM_SUBMITTED', 10, 1, 30,   NULL, NULL, NULL,  '[]', strftime('%s', 'now') * 1000),
    (1, 'EMAIL_CLICKED',  5,  1, 14,   NULL, NULL, 24,    '[]', strftime('%s', 'now') * 1000),
    (1, 'EMAIL_OPENED',   2,  1, 14,   NULL, 50,   24,    '[]', strftime('%s', 'now') * 1000),
    (1, 'WEBSITE_VISIT',  1,  1, 7,    NULL, NULL, 24,    '[]', strftime('%s', 'now') * 1000),
    (1, 'CAMPAIGN_TOUCH', 1,  1, 30,   NULL, NULL, 168,   '[]', strftime('%s', 'now') * 1000);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
