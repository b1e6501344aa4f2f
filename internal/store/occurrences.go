package store

import (
	"database/sql"
	"fmt"
)

// OccurrenceCount returns how many times a rule has fired for a
// contact. Decay reverses points, not firings, so reversed entries
// still count toward maxOccurrences.
func (db *DB) OccurrenceCount(contactID, ruleID int64) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM rule_applications WHERE contact_id = ? AND rule_id = ?
	`, contactID, ruleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count occurrences: %w", err)
	}
	return count, nil
}

// LastAppliedAt returns the time of the rule's most recent firing for
// the contact, or nil if it has never fired.
func (db *DB) LastAppliedAt(contactID, ruleID int64) (*int64, error) {
	var at int64
	err := db.QueryRow(`
		SELECT applied_at FROM rule_applications
		WHERE contact_id = ? AND rule_id = ?
		ORDER BY applied_at DESC, occurrence_index DESC
		LIMIT 1
	`, contactID, ruleID).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last applied: %w", err)
	}
	return &at, nil
}
