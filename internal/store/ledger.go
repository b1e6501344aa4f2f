package store

import (
	"database/sql"
	"fmt"
)

// HistoryEntry is one row of the append-only score ledger. A contact's
// current score is the signed sum of its entries; decay reversals are
// new negative entries referencing the original via DecayOf, never an
// in-place mutation.
type HistoryEntry struct {
	ID          int64
	ContactID   int64
	Delta       int
	Reason      string
	RuleID      *int64
	DecayOf     *int64
	CreatedAt   int64
	DecayAt     *int64
	DecayPoints *int
	Decayed     bool
}

const millisPerDay = 24 * 60 * 60 * 1000

// ApplyRule records a successful rule firing for a contact: the next
// occurrence record, the ledger entry (with decay staging when the rule
// decays), and the cached score update, all in one transaction. Either
// everything lands or nothing does.
func (db *DB) ApplyRule(contactID int64, rule *ScoringRule, at int64) (*HistoryEntry, int, error) {
	entry := &HistoryEntry{
		ContactID: contactID,
		Delta:     rule.Points,
		Reason:    rule.EventType,
		RuleID:    &rule.ID,
		CreatedAt: at,
	}
	if rule.DecayDays != nil {
		decayAt := at + int64(*rule.DecayDays)*millisPerDay
		entry.DecayAt = &decayAt
		// Unset decayPoints means the full grant is reversed.
		points := rule.Points
		if rule.DecayPoints != nil {
			points = *rule.DecayPoints
		}
		entry.DecayPoints = &points
	}

	var newScore int
	err := db.inTx(func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`
			SELECT COUNT(*) FROM rule_applications WHERE contact_id = ? AND rule_id = ?
		`, contactID, rule.ID).Scan(&count); err != nil {
			return fmt.Errorf("count applications: %w", err)
		}

		if _, err := tx.Exec(`
			INSERT INTO rule_applications (contact_id, rule_id, applied_at, occurrence_index)
			VALUES (?, ?, ?, ?)
		`, contactID, rule.ID, at, count+1); err != nil {
			return fmt.Errorf("record application: %w", err)
		}

		result, err := tx.Exec(`
			INSERT INTO score_history (contact_id, delta, reason, rule_id, created_at, decay_at, decay_points)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, contactID, entry.Delta, entry.Reason, rule.ID, at,
			nullableInt64(entry.DecayAt), nullableInt(entry.DecayPoints))
		if err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
		entry.ID, _ = result.LastInsertId()

		return bumpScore(tx, contactID, entry.Delta, at, &newScore)
	})
	if err != nil {
		return nil, 0, err
	}
	return entry, newScore, nil
}

// AppendAdjustment records a manual score adjustment with no rule
// reference and updates the cached score in the same transaction.
func (db *DB) AppendAdjustment(contactID int64, points int, reason string, at int64) (*HistoryEntry, int, error) {
	entry := &HistoryEntry{
		ContactID: contactID,
		Delta:     points,
		Reason:    reason,
		CreatedAt: at,
	}

	var newScore int
	err := db.inTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO score_history (contact_id, delta, reason, created_at)
			VALUES (?, ?, ?, ?)
		`, contactID, points, reason, at)
		if err != nil {
			return fmt.Errorf("append adjustment: %w", err)
		}
		entry.ID, _ = result.LastInsertId()

		return bumpScore(tx, contactID, points, at, &newScore)
	})
	if err != nil {
		return nil, 0, err
	}
	return entry, newScore, nil
}

// History returns a contact's ledger entries, most recent first.
func (db *DB) History(contactID int64, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, contact_id, delta, reason, rule_id, decay_of, created_at, decay_at, decay_points, decayed
		FROM score_history
		WHERE contact_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, contactID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// DueDecayEntries returns ledger entries whose decay window has elapsed
// and that have not been reversed yet, oldest first.
func (db *DB) DueDecayEntries(now int64, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(`
		SELECT id, contact_id, delta, reason, rule_id, decay_of, created_at, decay_at, decay_points, decayed
		FROM score_history
		WHERE decay_at IS NOT NULL AND decay_at <= ? AND decayed = 0
		ORDER BY decay_at, id
		LIMIT ?
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due decay: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ApplyDecayEntry reverses one due ledger entry: marks it decayed,
// appends the offsetting entry referencing it, and updates the cached
// score, all in one transaction. The decayed flag is checked-and-set
// under the transaction, so reprocessing the same entry is a no-op and
// the second return is false.
func (db *DB) ApplyDecayEntry(entryID, at int64) (int, bool, error) {
	var newScore int
	applied := false

	err := db.inTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE score_history SET decayed = 1 WHERE id = ? AND decayed = 0
		`, entryID)
		if err != nil {
			return fmt.Errorf("mark decayed: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil // already reversed by another pass
		}

		var contactID int64
		var delta int
		var ruleID sql.NullInt64
		var decayPoints sql.NullInt64
		if err := tx.QueryRow(`
			SELECT contact_id, delta, rule_id, decay_points FROM score_history WHERE id = ?
		`, entryID).Scan(&contactID, &delta, &ruleID, &decayPoints); err != nil {
			return fmt.Errorf("load decay entry: %w", err)
		}

		amount := delta
		if decayPoints.Valid {
			amount = int(decayPoints.Int64)
		}

		if _, err := tx.Exec(`
			INSERT INTO score_history (contact_id, delta, reason, rule_id, decay_of, created_at)
			VALUES (?, ?, 'decay', ?, ?, ?)
		`, contactID, -amount, ruleID, entryID, at); err != nil {
			return fmt.Errorf("append reversal: %w", err)
		}

		applied = true
		return bumpScore(tx, contactID, -amount, at, &newScore)
	})
	if err != nil {
		return 0, false, err
	}
	return newScore, applied, nil
}

// LedgerSum returns the signed sum of all ledger entries for a contact.
// The cached contacts.score must always equal this.
func (db *DB) LedgerSum(contactID int64) (int, error) {
	var sum int
	err := db.QueryRow(`
		SELECT COALESCE(SUM(delta), 0) FROM score_history WHERE contact_id = ?
	`, contactID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return sum, nil
}

func bumpScore(tx *sql.Tx, contactID int64, delta int, at int64, newScore *int) error {
	if _, err := tx.Exec(`
		UPDATE contacts SET score = score + ?, updated_at = ? WHERE id = ?
	`, delta, at, contactID); err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	if err := tx.QueryRow(`SELECT score FROM contacts WHERE id = ?`, contactID).Scan(newScore); err != nil {
		return fmt.Errorf("read score: %w", err)
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var ruleID, decayOf, decayAt, decayPoints sql.NullInt64
		var decayed int
		if err := rows.Scan(&e.ID, &e.ContactID, &e.Delta, &e.Reason,
			&ruleID, &decayOf, &e.CreatedAt, &decayAt, &decayPoints, &decayed); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if ruleID.Valid {
			e.RuleID = &ruleID.Int64
		}
		if decayOf.Valid {
			e.DecayOf = &decayOf.Int64
		}
		if decayAt.Valid {
			e.DecayAt = &decayAt.Int64
		}
		e.DecayPoints = intPtr(decayPoints)
		e.Decayed = decayed != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullableInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
