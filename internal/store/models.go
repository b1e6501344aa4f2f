package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ScoringModel groups scoring rules under a pair of status thresholds.
// At most one model is the system default at any time.
type ScoringModel struct {
	ID                 int64
	Name               string
	IsActive           bool
	IsDefault          bool
	QualifiedThreshold int
	CustomerThreshold  int
	CreatedAt          int64
}

// ScoringRule awards (or deducts) points when a matching business event
// arrives. Conditions is a JSON array of {field, operator, value}
// predicates, all of which must hold for the rule to fire.
type ScoringRule struct {
	ID             int64
	ModelID        int64
	EventType      string
	Points         int
	IsActive       bool
	DecayDays      *int
	DecayPoints    *int
	MaxOccurrences *int
	CooldownHours  *int
	Conditions     string // JSON, parsed by the engine
	CreatedAt      int64
}

// CreateModel inserts a scoring model. When isDefault is set, the prior
// default (if any) is un-defaulted in the same transaction.
func (db *DB) CreateModel(name string, isDefault bool, qualifiedThreshold, customerThreshold int) (*ScoringModel, error) {
	now := time.Now().UnixMilli()
	m := &ScoringModel{
		Name:               name,
		IsActive:           true,
		IsDefault:          isDefault,
		QualifiedThreshold: qualifiedThreshold,
		CustomerThreshold:  customerThreshold,
		CreatedAt:          now,
	}

	err := db.inTx(func(tx *sql.Tx) error {
		if isDefault {
			if _, err := tx.Exec(`UPDATE scoring_models SET is_default = 0 WHERE is_default = 1`); err != nil {
				return fmt.Errorf("clear prior default: %w", err)
			}
		}
		result, err := tx.Exec(`
			INSERT INTO scoring_models (name, is_active, is_default, qualified_threshold, customer_threshold, created_at)
			VALUES (?, 1, ?, ?, ?, ?)
		`, name, boolInt(isDefault), qualifiedThreshold, customerThreshold, now)
		if err != nil {
			return fmt.Errorf("create model: %w", err)
		}
		m.ID, _ = result.LastInsertId()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SetDefaultModel makes the given model the system default, atomically
// un-defaulting the prior holder.
func (db *DB) SetDefaultModel(modelID int64) error {
	return db.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE scoring_models SET is_default = 0 WHERE is_default = 1`); err != nil {
			return fmt.Errorf("clear prior default: %w", err)
		}
		result, err := tx.Exec(`UPDATE scoring_models SET is_default = 1 WHERE id = ?`, modelID)
		if err != nil {
			return fmt.Errorf("set default: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("model %d not found", modelID)
		}
		return nil
	})
}

// GetModel returns the model with the given id, or nil if absent.
func (db *DB) GetModel(id int64) (*ScoringModel, error) {
	return scanModel(db.QueryRow(`
		SELECT id, name, is_active, is_default, qualified_threshold, customer_threshold, created_at
		FROM scoring_models WHERE id = ?
	`, id))
}

// DefaultModel returns the model flagged default, or nil if none is.
func (db *DB) DefaultModel() (*ScoringModel, error) {
	return scanModel(db.QueryRow(`
		SELECT id, name, is_active, is_default, qualified_threshold, customer_threshold, created_at
		FROM scoring_models WHERE is_default = 1
	`))
}

// ListModels returns all models, newest first.
func (db *DB) ListModels() ([]ScoringModel, error) {
	rows, err := db.Query(`
		SELECT id, name, is_active, is_default, qualified_threshold, customer_threshold, created_at
		FROM scoring_models ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var models []ScoringModel
	for rows.Next() {
		var m ScoringModel
		var active, def int
		if err := rows.Scan(&m.ID, &m.Name, &active, &def, &m.QualifiedThreshold, &m.CustomerThreshold, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		m.IsActive = active != 0
		m.IsDefault = def != 0
		models = append(models, m)
	}
	return models, rows.Err()
}

func scanModel(row *sql.Row) (*ScoringModel, error) {
	var m ScoringModel
	var active, def int
	err := row.Scan(&m.ID, &m.Name, &active, &def, &m.QualifiedThreshold, &m.CustomerThreshold, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan model: %w", err)
	}
	m.IsActive = active != 0
	m.IsDefault = def != 0
	return &m, nil
}

// CreateRule inserts a scoring rule under the given model.
func (db *DB) CreateRule(r *ScoringRule) error {
	now := time.Now().UnixMilli()
	if r.Conditions == "" {
		r.Conditions = "[]"
	}

	result, err := db.Exec(`
		INSERT INTO scoring_rules (model_id, event_type, points, is_active, decay_days, decay_points,
			max_occurrences, cooldown_hours, conditions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ModelID, r.EventType, r.Points, boolInt(r.IsActive),
		nullableInt(r.DecayDays), nullableInt(r.DecayPoints),
		nullableInt(r.MaxOccurrences), nullableInt(r.CooldownHours),
		r.Conditions, now)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}

	r.ID, _ = result.LastInsertId()
	r.CreatedAt = now
	return nil
}

// SetRuleActive toggles a rule. Deactivating stops new applications but
// leaves past point contributions and their staged decay untouched.
func (db *DB) SetRuleActive(ruleID int64, active bool) error {
	result, err := db.Exec(`UPDATE scoring_rules SET is_active = ? WHERE id = ?`, boolInt(active), ruleID)
	if err != nil {
		return fmt.Errorf("set rule active: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %d not found", ruleID)
	}
	return nil
}

// ModelSnapshot is a point-in-time consistent view of a model and all
// its rules, read in a single transaction so a concurrent rule edit can
// never produce a torn listing.
type ModelSnapshot struct {
	Model   ScoringModel
	Rules   []ScoringRule
	TakenAt int64
}

// SnapshotModel loads a model and its rules in one transaction.
// Returns nil if the model does not exist.
func (db *DB) SnapshotModel(modelID int64) (*ModelSnapshot, error) {
	var snap *ModelSnapshot
	err := db.inTx(func(tx *sql.Tx) error {
		m, err := scanModel(tx.QueryRow(`
			SELECT id, name, is_active, is_default, qualified_threshold, customer_threshold, created_at
			FROM scoring_models WHERE id = ?
		`, modelID))
		if err != nil || m == nil {
			return err
		}

		rows, err := tx.Query(`
			SELECT id, model_id, event_type, points, is_active, decay_days, decay_points,
				max_occurrences, cooldown_hours, conditions, created_at
			FROM scoring_rules WHERE model_id = ? ORDER BY id
		`, modelID)
		if err != nil {
			return fmt.Errorf("list rules: %w", err)
		}
		defer rows.Close()

		snap = &ModelSnapshot{Model: *m, TakenAt: time.Now().UnixMilli()}
		for rows.Next() {
			var r ScoringRule
			var active int
			var decayDays, decayPoints, maxOcc, cooldown sql.NullInt64
			if err := rows.Scan(&r.ID, &r.ModelID, &r.EventType, &r.Points, &active,
				&decayDays, &decayPoints, &maxOcc, &cooldown, &r.Conditions, &r.CreatedAt); err != nil {
				return fmt.Errorf("scan rule: %w", err)
			}
			r.IsActive = active != 0
			r.DecayDays = intPtr(decayDays)
			r.DecayPoints = intPtr(decayPoints)
			r.MaxOccurrences = intPtr(maxOcc)
			r.CooldownHours = intPtr(cooldown)
			snap.Rules = append(snap.Rules, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
