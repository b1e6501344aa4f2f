package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Contact statuses, in qualification order.
const (
	StatusNew       = "new"
	StatusQualified = "qualified"
	StatusCustomer  = "customer"
)

// Contact is a CRM contact with its cached score state. Score and
// Status are derived from the ledger and mutated only by the scoring
// engine, never written directly by API callers.
type Contact struct {
	ID        int64
	UUID      string
	Name      string
	Email     string
	Score     int
	Status    string
	ModelID   *int64 // optional per-contact scoring model override
	CreatedAt int64
	UpdatedAt int64
}

// CreateContact inserts a new contact with a fresh UUID, score 0 and
// status "new".
func (db *DB) CreateContact(name, email string) (*Contact, error) {
	now := time.Now().UnixMilli()
	c := &Contact{
		UUID:      uuid.NewString(),
		Name:      name,
		Email:     email,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := db.Exec(`
		INSERT INTO contacts (uuid, name, email, score, status, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?)
	`, c.UUID, c.Name, c.Email, c.Status, now, now)
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}

	c.ID, _ = result.LastInsertId()
	return c, nil
}

// GetContact returns the contact with the given id, or nil if absent.
func (db *DB) GetContact(id int64) (*Contact, error) {
	return db.scanContact(db.QueryRow(`
		SELECT id, uuid, name, email, score, status, model_id, created_at, updated_at
		FROM contacts WHERE id = ?
	`, id))
}

// GetContactByUUID returns the contact with the given external UUID, or
// nil if absent.
func (db *DB) GetContactByUUID(u string) (*Contact, error) {
	return db.scanContact(db.QueryRow(`
		SELECT id, uuid, name, email, score, status, model_id, created_at, updated_at
		FROM contacts WHERE uuid = ?
	`, u))
}

func (db *DB) scanContact(row *sql.Row) (*Contact, error) {
	var c Contact
	var email sql.NullString
	var modelID sql.NullInt64
	err := row.Scan(&c.ID, &c.UUID, &c.Name, &email, &c.Score, &c.Status,
		&modelID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	c.Email = email.String
	if modelID.Valid {
		c.ModelID = &modelID.Int64
	}
	return &c, nil
}

// SetContactModel assigns (or clears, with nil) a per-contact scoring
// model override.
func (db *DB) SetContactModel(contactID int64, modelID *int64) error {
	now := time.Now().UnixMilli()
	var err error
	if modelID == nil {
		_, err = db.Exec(`UPDATE contacts SET model_id = NULL, updated_at = ? WHERE id = ?`, now, contactID)
	} else {
		_, err = db.Exec(`UPDATE contacts SET model_id = ?, updated_at = ? WHERE id = ?`, *modelID, now, contactID)
	}
	if err != nil {
		return fmt.Errorf("set contact model: %w", err)
	}
	return nil
}

// SetContactStatus updates the cached qualification status.
func (db *DB) SetContactStatus(contactID int64, status string) error {
	_, err := db.Exec(`
		UPDATE contacts SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now().UnixMilli(), contactID)
	if err != nil {
		return fmt.Errorf("set contact status: %w", err)
	}
	return nil
}
