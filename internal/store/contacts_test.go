package store

import (
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateContact(t *testing.T) {
	db := testDB(t)

	c, err := db.CreateContact("Ada Lovelace", "ada@example.com")
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	if c.ID == 0 {
		t.Error("contact ID not set")
	}
	if c.UUID == "" {
		t.Error("contact UUID not set")
	}
	if c.Score != 0 {
		t.Errorf("Score = %d, want 0", c.Score)
	}
	if c.Status != StatusNew {
		t.Errorf("Status = %q, want %q", c.Status, StatusNew)
	}
}

func TestGetContactByUUID(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateContact("Ada", "")
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	got, err := db.GetContactByUUID(created.UUID)
	if err != nil {
		t.Fatalf("GetContactByUUID: %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("got %+v, want id %d", got, created.ID)
	}

	missing, err := db.GetContactByUUID("no-such-uuid")
	if err != nil {
		t.Fatalf("GetContactByUUID missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown uuid, got %+v", missing)
	}
}

func TestSetContactStatus(t *testing.T) {
	db := testDB(t)

	c, err := db.CreateContact("Ada", "")
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	if err := db.SetContactStatus(c.ID, StatusQualified); err != nil {
		t.Fatalf("SetContactStatus: %v", err)
	}

	got, err := db.GetContact(c.ID)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if got.Status != StatusQualified {
		t.Errorf("Status = %q, want %q", got.Status, StatusQualified)
	}
}

func TestSetContactModel(t *testing.T) {
	db := testDB(t)

	c, err := db.CreateContact("Ada", "")
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	m, err := db.CreateModel("Enterprise", false, 80, 200)
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}

	if err := db.SetContactModel(c.ID, &m.ID); err != nil {
		t.Fatalf("SetContactModel: %v", err)
	}
	got, _ := db.GetContact(c.ID)
	if got.ModelID == nil || *got.ModelID != m.ID {
		t.Fatalf("ModelID = %v, want %d", got.ModelID, m.ID)
	}

	if err := db.SetContactModel(c.ID, nil); err != nil {
		t.Fatalf("clear model: %v", err)
	}
	got, _ = db.GetContact(c.ID)
	if got.ModelID != nil {
		t.Errorf("ModelID = %v, want nil", got.ModelID)
	}
}
