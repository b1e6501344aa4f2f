package store

import (
	"testing"
)

func TestCreateModelDefaultReassignment(t *testing.T) {
	db := testDB(t)

	seeded, err := db.DefaultModel()
	if err != nil || seeded == nil {
		t.Fatalf("DefaultModel: %v, %v", seeded, err)
	}

	m, err := db.CreateModel("Enterprise", true, 80, 200)
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}

	def, err := db.DefaultModel()
	if err != nil {
		t.Fatalf("DefaultModel: %v", err)
	}
	if def.ID != m.ID {
		t.Errorf("default = %d, want %d", def.ID, m.ID)
	}

	old, err := db.GetModel(seeded.ID)
	if err != nil {
		t.Fatalf("GetModel: %v", err)
	}
	if old.IsDefault {
		t.Error("prior default was not un-defaulted")
	}
}

func TestSetDefaultModel(t *testing.T) {
	db := testDB(t)

	m, err := db.CreateModel("Enterprise", false, 80, 200)
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}

	if err := db.SetDefaultModel(m.ID); err != nil {
		t.Fatalf("SetDefaultModel: %v", err)
	}
	def, _ := db.DefaultModel()
	if def == nil || def.ID != m.ID {
		t.Fatalf("default = %v, want %d", def, m.ID)
	}

	if err := db.SetDefaultModel(99999); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestCreateRuleAndSnapshot(t *testing.T) {
	db := testDB(t)

	m, err := db.CreateModel("Test", false, 50, 100)
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}

	decayDays := 7
	maxOcc := 3
	rule := &ScoringRule{
		ModelID:        m.ID,
		EventType:      "MEETING_BOOKED",
		Points:         30,
		IsActive:       true,
		DecayDays:      &decayDays,
		MaxOccurrences: &maxOcc,
		Conditions:     `[{"field":"source","operator":"eq","value":"web"}]`,
	}
	if err := db.CreateRule(rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	if rule.ID == 0 {
		t.Fatal("rule ID not set")
	}

	snap, err := db.SnapshotModel(m.ID)
	if err != nil {
		t.Fatalf("SnapshotModel: %v", err)
	}
	if len(snap.Rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(snap.Rules))
	}
	r := snap.Rules[0]
	if r.Points != 30 || r.EventType != "MEETING_BOOKED" {
		t.Errorf("rule = %+v", r)
	}
	if r.DecayDays == nil || *r.DecayDays != 7 {
		t.Errorf("DecayDays = %v, want 7", r.DecayDays)
	}
	if r.MaxOccurrences == nil || *r.MaxOccurrences != 3 {
		t.Errorf("MaxOccurrences = %v, want 3", r.MaxOccurrences)
	}
	if r.CooldownHours != nil {
		t.Errorf("CooldownHours = %v, want nil", r.CooldownHours)
	}
}

func TestSnapshotMissingModel(t *testing.T) {
	db := testDB(t)

	snap, err := db.SnapshotModel(99999)
	if err != nil {
		t.Fatalf("SnapshotModel: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot, got %+v", snap)
	}
}

func TestSetRuleActive(t *testing.T) {
	db := testDB(t)

	m, _ := db.CreateModel("Test", false, 50, 100)
	rule := &ScoringRule{ModelID: m.ID, EventType: "EMAIL_OPENED", Points: 5, IsActive: true}
	if err := db.CreateRule(rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	if err := db.SetRuleActive(rule.ID, false); err != nil {
		t.Fatalf("SetRuleActive: %v", err)
	}
	snap, _ := db.SnapshotModel(m.ID)
	if snap.Rules[0].IsActive {
		t.Error("rule still active")
	}

	if err := db.SetRuleActive(99999, false); err == nil {
		t.Error("expected error for unknown rule")
	}
}
