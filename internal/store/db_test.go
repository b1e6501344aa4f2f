package store

import (
	"testing"
)

func TestOpenMemoryMigrates(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("schema version = %d, want %d", version, len(migrations))
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSeedModelPresent(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	m, err := db.DefaultModel()
	if err != nil {
		t.Fatalf("DefaultModel: %v", err)
	}
	if m == nil {
		t.Fatal("no default model seeded")
	}
	if m.QualifiedThreshold != 50 || m.CustomerThreshold != 100 {
		t.Errorf("seed thresholds = %d/%d, want 50/100", m.QualifiedThreshold, m.CustomerThreshold)
	}

	snap, err := db.SnapshotModel(m.ID)
	if err != nil {
		t.Fatalf("SnapshotModel: %v", err)
	}
	if len(snap.Rules) == 0 {
		t.Error("seed model has no rules")
	}
}
