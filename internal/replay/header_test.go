package replay

import (
	"path/filepath"
	"testing"

	"driftpursuit/intercept/internal/combat"
)

func TestWriteAndReadHeader(t *testing.T) {
	dir := t.TempDir()
	header := Header{
		SchemaVersion: HeaderSchemaVersion,
		CampaignID:    "c-1",
		Seed:          9,
		Stance:        combat.StanceAggressive,
		Engagements:   3,
		Parameters: combat.Parameters{
			SideA: combat.SideParameters{StartHealth: 2500, Damage: combat.DamageRange{Low: 340, High: 510}, Hit: combat.MustProbabilityRatio(55, 100), Crit: combat.MustProbabilityRatio(10, 200), FireInterval: 2000},
		},
		FilePointer: "manifest.json",
	}
	path := filepath.Join(dir, "nested", "header.json")
	if err := WriteHeader(path, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	loaded, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if loaded != header {
		t.Fatalf("header mismatch: %+v vs %+v", loaded, header)
	}
}

func TestHeaderValidation(t *testing.T) {
	if err := (Header{SchemaVersion: 1}).Validate(); err == nil {
		t.Fatalf("expected missing file pointer to fail")
	}
	if err := (Header{FilePointer: "manifest.json"}).Validate(); err == nil {
		t.Fatalf("expected zero schema version to fail")
	}
	if err := (Header{SchemaVersion: 1, FilePointer: "manifest.json", Stance: combat.Stance(9)}).Validate(); err == nil {
		t.Fatalf("expected unknown stance to fail")
	}
}
