package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if (NameMapping{}).TableName() != "name_mappings" {
		t.Fatalf("NameMapping.TableName() = %q; want %q", (NameMapping{}).TableName(), "name_mappings")
	}
	if (ConversionRecord{}).TableName() != "conversions" {
		t.Fatalf("ConversionRecord.TableName() = %q; want %q", (ConversionRecord{}).TableName(), "conversions")
	}
}

func TestMigrations_Indexes_AndChecks(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&NameMapping{}, &ConversionRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&NameMapping{}, &ConversionRecord{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&ConversionRecord{}, "idx_conv_corr") {
		t.Fatalf("expected index idx_conv_corr on conversions")
	}
	if !m.HasIndex(&ConversionRecord{}, "idx_conv_op_time") {
		t.Fatalf("expected index idx_conv_op_time on conversions")
	}

	now := time.Now().UTC()

	// Mapping with a known provenance is accepted.
	ok := &NameMapping{Name: "isopentane", Smiles: "CC(C)CC", Source: "demo", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(ok).Error; err != nil {
		t.Fatalf("insert mapping: %v", err)
	}
	// Duplicate primary key is rejected.
	if err := db.Create(&NameMapping{Name: "isopentane", Smiles: "X", Source: "demo"}).Error; err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}
	// Unknown provenance violates the CHECK constraint.
	if err := db.Create(&NameMapping{Name: "hexane", Smiles: "CCCCCC", Source: "guess"}).Error; err == nil {
		t.Fatalf("expected CHECK(source) violation")
	}

	// History rows: valid outcome accepted, unknown outcome rejected.
	rec := &ConversionRecord{ID: "r1", CorrelationID: "c1", Operation: "name_to_structure", Outcome: "success", Input: "isopentane", Output: "CC(C)CC", Source: "demo", CreatedAt: now}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert record: %v", err)
	}
	bad := &ConversionRecord{ID: "r2", CorrelationID: "c2", Operation: "name_to_structure", Outcome: "maybe", Input: "x", CreatedAt: now}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected CHECK(outcome) violation")
	}
	badOp := &ConversionRecord{ID: "r3", CorrelationID: "c3", Operation: "teleport", Outcome: "failure", Input: "x", CreatedAt: now}
	if err := db.Create(badOp).Error; err == nil {
		t.Fatalf("expected CHECK(operation) violation")
	}
}
