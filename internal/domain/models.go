// Package domain defines the conversion vocabulary (operations, provenance,
// the tagged Result) and the persistence models mapped with GORM: the
// provenance-tagged name mapping table and the conversion history.
package domain

import "time"

// NameMapping is one entry of the name→structure table. Name holds the
// normalized (trimmed, case-folded) chemical name and is the primary key.
//
// Fields:
//   - Name: normalized chemical name.
//   - Smiles: structure notation served for the name.
//   - Source: provenance tag returned to callers ("demo", "ml", "tool").
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type NameMapping struct {
	Name      string    `json:"name"       gorm:"type:varchar(500);primaryKey"`
	Smiles    string    `json:"smiles"     gorm:"type:varchar(1000);not null"`
	Source    string    `json:"source"     gorm:"type:varchar(16);not null;default:'demo';check:source IN ('demo','ml','tool')"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for NameMapping.
func (NameMapping) TableName() string { return "name_mappings" }

// ConversionRecord is an append-only history row written for every handled
// conversion request, whatever its outcome.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - CorrelationID: the request's correlation id (indexed for lookups).
//   - Operation: one of the Operation constants.
//   - Outcome: one of the Outcome constants.
//   - Input: the name or SMILES string, or the uploaded filename for images.
//   - Output: the converted value on success.
//   - Source: provenance tag on success.
type ConversionRecord struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	CorrelationID string    `json:"correlation_id" gorm:"type:varchar(128);not null;index:idx_conv_corr"`
	Operation     string    `json:"operation"      gorm:"type:varchar(32);not null;index:idx_conv_op_time,priority:1;check:operation IN ('name_to_structure','structure_to_name','image_to_structure')"`
	Outcome       string    `json:"outcome"        gorm:"type:varchar(32);not null;check:outcome IN ('success','not_implemented','failure')"`
	Input         string    `json:"input"          gorm:"type:text;not null"`
	Output        string    `json:"output,omitempty" gorm:"type:text"`
	Source        string    `json:"source,omitempty" gorm:"type:varchar(16)"`
	CreatedAt     time.Time `json:"created_at"     gorm:"index:idx_conv_op_time,priority:2"`
}

// TableName returns the database table name for ConversionRecord.
func (ConversionRecord) TableName() string { return "conversions" }
