// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// NameMapping model, the provenance-tagged name→structure table.
//
// Names are stored already normalized; callers (services.NamingService)
// normalize before lookups, and seeding goes through the same normalizer.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/chemvision-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer.
var ErrNotFound = gorm.ErrRecordNotFound

// GetNameMapping fetches the mapping stored under the normalized name, or
// ErrNotFound if there is none.
func GetNameMapping(ctx context.Context, db *gorm.DB, name string) (*domain.NameMapping, error) {
	var m domain.NameMapping
	err := db.WithContext(ctx).Where("name = ?", name).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertNameMappings inserts the given rows, replacing the structure and
// provenance of names that already exist. An empty slice is a no-op.
func UpsertNameMappings(ctx context.Context, db *gorm.DB, rows []domain.NameMapping) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
		rows[i].UpdatedAt = now
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"smiles", "source", "updated_at"}),
		}).
		Create(&rows).Error
}

// CountNameMappings returns the number of rows in the mapping table.
func CountNameMappings(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.NameMapping{}).Count(&n).Error
	return n, err
}
