// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ConversionRecord model (append-only conversion history).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/chemvision-backend/internal/domain"
)

// CreateConversion appends rec to the history. A UUID primary key and a UTC
// creation time are assigned when missing.
func CreateConversion(ctx context.Context, db *gorm.DB, rec *domain.ConversionRecord) (*domain.ConversionRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// ListConversionsByCorrelation returns every history row written for the
// given correlation id, oldest first.
func ListConversionsByCorrelation(ctx context.Context, db *gorm.DB, correlationID string) ([]domain.ConversionRecord, error) {
	var out []domain.ConversionRecord
	err := db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
