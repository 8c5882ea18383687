// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver), tracing instrumentation, and schema migrations.
package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/chemvision-backend/internal/domain"
)

// connPragmas are applied by the driver to every pooled connection.
var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// slowQuery is the threshold above which GORM logs a query as slow.
const slowQuery = 200 * time.Millisecond

// OpenSQLite opens (or creates) the SQLite database at path, with the
// connection PRAGMAs, a zerolog-backed GORM logger and the OpenTelemetry
// plugin so queries show up as child spans of the request trace.
//
// path is a file path or a "file:" URI; the parent directory of a plain
// path must exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, err
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{
		Logger: logger.New(gormLogWriter{}, logger.Config{
			SlowThreshold:             slowQuery,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	// The mapping table is read-mostly and history writes are small, so a
	// modest pool is plenty; SQLite serialises writers anyway.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// sqliteDSN appends the connection PRAGMAs to path as _pragma parameters.
func sqliteDSN(path string) string {
	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range connPragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// gormLogWriter routes GORM's warnings (slow queries, errors) to zerolog.
type gormLogWriter struct{}

func (gormLogWriter) Printf(format string, args ...any) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}

// AutoMigrate creates or updates the name mapping and conversion history tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.NameMapping{},
		&domain.ConversionRecord{},
	)
}

// Bootstrap migrates the schema and upserts rows into the mapping table,
// returning the resulting number of mappings.
func Bootstrap(ctx context.Context, db *gorm.DB, rows []domain.NameMapping) (int64, error) {
	if err := AutoMigrate(db.WithContext(ctx)); err != nil {
		return 0, err
	}
	if err := UpsertNameMappings(ctx, db, rows); err != nil {
		return 0, err
	}
	return CountNameMappings(ctx, db)
}
