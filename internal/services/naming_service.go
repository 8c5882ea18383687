// Package services – NamingService
//
// This file implements the chemical-name capabilities: name→structure via a
// provenance-tagged mapping table and structure→name, which has no engine
// yet and always answers NotImplemented.
//
// Observability: every method is OpenTelemetry-instrumented; the span records
// the operation outcome.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/chemvision-backend/internal/catalog"
	"github.com/tbourn/chemvision-backend/internal/domain"
)

// MappingStore is the backing table for name→structure lookups. Names are
// passed already normalized. Implementations report a miss with an error
// matching ErrMappingNotFound.
type MappingStore interface {
	LookupName(ctx context.Context, name string) (*domain.NameMapping, error)
}

// NamingService converts between chemical names and structure notation.
// It is safe for concurrent use as long as Store is.
type NamingService struct {
	Store MappingStore
}

// NewNamingService returns a NamingService backed by store.
func NewNamingService(store MappingStore) *NamingService {
	return &NamingService{Store: store}
}

// NameToStructure normalizes name (trim + case fold) and looks it up.
// A hit is a Success carrying the row's provenance; a miss is
// NotImplemented; anything else is a Failure.
func (s *NamingService) NameToStructure(ctx context.Context, name string) domain.Result {
	ctx, span := otel.Tracer("services/NamingService").Start(ctx, "NameToStructure")
	defer span.End()

	res := s.nameToStructure(ctx, name)
	endSpan(span, res)
	return res
}

func (s *NamingService) nameToStructure(ctx context.Context, name string) domain.Result {
	if err := ctx.Err(); err != nil {
		return domain.Failure(err)
	}
	key := catalog.Normalize(name)
	if key == "" {
		return domain.Failure(ErrEmptyInput)
	}
	if s == nil || s.Store == nil {
		return domain.Failure(ErrNoStore)
	}

	m, err := s.Store.LookupName(ctx, key)
	switch {
	case errors.Is(err, ErrMappingNotFound):
		zerolog.Ctx(ctx).Debug().Str("name", key).Msg("name not in mapping table")
		return domain.NotImplemented()
	case err != nil:
		return domain.Failure(fmt.Errorf("lookup %q: %w", key, err))
	case m == nil:
		return domain.NotImplemented()
	}

	p := domain.Provenance(m.Source)
	if !p.Valid() {
		return domain.Failure(fmt.Errorf("%w: %q", ErrInvalidProvenance, m.Source))
	}
	return domain.Success(m.Smiles, p)
}

// StructureToName has no naming engine behind it yet: every well-formed
// request yields NotImplemented.
func (s *NamingService) StructureToName(ctx context.Context, smiles string) domain.Result {
	_, span := otel.Tracer("services/NamingService").Start(ctx, "StructureToName",
		trace.WithAttributes(attribute.Int("smiles.len", len(smiles))),
	)
	defer span.End()

	res := notBuilt(ctx)
	endSpan(span, res)
	return res
}

// notBuilt is the outcome of capabilities without an engine. A cancelled
// context still reports as a failure so callers see why the work stopped.
func notBuilt(ctx context.Context) domain.Result {
	if err := ctx.Err(); err != nil {
		return domain.Failure(err)
	}
	return domain.NotImplemented()
}

// endSpan annotates span with the outcome of res.
func endSpan(span trace.Span, res domain.Result) {
	span.SetAttributes(attribute.String("conversion.outcome", string(res.Outcome())))
	switch res.Outcome() {
	case domain.OutcomeSuccess:
		span.SetAttributes(attribute.String("conversion.source", string(res.Provenance())))
	case domain.OutcomeFailure:
		span.RecordError(res.Err())
		span.SetStatus(codes.Error, "conversion failed")
	}
}
