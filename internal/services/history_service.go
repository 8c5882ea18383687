// Package services – HistoryService
//
// HistoryService appends one ConversionRecord per handled conversion.
// HistoryQueue puts it behind a bounded buffer drained by a single
// background writer, so request handling never waits on SQLite. A full
// queue drops the record; history is best-effort.
package services

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/chemvision-backend/internal/correlation"
	"github.com/tbourn/chemvision-backend/internal/domain"
	"github.com/tbourn/chemvision-backend/internal/repo"
)

// maxHistoryInput caps the stored input so a large SMILES cannot bloat the table.
const maxHistoryInput = domain.MaxSmilesLen

// HistoryService persists the conversion history.
type HistoryService struct {
	DB *gorm.DB
}

// Record stores the outcome of op for input under the correlation id bound
// to ctx. A nil service or DB is a no-op.
func (s *HistoryService) Record(ctx context.Context, op domain.Operation, input string, res domain.Result) error {
	if s == nil || s.DB == nil {
		return nil
	}
	if r := []rune(input); len(r) > maxHistoryInput {
		input = string(r[:maxHistoryInput])
	}
	rec := &domain.ConversionRecord{
		CorrelationID: correlation.ID(ctx),
		Operation:     string(op),
		Outcome:       string(res.Outcome()),
		Input:         input,
	}
	if res.Outcome() == domain.OutcomeSuccess {
		rec.Output = res.Value()
		rec.Source = string(res.Provenance())
	}
	// Detached from request cancellation: the response may already be out.
	_, err := repo.CreateConversion(context.WithoutCancel(ctx), s.DB, rec)
	return err
}

// Recorder stores one conversion outcome.
type Recorder interface {
	Record(ctx context.Context, op domain.Operation, input string, res domain.Result) error
}

var (
	// ErrHistoryQueueFull is returned when a record is dropped for lack of
	// buffer space.
	ErrHistoryQueueFull = errors.New("history queue full")

	// ErrHistoryClosed is returned for records submitted after Close.
	ErrHistoryClosed = errors.New("history queue closed")
)

type historyJob struct {
	ctx   context.Context
	op    domain.Operation
	input string
	res   domain.Result
}

// HistoryQueue records asynchronously through next.
type HistoryQueue struct {
	next Recorder
	jobs chan historyJob
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewHistoryQueue starts the writer goroutine. size is the buffer capacity;
// values below 1 are raised to 1.
func NewHistoryQueue(next Recorder, size int) *HistoryQueue {
	if size < 1 {
		size = 1
	}
	q := &HistoryQueue{
		next: next,
		jobs: make(chan historyJob, size),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// Record enqueues the outcome without blocking. The job keeps ctx values
// (correlation id, logger) but not its cancellation.
func (q *HistoryQueue) Record(ctx context.Context, op domain.Operation, input string, res domain.Result) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrHistoryClosed
	}
	select {
	case q.jobs <- historyJob{ctx: context.WithoutCancel(ctx), op: op, input: input, res: res}:
		return nil
	default:
		return ErrHistoryQueueFull
	}
}

func (q *HistoryQueue) run() {
	defer close(q.done)
	for job := range q.jobs {
		if err := q.next.Record(job.ctx, job.op, job.input, job.res); err != nil {
			zerolog.Ctx(job.ctx).Warn().Err(err).
				Str("operation", string(job.op)).
				Msg("history record failed")
		}
	}
}

// Close stops accepting records and waits until the queued ones are written
// or ctx is done. It is safe to call more than once.
func (q *HistoryQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
