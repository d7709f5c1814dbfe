package projection

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/redbadger/journey-dynamics/internal/eventstore"
	"github.com/redbadger/journey-dynamics/internal/pkg/logger"
)

// ProjectEventsArgs carries only the aggregate id (claim-check pattern):
// the worker re-reads the event log itself rather than shipping event
// payloads through the job queue, so a redelivered/retried job always
// projects from the current durable source of truth.
type ProjectEventsArgs struct {
	JourneyID uuid.UUID `json:"journey_id"`
}

// Kind returns the job kind identifier for journey projection.
func (ProjectEventsArgs) Kind() string { return "project_journey_events" }

// InsertOpts deduplicates same-journey projection jobs within a queue so
// a burst of Capture commands against one journey collapses into a
// single catch-up run instead of River scheduling one per event.
func (ProjectEventsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       "projection",
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	}
}

// ProjectEventsWorker re-reads a journey's full event stream and folds
// every envelope into the read-model relations. Re-running it is always
// safe: Projector.Apply is idempotent per (journey_id, sequence).
type ProjectEventsWorker struct {
	river.WorkerDefaults[ProjectEventsArgs]
	pool      *pgxpool.Pool
	store     *eventstore.Store
	projector *Projector
}

// NewProjectEventsWorker constructs a ProjectEventsWorker.
func NewProjectEventsWorker(pool *pgxpool.Pool, store *eventstore.Store, projector *Projector) *ProjectEventsWorker {
	return &ProjectEventsWorker{pool: pool, store: store, projector: projector}
}

// Work implements river.Worker.
func (w *ProjectEventsWorker) Work(ctx context.Context, job *river.Job[ProjectEventsArgs]) error {
	journeyID := job.Args.JourneyID

	envelopes, err := w.store.Load(ctx, w.pool, journeyID)
	if err != nil {
		return fmt.Errorf("projection job: load events for %s: %w", journeyID, err)
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("projection job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, env := range envelopes {
		if err := w.projector.Apply(ctx, tx, env); err != nil {
			return fmt.Errorf("projection job: apply sequence %d: %w", env.Sequence, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("projection job: commit: %w", err)
	}

	logger.Debug("Projected journey events",
		zap.String("journey_id", journeyID.String()),
		zap.Int("event_count", len(envelopes)),
	)
	return nil
}
