// Package facade is the application-level entry point (spec component
// C6): it owns the atomic replay → handle → append → enqueue-projection
// cycle inside a single database transaction, and serves read-model
// queries.
//
// Import Path: github.com/redbadger/journey-dynamics/internal/facade
package facade

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/redbadger/journey-dynamics/internal/domain"
	"github.com/redbadger/journey-dynamics/internal/eventstore"
	"github.com/redbadger/journey-dynamics/internal/pkg/logger"
	"github.com/redbadger/journey-dynamics/internal/projection"
)

// Facade coordinates the journey aggregate, its event store, and its
// asynchronous projection, behind one method per inbound command.
type Facade struct {
	pool    *pgxpool.Pool
	store   *eventstore.Store
	river   *river.Client[pgx.Tx]
	svcFunc func(ctx context.Context) domain.Services
}

// New constructs a Facade. svcFunc is invoked once per command to build
// the collaborators (validator, decision engine) the aggregate needs —
// a func rather than a fixed value because a multi-tenant deployment may
// pick a different schema/policy per request.
func New(pool *pgxpool.Pool, store *eventstore.Store, riverClient *river.Client[pgx.Tx], svcFunc func(ctx context.Context) domain.Services) *Facade {
	return &Facade{pool: pool, store: store, river: riverClient, svcFunc: svcFunc}
}

// Execute replays journeyID's event stream, derives new events from cmd,
// appends them, and enqueues an asynchronous projection job — all inside
// one transaction, so a crash between append and enqueue is impossible:
// either both happen or neither does.
func (f *Facade) Execute(ctx context.Context, journeyID uuid.UUID, cmd domain.Command) ([]domain.Event, error) {
	var produced []domain.Event

	err := f.withTx(ctx, func(tx pgx.Tx) error {
		envelopes, err := f.store.Load(ctx, tx, journeyID)
		if err != nil {
			return err
		}

		journey := domain.New()
		var fromSequence int64
		for _, env := range envelopes {
			journey.Apply(env.Event)
			fromSequence = env.Sequence
		}

		events, err := journey.Handle(ctx, cmd, f.svcFunc(ctx))
		if err != nil {
			return err
		}

		if _, err := f.store.Append(ctx, tx, journeyID, fromSequence, events); err != nil {
			return err
		}

		if _, err := f.river.InsertTx(ctx, tx, projection.ProjectEventsArgs{JourneyID: journeyID}, nil); err != nil {
			return fmt.Errorf("facade: enqueue projection: %w", err)
		}

		produced = events
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Command handled",
		zap.String("journey_id", journeyID.String()),
		zap.Int("events_produced", len(produced)),
	)
	return produced, nil
}

// View is the read-optimized representation served by LoadView.
type View struct {
	ID               uuid.UUID
	State            string
	CurrentStep      *string
	AccumulatedData  map[string]any
	SuggestedActions []string
	PrimaryNextStep  *string
	Person           *PersonView
}

// PersonView is the journey_person projection row, present once a
// CapturePerson command has been handled.
type PersonView struct {
	Name  string
	Email string
	Phone *string
}

// ErrViewNotFound is returned when no projection exists yet for the
// requested journey — either it was never started, or its projection job
// hasn't run yet (the event log, not the view, is authoritative; callers
// needing a guaranteed-fresh read should replay via Execute's own load
// path instead).
var ErrViewNotFound = fmt.Errorf("facade: view not found")

// LoadView reads the journey_view projection, joined with its latest
// workflow decision and its optional captured person, for journeyID.
func (f *Facade) LoadView(ctx context.Context, journeyID uuid.UUID) (*View, error) {
	v := &View{ID: journeyID}
	err := f.pool.QueryRow(ctx, `
		SELECT state, current_step, accumulated_data
		FROM journey_view
		WHERE id = $1
	`, journeyID).Scan(&v.State, &v.CurrentStep, &v.AccumulatedData)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrViewNotFound
		}
		return nil, fmt.Errorf("facade: load view: %w", err)
	}

	err = f.pool.QueryRow(ctx, `
		SELECT suggested_actions, primary_next_step
		FROM journey_workflow_decision
		WHERE journey_id = $1 AND is_latest = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`, journeyID).Scan(&v.SuggestedActions, &v.PrimaryNextStep)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("facade: load latest decision: %w", err)
	}

	var person PersonView
	err = f.pool.QueryRow(ctx, `
		SELECT name, email, phone
		FROM journey_person
		WHERE journey_id = $1
	`, journeyID).Scan(&person.Name, &person.Email, &person.Phone)
	switch err {
	case nil:
		v.Person = &person
	case pgx.ErrNoRows:
	default:
		return nil, fmt.Errorf("facade: load person: %w", err)
	}

	return v, nil
}

// withTx runs fn inside a transaction, rolling back on error or panic and
// committing otherwise. Grounded on the same begin/defer-rollback/commit
// shape used throughout the surrounding codebase's use-case layer,
// adapted from an ORM-scoped transaction to a raw pgx.Tx.
func (f *Facade) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := f.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("facade: begin tx: %w", err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback(ctx)
			panic(v)
		}
	}()

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(ctx); rerr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rerr)
		}
		return err
	}
	return tx.Commit(ctx)
}
