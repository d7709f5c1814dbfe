// Package projection folds the durable event log into the three
// read-model relations the façade's view queries serve from: journey_view,
// journey_workflow_decision, and journey_person. Projection runs
// asynchronously off the event-append path (see job.go) so a slow or
// failing read-model write never blocks a command's own transaction.
//
// Import Path: github.com/redbadger/journey-dynamics/internal/projection
package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/redbadger/journey-dynamics/internal/domain"
	"github.com/redbadger/journey-dynamics/internal/eventstore"
)

// Projector applies event envelopes to the read-model relations.
type Projector struct{}

// New returns a Projector.
func New() *Projector { return &Projector{} }

// Apply folds one event envelope into the read model, inside tx. It is
// idempotent per (journey_id, sequence): journey_view.version is the
// high-water mark, and an envelope whose sequence doesn't advance it
// (because a prior run already applied it) is a no-op.
func (p *Projector) Apply(ctx context.Context, tx pgx.Tx, env eventstore.Envelope) error {
	switch e := env.Event.(type) {
	case domain.Started:
		return p.applyStarted(ctx, tx, env, e)
	case domain.Modified:
		return p.applyModified(ctx, tx, env, e)
	case domain.WorkflowEvaluated:
		return p.applyWorkflowEvaluated(ctx, tx, env, e)
	case domain.StepProgressed:
		return p.applyStepProgressed(ctx, tx, env, e)
	case domain.PersonCaptured:
		return p.applyPersonCaptured(ctx, tx, env, e)
	case domain.Completed:
		return p.applyCompleted(ctx, tx, env)
	default:
		return fmt.Errorf("projection: unhandled event type %T", env.Event)
	}
}

func (p *Projector) applyStarted(ctx context.Context, tx pgx.Tx, env eventstore.Envelope, e domain.Started) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO journey_view (id, state, version)
		VALUES ($1, 'InProgress', $2)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, env.Sequence)
	if err != nil {
		return fmt.Errorf("projection: insert journey_view: %w", err)
	}
	return nil
}

// applyModified denormalizes the merger's cumulative document into
// journey_view for fast reads. Postgres's jsonb `||` is a shallow
// top-level merge, not the aggregate's deep/array-preferring merge — the
// authoritative document is always whatever merge.Merger produces on
// replay; this column exists so LoadView can skip a replay.
func (p *Projector) applyModified(ctx context.Context, tx pgx.Tx, env eventstore.Envelope, e domain.Modified) error {
	if !p.advance(ctx, tx, env) {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE journey_view
		SET accumulated_data = accumulated_data || $1::jsonb,
		    version = $2,
		    updated_at = now()
		WHERE id = $3
	`, wrapPatchJSON(e), env.Sequence, env.AggregateID)
	if err != nil {
		return fmt.Errorf("projection: update accumulated_data: %w", err)
	}
	return nil
}

// wrapPatchJSON mirrors the merger's own field-wrapping rule: an object
// payload merges its own keys, a scalar payload nests under the step key.
func wrapPatchJSON(e domain.Modified) []byte {
	var patch map[string]any
	if obj, ok := e.Data.(map[string]any); ok {
		patch = obj
	} else {
		patch = map[string]any{e.Step: e.Data}
	}
	b, _ := json.Marshal(patch)
	return b
}

func (p *Projector) applyWorkflowEvaluated(ctx context.Context, tx pgx.Tx, env eventstore.Envelope, e domain.WorkflowEvaluated) error {
	if !p.advance(ctx, tx, env) {
		return nil
	}
	if _, err := tx.Exec(ctx, `
		UPDATE journey_workflow_decision SET is_latest = FALSE WHERE journey_id = $1
	`, env.AggregateID); err != nil {
		return fmt.Errorf("projection: retire prior decisions: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO journey_workflow_decision (journey_id, suggested_actions, primary_next_step, is_latest)
		VALUES ($1, $2, $3, TRUE)
	`, env.AggregateID, e.SuggestedActions, e.PrimaryNextStep); err != nil {
		return fmt.Errorf("projection: insert workflow decision: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE journey_view SET version = $1, updated_at = now() WHERE id = $2
	`, env.Sequence, env.AggregateID); err != nil {
		return fmt.Errorf("projection: bump version: %w", err)
	}
	return nil
}

func (p *Projector) applyStepProgressed(ctx context.Context, tx pgx.Tx, env eventstore.Envelope, e domain.StepProgressed) error {
	if !p.advance(ctx, tx, env) {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE journey_view SET current_step = $1, version = $2, updated_at = now() WHERE id = $3
	`, e.ToStep, env.Sequence, env.AggregateID)
	if err != nil {
		return fmt.Errorf("projection: update current_step: %w", err)
	}
	return nil
}

func (p *Projector) applyPersonCaptured(ctx context.Context, tx pgx.Tx, env eventstore.Envelope, e domain.PersonCaptured) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO journey_person (journey_id, name, email, phone, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (journey_id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone, updated_at = now()
	`, env.AggregateID, e.Name, e.Email, e.Phone)
	if err != nil {
		return fmt.Errorf("projection: upsert journey_person: %w", err)
	}
	return nil
}

func (p *Projector) applyCompleted(ctx context.Context, tx pgx.Tx, env eventstore.Envelope) error {
	if !p.advance(ctx, tx, env) {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE journey_view SET state = 'Complete', version = $1, updated_at = now() WHERE id = $2
	`, env.Sequence, env.AggregateID)
	if err != nil {
		return fmt.Errorf("projection: mark complete: %w", err)
	}
	return nil
}

// advance reports whether env.Sequence is newer than journey_view's
// current version, i.e. whether this envelope still needs applying.
// Returns false (and logs nothing — this is the expected steady-state
// path for a redelivered job) when the projection already caught up.
func (p *Projector) advance(ctx context.Context, tx pgx.Tx, env eventstore.Envelope) bool {
	var version int64
	err := tx.QueryRow(ctx, `SELECT version FROM journey_view WHERE id = $1`, env.AggregateID).Scan(&version)
	if err != nil {
		// No row yet (Started hasn't projected in this transaction's view,
		// e.g. reprocessing out of order): allow the caller's own INSERT/
		// UPDATE to proceed, relying on the row's own WHERE id = $N to be
		// a no-op if truly absent.
		return true
	}
	return env.Sequence > version
}
