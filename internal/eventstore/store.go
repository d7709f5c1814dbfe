// Package eventstore implements the append-only journey event log (spec
// component C8): durable persistence with optimistic concurrency on
// (aggregate_id, sequence), and full-stream replay for aggregate
// rehydration.
//
// Import Path: github.com/redbadger/journey-dynamics/internal/eventstore
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/redbadger/journey-dynamics/internal/domain"
)

// ErrConcurrentAppend is returned when two callers race to append the
// next event for the same aggregate: the loser's (aggregate_id,
// sequence) insert collides with the unique primary key the winner just
// committed.
var ErrConcurrentAppend = errors.New("eventstore: concurrent append")

// Queryer is satisfied by both *pgxpool.Pool and pgx.Tx, letting Load and
// LoadAll run either standalone or inside a caller-managed transaction.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Envelope pairs a persisted event with its position in the aggregate's
// stream.
type Envelope struct {
	AggregateID uuid.UUID
	Sequence    int64
	Event       domain.Event
}

// Store is a thin namespace for event-store operations; it carries no
// state of its own beyond what's passed to each call, so the zero value
// is usable directly.
type Store struct{}

// New returns a Store.
func New() *Store { return &Store{} }

// Load replays every event recorded for aggregateID, oldest first.
func (s *Store) Load(ctx context.Context, q Queryer, aggregateID uuid.UUID) ([]Envelope, error) {
	rows, err := q.Query(ctx, `
		SELECT sequence, event_type, payload
		FROM journey_event
		WHERE aggregate_id = $1
		ORDER BY sequence ASC
	`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("eventstore: load: %w", err)
	}
	defer rows.Close()

	var out []Envelope
	for rows.Next() {
		var seq int64
		var eventType string
		var payload []byte
		if err := rows.Scan(&seq, &eventType, &payload); err != nil {
			return nil, fmt.Errorf("eventstore: scan: %w", err)
		}
		event, err := decode(eventType, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, Envelope{AggregateID: aggregateID, Sequence: seq, Event: event})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventstore: load: %w", err)
	}
	return out, nil
}

// LoadAll returns every aggregate id that has at least one event,
// ordered by the time its first event was recorded.
func (s *Store) LoadAll(ctx context.Context, q Queryer) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `
		SELECT aggregate_id
		FROM journey_event
		WHERE sequence = 1
		ORDER BY recorded_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("eventstore: load all: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("eventstore: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Append persists events as the contiguous sequence range
// (fromSequence+1 .. fromSequence+len(events)) for aggregateID, within
// tx. The caller is expected to have derived events from an aggregate
// loaded at fromSequence in the same transaction, so a concurrent writer
// that committed in between is caught by the (aggregate_id, sequence)
// primary key and reported as ErrConcurrentAppend rather than silently
// interleaved.
func (s *Store) Append(ctx context.Context, tx pgx.Tx, aggregateID uuid.UUID, fromSequence int64, events []domain.Event) ([]Envelope, error) {
	envelopes := make([]Envelope, 0, len(events))
	seq := fromSequence
	for _, e := range events {
		seq++
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("eventstore: marshal %s: %w", e.EventType(), err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO journey_event (aggregate_id, sequence, event_type, event_version, payload)
			VALUES ($1, $2, $3, $4, $5)
		`, aggregateID, seq, e.EventType(), domain.EventVersion, payload)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return nil, ErrConcurrentAppend
			}
			return nil, fmt.Errorf("eventstore: append %s: %w", e.EventType(), err)
		}

		envelopes = append(envelopes, Envelope{AggregateID: aggregateID, Sequence: seq, Event: e})
	}
	return envelopes, nil
}

// decode reconstructs the concrete domain.Event variant identified by
// eventType from its JSON payload.
func decode(eventType string, payload []byte) (domain.Event, error) {
	var event domain.Event
	switch eventType {
	case domain.Started{}.EventType():
		var e domain.Started
		event = &e
	case domain.Modified{}.EventType():
		var e domain.Modified
		event = &e
	case domain.WorkflowEvaluated{}.EventType():
		var e domain.WorkflowEvaluated
		event = &e
	case domain.StepProgressed{}.EventType():
		var e domain.StepProgressed
		event = &e
	case domain.PersonCaptured{}.EventType():
		var e domain.PersonCaptured
		event = &e
	case domain.Completed{}.EventType():
		var e domain.Completed
		event = &e
	default:
		return nil, fmt.Errorf("eventstore: unknown event type %q", eventType)
	}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("eventstore: unmarshal %s: %w", eventType, err)
	}
	return derefEvent(event), nil
}

// derefEvent unwraps the pointer decode uses as an addressable
// json.Unmarshal target back into the value type domain.Event's
// variants are defined as.
func derefEvent(event domain.Event) domain.Event {
	switch e := event.(type) {
	case *domain.Started:
		return *e
	case *domain.Modified:
		return *e
	case *domain.WorkflowEvaluated:
		return *e
	case *domain.StepProgressed:
		return *e
	case *domain.PersonCaptured:
		return *e
	case *domain.Completed:
		return *e
	default:
		return event
	}
}
