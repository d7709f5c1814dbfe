package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/redbadger/journey-dynamics/internal/merge"
)

// State is the journey's coarse lifecycle position.
type State int

const (
	// Uninitialized is the zero value: no Started event has been applied.
	Uninitialized State = iota
	InProgress
	Complete
)

// Decision is the most recent workflow-evaluation outcome, cached on the
// aggregate by Apply from the latest WorkflowEvaluated event.
type Decision struct {
	SuggestedActions []string
	PrimaryNextStep  *string
}

// EvaluationContext is what the aggregate hands the decision engine: the
// prospective cumulative document plus the step the caller is (or would
// be) standing on, assembled per spec §4.3.
type EvaluationContext struct {
	CapturedData map[string]any
	CurrentStep  string
}

// DecisionEngine is the aggregate's view of component C3. Concrete
// adapters (internal/decision) satisfy this structurally; the domain
// package never imports them, so the dependency only runs one way.
type DecisionEngine interface {
	Evaluate(ctx context.Context, ec EvaluationContext) (Decision, error)
}

// Validator is the aggregate's view of component C2.
type Validator interface {
	Validate(data any) error
}

// Services bundles the aggregate's collaborators. Both fields are
// optional: a nil Validator behaves like a permissive no-op validator,
// and a nil DecisionEngine skips evaluation (WorkflowEvaluated is still
// emitted, with an empty suggestion list) — useful for tests that only
// exercise the merge/state-machine behavior.
type Services struct {
	Validator Validator
	Decision  DecisionEngine
}

// Journey is the event-sourced aggregate. The zero value is a valid
// starting point for a brand-new journey: replay folds events into it via
// Apply, and Handle derives new events from it.
type Journey struct {
	id             uuid.UUID
	state          State
	merger         *merge.Merger
	currentStep    *string
	latestDecision *Decision
}

// New returns an uninitialized journey ready to receive a Start command
// or replay a prior event stream.
func New() *Journey {
	return &Journey{merger: merge.New()}
}

// ID returns the journey's aggregate identifier, or uuid.Nil if it has
// not yet started.
func (j *Journey) ID() uuid.UUID { return j.id }

// State returns the journey's current lifecycle state.
func (j *Journey) State() State { return j.state }

// CurrentStep returns the step the journey last transitioned to, or nil
// if no step transition has occurred yet.
func (j *Journey) CurrentStep() *string { return j.currentStep }

// LatestDecision returns the most recently cached workflow evaluation, or
// nil if none has run yet.
func (j *Journey) LatestDecision() *Decision { return j.latestDecision }

// AccumulatedData returns the journey's cumulative merged document. The
// caller must not mutate the returned map.
func (j *Journey) AccumulatedData() map[string]any { return j.merger.Data() }

// GetField resolves a dotted/bracket path against the accumulated
// document; see merge.Merger.GetField.
func (j *Journey) GetField(path string) (any, bool) { return j.merger.GetField(path) }

// Handle derives the events a command produces, without mutating the
// receiver. The caller applies the returned events (via Apply) once they
// are durably appended. A failing command returns a nil event slice and a
// non-nil error; no partial event list is ever returned.
func (j *Journey) Handle(ctx context.Context, cmd Command, svc Services) ([]Event, error) {
	switch c := cmd.(type) {
	case StartCommand:
		return j.handleStart(c)
	case CaptureCommand:
		return j.handleCapture(ctx, c, svc)
	case CapturePersonCommand:
		return j.handleCapturePerson(c)
	case CompleteCommand:
		return j.handleComplete()
	default:
		return nil, fmt.Errorf("domain: unrecognized command type %T", cmd)
	}
}

func (j *Journey) handleStart(c StartCommand) ([]Event, error) {
	if j.id == c.ID {
		return nil, ErrAlreadyStarted
	}
	return []Event{Started{ID: c.ID}}, nil
}

func (j *Journey) handleCapturePerson(c CapturePersonCommand) ([]Event, error) {
	if j.state == Uninitialized {
		return nil, ErrNotFound
	}
	if j.state == Complete {
		return nil, ErrAlreadyCompleted
	}
	return []Event{PersonCaptured{Name: c.Name, Email: c.Email, Phone: c.Phone}}, nil
}

func (j *Journey) handleComplete() ([]Event, error) {
	if j.state == Uninitialized {
		return nil, ErrNotFound
	}
	if j.state == Complete {
		return nil, ErrAlreadyCompleted
	}
	return []Event{Completed{}}, nil
}

// handleCapture implements the central Capture event-derivation
// algorithm (spec §4.4.2):
//
//  1. reject if uninitialized or already complete
//  2. validate the incoming payload
//  3. determine whether this capture is a step transition
//  4. build a prospective post-merge document without mutating the
//     committed aggregate, and invoke the decision engine against it
//  5. emit Modified, then WorkflowEvaluated, then — only on a step
//     transition — StepProgressed, in that fixed order
func (j *Journey) handleCapture(ctx context.Context, c CaptureCommand, svc Services) ([]Event, error) {
	if j.state == Uninitialized {
		return nil, ErrNotFound
	}
	if j.state == Complete {
		return nil, ErrAlreadyCompleted
	}

	if svc.Validator != nil {
		if err := svc.Validator.Validate(c.Data); err != nil {
			return nil, &InvalidDataError{Reason: err.Error()}
		}
	}

	isStepTransition := j.currentStep == nil || *j.currentStep != c.Step

	prospective := j.merger.Clone()
	prospective.Merge(c.Step, c.Data)

	decision := Decision{}
	if svc.Decision != nil {
		evaluated, err := svc.Decision.Evaluate(ctx, EvaluationContext{
			CapturedData: prospective.Data(),
			CurrentStep:  c.Step,
		})
		if err != nil {
			var de *DecisionEngineError
			if errors.As(err, &de) {
				return nil, err
			}
			return nil, &DecisionEngineError{Reason: err.Error()}
		}
		decision = evaluated
	}

	events := []Event{
		Modified{Step: c.Step, Data: c.Data},
		WorkflowEvaluated{
			SuggestedActions: decision.SuggestedActions,
			PrimaryNextStep:  decision.PrimaryNextStep,
		},
	}
	if isStepTransition {
		events = append(events, StepProgressed{FromStep: j.currentStep, ToStep: c.Step})
	}
	return events, nil
}

// Apply folds event onto the receiver (spec §4.4.3). It never fails:
// replay is total over any event stream Handle could have produced.
func (j *Journey) Apply(event Event) {
	switch e := event.(type) {
	case Started:
		j.id = e.ID
		j.state = InProgress
	case Modified:
		j.merger.Merge(e.Step, e.Data)
	case WorkflowEvaluated:
		j.latestDecision = &Decision{
			SuggestedActions: e.SuggestedActions,
			PrimaryNextStep:  e.PrimaryNextStep,
		}
	case StepProgressed:
		step := e.ToStep
		j.currentStep = &step
	case PersonCaptured:
		// No aggregate-state change; consumed only by the person projection.
	case Completed:
		j.state = Complete
	}
}
