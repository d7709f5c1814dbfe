package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbadger/journey-dynamics/internal/domain"
)

// fixedDecision is a stub domain.DecisionEngine returning a canned result,
// used by tests that don't care about decision-graph content.
type fixedDecision struct {
	result domain.Decision
	err    error
	calls  []domain.EvaluationContext
}

func (f *fixedDecision) Evaluate(_ context.Context, ec domain.EvaluationContext) (domain.Decision, error) {
	f.calls = append(f.calls, ec)
	return f.result, f.err
}

// rejectAll is a stub domain.Validator that always fails.
type rejectAll struct{ reason string }

func (r rejectAll) Validate(any) error { return errors.New(r.reason) }

func replay(events ...domain.Event) *domain.Journey {
	j := domain.New()
	for _, e := range events {
		j.Apply(e)
	}
	return j
}

func apply(j *domain.Journey, events []domain.Event) {
	for _, e := range events {
		j.Apply(e)
	}
}

func TestStartJourney(t *testing.T) {
	id := uuid.New()
	j := domain.New()

	events, err := j.Handle(context.Background(), domain.StartCommand{ID: id}, domain.Services{})
	require.NoError(t, err)
	assert.Equal(t, []domain.Event{domain.Started{ID: id}}, events)

	apply(j, events)
	assert.Equal(t, id, j.ID())
	assert.Equal(t, domain.InProgress, j.State())
}

func TestStartAlreadyStartedSameID(t *testing.T) {
	id := uuid.New()
	j := replay(domain.Started{ID: id})

	_, err := j.Handle(context.Background(), domain.StartCommand{ID: id}, domain.Services{})
	assert.ErrorIs(t, err, domain.ErrAlreadyStarted)
}

func TestCaptureNotStarted(t *testing.T) {
	j := domain.New()
	_, err := j.Handle(context.Background(), domain.CaptureCommand{Step: "first_name", Data: "Joe"}, domain.Services{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCaptureAlreadyCompleted(t *testing.T) {
	j := replay(domain.Started{ID: uuid.New()}, domain.Completed{})
	_, err := j.Handle(context.Background(), domain.CaptureCommand{Step: "first_name", Data: "Joe"}, domain.Services{})
	assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)
}

func TestCaptureScalarFieldFirstStep(t *testing.T) {
	id := uuid.New()
	j := replay(domain.Started{ID: id})

	events, err := j.Handle(context.Background(), domain.CaptureCommand{Step: "first_name", Data: "Joe"}, domain.Services{})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, domain.Modified{Step: "first_name", Data: "Joe"}, events[0])
	assert.Equal(t, domain.WorkflowEvaluated{SuggestedActions: nil}, events[1])
	assert.Equal(t, domain.StepProgressed{FromStep: nil, ToStep: "first_name"}, events[2])

	apply(j, events)
	assert.Equal(t, "Joe", j.AccumulatedData()["first_name"])
	require.NotNil(t, j.CurrentStep())
	assert.Equal(t, "first_name", *j.CurrentStep())
}

func TestCaptureObjectPayloadMergesIntoRoot(t *testing.T) {
	id := uuid.New()
	j := replay(domain.Started{ID: id})

	payload := map[string]any{
		"step":       "personal_info",
		"email":      "alice@example.com",
		"first_name": "Alice",
	}
	events, err := j.Handle(context.Background(), domain.CaptureCommand{Step: "step-1", Data: payload}, domain.Services{})
	require.NoError(t, err)
	require.Len(t, events, 3)

	apply(j, events)
	data := j.AccumulatedData()
	assert.Equal(t, "alice@example.com", data["email"])
	assert.Equal(t, "Alice", data["first_name"])
	assert.Equal(t, "personal_info", data["step"])
	// "step-1" is the capture's step *key*, not a nested field — the object
	// payload's own keys land at the document root.
	_, ok := data["step-1"]
	assert.False(t, ok)
}

func TestCaptureSameStepIsNotATransition(t *testing.T) {
	id := uuid.New()
	j := replay(domain.Started{ID: id}, domain.Modified{Step: "first_name", Data: "Joe"}, domain.StepProgressed{ToStep: "first_name"})

	events, err := j.Handle(context.Background(), domain.CaptureCommand{Step: "first_name", Data: "Josephine"}, domain.Services{})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, domain.Modified{Step: "first_name", Data: "Josephine"}, events[0])
	assert.IsType(t, domain.WorkflowEvaluated{}, events[1])
}

func TestCaptureInvokesDecisionEngineWithMergedProspectiveData(t *testing.T) {
	id := uuid.New()
	j := replay(domain.Started{ID: id}, domain.Modified{Step: "first_name", Data: "Joe"}, domain.StepProgressed{ToStep: "first_name"})

	next := "form_3"
	stub := &fixedDecision{result: domain.Decision{SuggestedActions: []string{"show_form_3"}, PrimaryNextStep: &next}}

	events, err := j.Handle(context.Background(), domain.CaptureCommand{Step: "section_2", Data: "yes"}, domain.Services{Decision: stub})
	require.NoError(t, err)

	require.Len(t, stub.calls, 1)
	assert.Equal(t, "Joe", stub.calls[0].CapturedData["first_name"])
	assert.Equal(t, "yes", stub.calls[0].CapturedData["section_2"])
	assert.Equal(t, "section_2", stub.calls[0].CurrentStep)

	require.Len(t, events, 3)
	we, ok := events[1].(domain.WorkflowEvaluated)
	require.True(t, ok)
	assert.Equal(t, []string{"show_form_3"}, we.SuggestedActions)
	require.NotNil(t, we.PrimaryNextStep)
	assert.Equal(t, "form_3", *we.PrimaryNextStep)
}

func TestCaptureValidationFailureRejectsAtomically(t *testing.T) {
	id := uuid.New()
	j := replay(domain.Started{ID: id})

	_, err := j.Handle(context.Background(), domain.CaptureCommand{Step: "age", Data: -1}, domain.Services{
		Validator: rejectAll{reason: "age must be non-negative"},
	})

	var invalid *domain.InvalidDataError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Error(), "age must be non-negative")
	assert.Empty(t, j.AccumulatedData())
}

func TestCaptureDecisionEngineFailureIsWrapped(t *testing.T) {
	id := uuid.New()
	j := replay(domain.Started{ID: id})

	stub := &fixedDecision{err: errors.New("evaluation timed out")}
	_, err := j.Handle(context.Background(), domain.CaptureCommand{Step: "first_name", Data: "Joe"}, domain.Services{Decision: stub})

	var de *domain.DecisionEngineError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Error(), "evaluation timed out")
}

func TestCapturePerson(t *testing.T) {
	id := uuid.New()
	j := replay(domain.Started{ID: id})

	phone := "+15551234567"
	events, err := j.Handle(context.Background(), domain.CapturePersonCommand{Name: "Alice", Email: "alice@example.com", Phone: &phone}, domain.Services{})
	require.NoError(t, err)
	assert.Equal(t, []domain.Event{domain.PersonCaptured{Name: "Alice", Email: "alice@example.com", Phone: &phone}}, events)

	apply(j, events)
	// PersonCaptured carries no aggregate-state change.
	assert.Empty(t, j.AccumulatedData())
}

func TestCapturePersonNotStarted(t *testing.T) {
	j := domain.New()
	_, err := j.Handle(context.Background(), domain.CapturePersonCommand{Name: "Alice", Email: "alice@example.com"}, domain.Services{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCapturePersonAlreadyCompleted(t *testing.T) {
	j := replay(domain.Started{ID: uuid.New()}, domain.Completed{})
	_, err := j.Handle(context.Background(), domain.CapturePersonCommand{Name: "Alice", Email: "alice@example.com"}, domain.Services{})
	assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)
}

func TestCompleteUnmodifiedJourney(t *testing.T) {
	j := replay(domain.Started{ID: uuid.New()})

	events, err := j.Handle(context.Background(), domain.CompleteCommand{}, domain.Services{})
	require.NoError(t, err)
	assert.Equal(t, []domain.Event{domain.Completed{}}, events)

	apply(j, events)
	assert.Equal(t, domain.Complete, j.State())
}

func TestCompleteModifiedJourney(t *testing.T) {
	id := uuid.New()
	j := replay(domain.Started{ID: id}, domain.Modified{Step: "first_name", Data: "Joe"}, domain.StepProgressed{ToStep: "first_name"})

	events, err := j.Handle(context.Background(), domain.CompleteCommand{}, domain.Services{})
	require.NoError(t, err)
	assert.Equal(t, []domain.Event{domain.Completed{}}, events)

	apply(j, events)
	assert.Equal(t, domain.Complete, j.State())
	assert.Equal(t, "Joe", j.AccumulatedData()["first_name"])
}

func TestCompleteNotStarted(t *testing.T) {
	j := domain.New()
	_, err := j.Handle(context.Background(), domain.CompleteCommand{}, domain.Services{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompleteAlreadyCompleted(t *testing.T) {
	j := replay(domain.Started{ID: uuid.New()}, domain.Completed{})
	_, err := j.Handle(context.Background(), domain.CompleteCommand{}, domain.Services{})
	assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)
}

// TestBackwardNavigationIsStillAStepTransition mirrors spec.md's
// "backward navigation" scenario: moving to a step the journey has
// already visited in the past (but isn't currently on) still counts as
// a transition, since only the *immediately preceding* current_step is
// compared.
func TestBackwardNavigationIsStillAStepTransition(t *testing.T) {
	id := uuid.New()
	j := replay(
		domain.Started{ID: id},
		domain.Modified{Step: "step_1", Data: "a"},
		domain.StepProgressed{ToStep: "step_1"},
		domain.Modified{Step: "step_2", Data: "b"},
		domain.StepProgressed{FromStep: ptr("step_1"), ToStep: "step_2"},
	)

	events, err := j.Handle(context.Background(), domain.CaptureCommand{Step: "step_1", Data: "a2"}, domain.Services{})
	require.NoError(t, err)

	require.Len(t, events, 3)
	sp, ok := events[2].(domain.StepProgressed)
	require.True(t, ok)
	require.NotNil(t, sp.FromStep)
	assert.Equal(t, "step_2", *sp.FromStep)
	assert.Equal(t, "step_1", sp.ToStep)
}

func ptr(s string) *string { return &s }
