package decision

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/redbadger/journey-dynamics/internal/domain"
	"github.com/redbadger/journey-dynamics/internal/pkg/worker"
)

// RegoEngine evaluates a compiled decision graph expressed as a Rego
// policy. The policy is compiled once at construction (NewRegoEngine);
// each Evaluate call supplies a fresh input document and runs the
// prepared query on the decision worker pool, never on the caller's own
// goroutine — Rego evaluation is CPU-bound and the reference system's
// equivalent engine explicitly isn't safe to invoke inline on an async
// runtime thread (it spawns a blocking task per evaluation). A
// rego.PreparedEvalQuery is itself safe for concurrent Eval calls, so
// unlike the reference engine we don't need to rebuild it per call — only
// route its execution through the blocking pool.
type RegoEngine struct {
	query rego.PreparedEvalQuery
	pool  *worker.Pool
}

// NewRegoEngine compiles policy (a Rego module body) under the query
// "data.journey.decision" — by convention, the module's package is
// journey.decision and binds a single rule named decision.
func NewRegoEngine(ctx context.Context, policy string, pool *worker.Pool) (*RegoEngine, error) {
	query, err := rego.New(
		rego.Query("data.journey.decision"),
		rego.Module("journey_decision.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("decision: compile policy: %w", err)
	}
	return &RegoEngine{query: query, pool: pool}, nil
}

var _ Engine = (*RegoEngine)(nil)

// Evaluate implements domain.DecisionEngine.
func (e *RegoEngine) Evaluate(ctx context.Context, ec domain.EvaluationContext) (domain.Decision, error) {
	type outcome struct {
		decision domain.Decision
		err      error
	}
	done := make(chan outcome, 1)

	input := assembleContext(ec)
	submitErr := e.pool.Submit(ctx, func(ctx context.Context) {
		rs, err := e.query.Eval(ctx, rego.EvalInput(input))
		if err != nil {
			done <- outcome{err: fmt.Errorf("decision: evaluate policy: %w", err)}
			return
		}
		result, err := firstResultObject(rs)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		suggestions, ok := extractSuggestions(result)
		if !ok {
			done <- outcome{err: fmt.Errorf("decision: no suggestion field found in result (looked for %v)", resultFields)}
			return
		}
		done <- outcome{decision: domain.Decision{
			SuggestedActions: suggestions,
			PrimaryNextStep:  extractPrimaryNextStep(result),
		}}
	})
	if submitErr != nil {
		return domain.Decision{}, fmt.Errorf("decision: submit evaluation: %w", submitErr)
	}

	select {
	case <-ctx.Done():
		return domain.Decision{}, ctx.Err()
	case o := <-done:
		return o.decision, o.err
	}
}

// firstResultObject extracts the single expression value of rs as a
// map[string]any, the shape a Rego rule binding an object yields.
func firstResultObject(rs rego.ResultSet) (map[string]any, error) {
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, fmt.Errorf("decision: policy produced no result")
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decision: policy result is not an object")
	}
	return obj, nil
}
