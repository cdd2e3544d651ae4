// Package telemetry traces dockwatch operations with OpenTelemetry.
//
// A startup operation is a root span carrying its plan of steps; each step
// is a child span. The provider turns those spans into step snapshots for
// the CLI and logs every finished span at debug level.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	PlanEventName = "dockwatch.plan"
	PlanJSONKey   = "dockwatch.plan.json"

	defaultOperation = "operation"
)

type PlannedStep struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Plan struct {
	Steps []PlannedStep `json:"steps"`
}

// Operation is a traced unit of work made of planned steps.
type Operation struct {
	ctx    context.Context
	tracer trace.Tracer
	span   trace.Span
}

// Start opens the root span for an operation and attaches its plan.
func Start(ctx context.Context, tracer trace.Tracer, name string, plan Plan) (*Operation, error) {
	if tracer == nil {
		return nil, fmt.Errorf("start operation: tracer is required")
	}
	if err := validatePlan(plan); err != nil {
		return nil, fmt.Errorf("start operation: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultOperation
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("start operation: marshal plan: %w", err)
	}
	attr := attribute.String(PlanJSONKey, string(planJSON))
	spanCtx, span := tracer.Start(ctx, name, trace.WithAttributes(attr))
	span.AddEvent(PlanEventName, trace.WithAttributes(attr))

	return &Operation{ctx: spanCtx, tracer: tracer, span: span}, nil
}

func (o *Operation) Context() context.Context {
	if o == nil {
		return context.Background()
	}
	return o.ctx
}

// Step runs fn inside a child span named id. A returned error marks the
// span failed and is passed through.
func (o *Operation) Step(id string, fn func(context.Context) error) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("run step: step id is required")
	}
	if o == nil || o.tracer == nil {
		return fn(context.Background())
	}

	ctx, span := o.tracer.Start(o.ctx, id)
	defer span.End()

	if err := fn(ctx); err != nil {
		fail(span, err)
		return err
	}
	return nil
}

func (o *Operation) End(err error) {
	if o == nil || o.span == nil {
		return
	}
	if err != nil {
		fail(o.span, err)
	}
	o.span.End()
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
}

func validatePlan(plan Plan) error {
	seen := make(map[string]struct{}, len(plan.Steps))
	for i, step := range plan.Steps {
		id := strings.TrimSpace(step.ID)
		if id == "" {
			return fmt.Errorf("step %d has empty id", i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("duplicate step id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
