package store

import (
	"context"
	"errors"
	"time"

	"grant-intake/internal/common/observability"
	"grant-intake/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented wraps a Gateway with a span and an operation metric per
// call.
type Instrumented struct {
	next    Gateway
	obs     *observability.Observability
	backend string
}

func NewInstrumented(next Gateway, obs *observability.Observability, backend string) *Instrumented {
	return &Instrumented{next: next, obs: obs, backend: backend}
}

func (i *Instrumented) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	attrs = append(attrs, attribute.String("store.backend", i.backend))
	ctx, span := i.obs.Tracer().Start(ctx, "store."+op, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (i *Instrumented) finish(ctx context.Context, span trace.Span, op string, started time.Time, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	default:
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	i.obs.RecordOperation(ctx, "store."+i.backend, op, status, time.Since(started))
	span.End()
}

func (i *Instrumented) Save(ctx context.Context, id string, draft *models.ApplicationDraft) error {
	ctx, span, started := i.start(ctx, "save",
		attribute.String("draft.id", id),
		attribute.String("draft.status", string(draft.Status)),
	)
	err := i.next.Save(ctx, id, draft)
	i.finish(ctx, span, "save", started, err)
	return err
}

func (i *Instrumented) Load(ctx context.Context, id string) (*models.ApplicationDraft, error) {
	ctx, span, started := i.start(ctx, "load", attribute.String("draft.id", id))
	draft, err := i.next.Load(ctx, id)
	i.finish(ctx, span, "load", started, err)
	return draft, err
}

// Delete forwards to the wrapped gateway when it is an Invalidator.
func (i *Instrumented) Delete(ctx context.Context, id string) error {
	inv, ok := i.next.(Invalidator)
	if !ok {
		return ErrInvalidateUnsupported
	}
	ctx, span, started := i.start(ctx, "delete", attribute.String("draft.id", id))
	err := inv.Delete(ctx, id)
	i.finish(ctx, span, "delete", started, err)
	return err
}

func (i *Instrumented) List(ctx context.Context, filter ListFilter) ([]models.DraftSummary, error) {
	ctx, span, started := i.start(ctx, "list",
		attribute.String("filter.status", string(filter.Status)),
		attribute.Int("filter.limit", filter.PageSize()),
	)
	rows, err := i.next.List(ctx, filter)
	i.finish(ctx, span, "list", started, err)
	return rows, err
}
