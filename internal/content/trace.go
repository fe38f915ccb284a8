package content

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/kingrea/worldforge/internal/content"

// Trace wraps svc so every call is recorded as a span on the global tracer
// provider. Without a configured provider the spans are no-ops.
func Trace(svc Service, backend string) Service {
	return &traced{next: svc, backend: backend, tracer: otel.Tracer(tracerName)}
}

type traced struct {
	next    Service
	backend string
	tracer  trace.Tracer
}

func (t *traced) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	ctx, span := t.tracer.Start(ctx, "content.GenerateText", trace.WithAttributes(
		attribute.String("content.backend", t.backend),
		attribute.String("content.step", req.Step),
		attribute.String("content.subject", req.Subject),
		attribute.Bool("content.repair", req.Repair),
		attribute.Bool("content.has_image", req.Image != nil),
	))
	defer span.End()
	out, err := t.next.GenerateText(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	span.SetAttributes(attribute.Int("content.response_bytes", len(out)))
	return out, nil
}

func (t *traced) GenerateImage(ctx context.Context, req ImageRequest) (Picture, error) {
	ctx, span := t.tracer.Start(ctx, "content.GenerateImage", trace.WithAttributes(
		attribute.String("content.backend", t.backend),
		attribute.String("content.image_kind", string(req.Kind)),
		attribute.String("content.subject", req.Subject),
	))
	defer span.End()
	pic, err := t.next.GenerateImage(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return pic, err
}
