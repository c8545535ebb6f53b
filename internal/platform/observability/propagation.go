package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InjectFields writes the trace context of ctx into stream event fields and
// returns the same map. A nil map is allocated.
func InjectFields(ctx context.Context, fields map[string]string) map[string]string {
	if fields == nil {
		fields = make(map[string]string)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(fields))
	return fields
}

// ExtractFields returns ctx carrying the remote span context found in the
// event fields, if any.
func ExtractFields(ctx context.Context, fields map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(fields))
}
