package auditlog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// NewEntry builds an Entry with trace/span ids extracted from the active
// OpenTelemetry span in ctx. If the context carries no valid span (e.g. in
// unit tests), both ids are left empty.
func NewEntry(ctx context.Context, checkoutID string, status Status, currentStep, detail string) *Entry {
	e := &Entry{
		CheckoutID:  checkoutID,
		Status:      status,
		CurrentStep: currentStep,
		Detail:      detail,
		UpdatedAt:   time.Now().UTC(),
	}

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}
