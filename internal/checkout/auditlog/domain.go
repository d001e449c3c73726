// Package auditlog defines the append-only trail of checkout executions.
//
// Every checkout writes one row per lifecycle transition. The trail serves
// two purposes:
//
//  1. Observability: you can query the DB to see exactly where a checkout is
//     (or was) and correlate it with a distributed trace via trace_id.
//
//  2. Forensics: a FAILED row names the step and reason, so an oversell
//     report can be answered from the log instead of from guesswork.
package auditlog

import "time"

// Status represents the lifecycle state of a checkout execution.
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusFailed       Status = "FAILED"
)

// Entry is a single row in the checkout_logs table: a point-in-time snapshot
// of one checkout execution.
type Entry struct {
	// CheckoutID identifies the execution. It doubles as the order ID when
	// the checkout succeeds, so the log joins with business data.
	CheckoutID string

	// Status is the lifecycle state at the time this row was written.
	Status Status

	// CurrentStep names the step that just executed or failed.
	CurrentStep string

	// Detail carries the failure reason on COMPENSATING/FAILED rows.
	Detail string

	// TraceID / SpanID are the W3C identifiers of the OpenTelemetry span
	// active when the row was written; they allow jumping from a log row
	// straight to the distributed trace.
	TraceID string
	SpanID  string

	UpdatedAt time.Time
}
