// Package tracer provides a lightweight tracing abstraction for the
// compliance module, keeping verification code decoupled from OpenTelemetry
// APIs. NoopTracer serves tests; OTelTracer is the production adapter.
package tracer

import "context"

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	// End must be called exactly once, typically via defer.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Span names used by the compliance module.
const (
	SpanIsVerified = "compliance.is_verified"
	SpanTopicCheck = "compliance.topic_check"
)

// Attribute keys used by the compliance module.
const (
	AttrWallet   = "wallet"
	AttrIdentity = "identity"
	AttrTopic    = "topic"
	AttrVerified = "verified"
	AttrIssuers  = "trusted_issuers"
)
