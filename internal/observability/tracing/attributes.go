package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const maxErrorLength = 256

var allowedAttributeKeys = map[attribute.Key]struct{}{
	"request_id":              {},
	"tenant_id":               {},
	"student_id":              {},
	"class_id":                {},
	"parent_id":               {},
	"actor_role":              {},
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"fee.resource":            {},
	"fee.definitions":         {},
	"fee.discounts":           {},
	"fee.payments":            {},
	"fee.groups":              {},
	"fee.orphaned_payments":   {},
}

// SafeAttributes drops attributes outside the allow list so payloads and
// personal data never reach the tracing backend.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedAttributeKeys[attr.Key]; ok {
			out = append(out, attr)
		}
	}
	return out
}

// SafeError returns a copy of err with a bounded message.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength]
	}
	return errors.New(msg)
}

// ExtractContext pulls remote span context and baggage from carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
