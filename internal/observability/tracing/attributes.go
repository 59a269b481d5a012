package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var sensitiveKeys = []string{"transaction_ref", "resident", "token", "authorization", "password"}

// ExtractContext pulls remote span context and baggage from carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes drops attributes whose key looks like it carries personal or payment data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if isSensitive(string(attr.Key)) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError returns an error whose message is safe to attach to a span.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if isSensitive(msg) {
		return errors.New("redacted")
	}
	return err
}

func isSensitive(value string) bool {
	value = strings.ToLower(value)
	for _, key := range sensitiveKeys {
		if strings.Contains(value, key) {
			return true
		}
	}
	return false
}
