package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("society_id", "123"),
		attribute.String("unit_id", "456"),
		attribute.String("amount_type", "flat"),
		attribute.String("reason", "duplicate"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "society_id" || attr.Key == "unit_id" {
			t.Fatalf("identifier label %q must be dropped", attr.Key)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordBillGenerated(context.Background(), "flat")
	m.RecordPayment(context.Background(), "cash")
	m.RecordRuleConflict(context.Background(), "general")
}

func TestNoopMetricsRecord(t *testing.T) {
	m := NewNoop()
	if m == nil {
		t.Fatalf("expected noop metrics")
	}
	m.RecordGenerationRejected(context.Background(), "no_rule")
	m.RecordPenaltyEvaluation(context.Background(), "overdue")
}
