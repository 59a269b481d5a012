package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes billing-level instruments.
type Metrics struct {
	billsGenerated     metric.Int64Counter
	generationRejected metric.Int64Counter
	paymentsRecorded   metric.Int64Counter
	penaltyEvaluations metric.Int64Counter
	ruleConflicts      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the billing instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "societybill"
	}
	meter := provider.Meter(name)

	billsGenerated, err := meter.Int64Counter("bills_generated_total")
	if err != nil {
		return nil, err
	}
	generationRejected, err := meter.Int64Counter("bill_generation_rejected_total")
	if err != nil {
		return nil, err
	}
	paymentsRecorded, err := meter.Int64Counter("payments_recorded_total")
	if err != nil {
		return nil, err
	}
	penaltyEvaluations, err := meter.Int64Counter("penalty_evaluations_total")
	if err != nil {
		return nil, err
	}
	ruleConflicts, err := meter.Int64Counter("rule_conflicts_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		billsGenerated:     billsGenerated,
		generationRejected: generationRejected,
		paymentsRecorded:   paymentsRecorded,
		penaltyEvaluations: penaltyEvaluations,
		ruleConflicts:      ruleConflicts,
	}, nil
}

// NewNoop returns instruments backed by the no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordBillGenerated(ctx context.Context, amountType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("amount_type", strings.TrimSpace(amountType)))
	m.billsGenerated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGenerationRejected counts generation attempts refused for a low-cardinality reason.
func (m *Metrics) RecordGenerationRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.generationRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPayment(ctx context.Context, method string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("payment_method", strings.TrimSpace(method)))
	m.paymentsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPenaltyEvaluation(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.penaltyEvaluations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRuleConflict counts resolutions where more than one rule matched in the winning tier.
func (m *Metrics) RecordRuleConflict(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("scope", strings.TrimSpace(scope)))
	m.ruleConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"amount_type":    {},
	"scope":          {},
	"status":         {},
	"reason":         {},
	"payment_method": {},
	"status_code":    {},
	"route":          {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
// Society, unit and bill identifiers never become labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
