package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rollcallhq/rollcall/internal/config"
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

// Metrics exposes application-level instruments.
type Metrics struct {
	admissionAllowed metric.Int64Counter
	admissionDenied  metric.Int64Counter
	accountsCreated  metric.Int64Counter
	planChanges      metric.Int64Counter
	webhookEvents    metric.Int64Counter
}

// NewMeterProvider configures and registers the meter provider.
func NewMeterProvider(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.MetricsEnabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.MetricsProtocol, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down meter provider")
			return provider.Shutdown(ctx)
		},
	})

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("protocol", cfg.MetricsProtocol),
	)
	return provider, nil
}

// NewMetrics configures the domain metric instruments.
func NewMetrics(cfg config.Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "rollcall"
	}
	meter := provider.Meter(name)

	admissionAllowed, err := meter.Int64Counter("rollcall_admission_allowed_total")
	if err != nil {
		return nil, err
	}
	admissionDenied, err := meter.Int64Counter("rollcall_admission_denied_total")
	if err != nil {
		return nil, err
	}
	accountsCreated, err := meter.Int64Counter("rollcall_accounts_created_total")
	if err != nil {
		return nil, err
	}
	planChanges, err := meter.Int64Counter("rollcall_plan_changes_total")
	if err != nil {
		return nil, err
	}
	webhookEvents, err := meter.Int64Counter("rollcall_webhook_events_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		admissionAllowed: admissionAllowed,
		admissionDenied:  admissionDenied,
		accountsCreated:  accountsCreated,
		planChanges:      planChanges,
		webhookEvents:    webhookEvents,
	}, nil
}

// RecordAdmission counts quota admission decisions by resource key.
func (m *Metrics) RecordAdmission(ctx context.Context, resourceKey string, allowed bool, reason string) {
	if m == nil {
		return
	}
	if allowed {
		attrs := FilterAttributes(attribute.String("resource_key", strings.TrimSpace(resourceKey)))
		m.admissionAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}
	attrs := FilterAttributes(
		attribute.String("resource_key", strings.TrimSpace(resourceKey)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.admissionDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAccountCreated counts provisioned accounts by role.
func (m *Metrics) RecordAccountCreated(ctx context.Context, role string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("role", strings.TrimSpace(role)))
	m.accountsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPlanChange counts plan change attempts by outcome.
func (m *Metrics) RecordPlanChange(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.planChanges.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWebhookEvent counts ingested provider events.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, provider, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
	)
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"resource_key": {},
	"reason":       {},
	"role":         {},
	"outcome":      {},
	"provider":     {},
	"event_type":   {},
	"endpoint":     {},
	"status_code":  {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
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
