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

// Metrics exposes application-level instruments.
type Metrics struct {
	menuResolutions  metric.Int64Counter
	permissionChecks metric.Int64Counter
	enterpriseLoads  metric.Int64Counter
	staleDiscards    metric.Int64Counter
	rateLimited      metric.Int64Counter
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

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "console"
	}
	meter := provider.Meter(name)

	menuResolutions, err := meter.Int64Counter("console_settings_menu_resolutions_total")
	if err != nil {
		return nil, err
	}
	permissionChecks, err := meter.Int64Counter("console_permission_checks_total")
	if err != nil {
		return nil, err
	}
	enterpriseLoads, err := meter.Int64Counter("console_enterprise_loads_total")
	if err != nil {
		return nil, err
	}
	staleDiscards, err := meter.Int64Counter("console_stale_results_discarded_total")
	if err != nil {
		return nil, err
	}
	rateLimited, err := meter.Int64Counter("console_rate_limited_requests_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		menuResolutions:  menuResolutions,
		permissionChecks: permissionChecks,
		enterpriseLoads:  enterpriseLoads,
		staleDiscards:    staleDiscards,
		rateLimited:      rateLimited,
	}, nil
}

// RecordMenuResolution counts finished settings menu resolutions.
func (m *Metrics) RecordMenuResolution(ctx context.Context, edition, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("edition", strings.TrimSpace(edition)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.menuResolutions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPermissionCheck counts per-link permission checks by outcome
// (granted, denied, failed).
func (m *Metrics) RecordPermissionCheck(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.permissionChecks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEnterpriseLoad counts enterprise value producer invocations.
func (m *Metrics) RecordEnterpriseLoad(ctx context.Context, feature, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("feature", strings.TrimSpace(feature)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.enterpriseLoads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStaleDiscard counts async results dropped because a newer
// generation superseded them.
func (m *Metrics) RecordStaleDiscard(ctx context.Context, feature string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("feature", strings.TrimSpace(feature)))
	m.staleDiscards.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimited counts requests rejected by the per-user limiter.
func (m *Metrics) RecordRateLimited(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"edition":     {},
	"outcome":     {},
	"feature":     {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
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
