package otel

import (
	"context"

	otel "go.opentelemetry.io/otel"
	attribute "go.opentelemetry.io/otel/attribute"
	prometheus "go.opentelemetry.io/otel/exporters/prometheus"
	metric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	resource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	zap "go.uber.org/zap"

	config "github.com/agentmesh/a2a-go/server/config"
)

// OpenTelemetry defines the operations for telemetry
type OpenTelemetry interface {
	// Application level metrics
	RecordRequestCount(ctx context.Context, attrs TelemetryAttributes, requestType string)
	RecordResponseStatus(ctx context.Context, attrs TelemetryAttributes, requestType, requestPath string, statusCode int)
	RecordRequestDuration(ctx context.Context, attrs TelemetryAttributes, requestType, requestPath string, durationMs float64)
	RecordTaskCompleted(ctx context.Context, attrs TelemetryAttributes, success bool)

	// Shutdown the telemetry system
	ShutDown(ctx context.Context) error
}

// TelemetryAttributes carry the per-agent dimensions attached to every metric
type TelemetryAttributes struct {
	AgentName string
	TaskID    string
}

type OpenTelemetryImpl struct {
	logger        *zap.Logger
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	// Metrics
	requestCounter           metric.Int64Counter
	responseStatusCounter    metric.Int64Counter
	requestDurationHistogram metric.Float64Histogram
	taskCompletedCounter     metric.Int64Counter
}

var _ OpenTelemetry = (*OpenTelemetryImpl)(nil)

// NewOpenTelemetry builds a prometheus-backed meter provider and registers it
// globally. The exporter is scraped via the metrics server, not pushed.
func NewOpenTelemetry(cfg *config.Config, logger *zap.Logger) (OpenTelemetry, error) {
	o := &OpenTelemetryImpl{logger: logger}

	logger.Info("initializing opentelemetry", zap.String("agent_name", cfg.AgentName), zap.String("version", cfg.AgentVersion))

	exporter, err := prometheus.New()
	if err != nil {
		logger.Error("failed to create prometheus exporter", zap.Error(err))
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.AgentName),
		semconv.ServiceVersion(cfg.AgentVersion),
	)

	histogramBoundaries := []float64{1, 5, 10, 25, 50, 75, 100, 250, 500, 750, 1000, 2500, 5000, 7500, 10000}

	latencyView := sdkmetric.NewView(
		sdkmetric.Instrument{
			Kind: sdkmetric.InstrumentKindHistogram,
		},
		sdkmetric.Stream{
			Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				Boundaries: histogramBoundaries,
			},
		},
	)

	o.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithView(latencyView),
	)
	otel.SetMeterProvider(o.meterProvider)

	o.meter = o.meterProvider.Meter(cfg.AgentName)

	o.requestCounter, err = o.meter.Int64Counter("a2a_requests_total",
		metric.WithDescription("Total number of JSON-RPC requests received"))
	if err != nil {
		return nil, err
	}

	o.responseStatusCounter, err = o.meter.Int64Counter("a2a_responses_total",
		metric.WithDescription("Total number of responses by HTTP status code"))
	if err != nil {
		return nil, err
	}

	o.requestDurationHistogram, err = o.meter.Float64Histogram("a2a_request_duration_milliseconds",
		metric.WithDescription("Request processing duration in milliseconds"))
	if err != nil {
		return nil, err
	}

	o.taskCompletedCounter, err = o.meter.Int64Counter("a2a_tasks_completed_total",
		metric.WithDescription("Total number of tasks that reached a terminal state"))
	if err != nil {
		return nil, err
	}

	logger.Debug("opentelemetry metrics initialized")

	return o, nil
}

func (o *OpenTelemetryImpl) RecordRequestCount(ctx context.Context, attrs TelemetryAttributes, requestType string) {
	attributes := []attribute.KeyValue{
		attribute.String("agent", attrs.AgentName),
		attribute.String("request_type", requestType),
	}

	o.requestCounter.Add(ctx, 1, metric.WithAttributes(attributes...))
}

func (o *OpenTelemetryImpl) RecordResponseStatus(ctx context.Context, attrs TelemetryAttributes, requestType, requestPath string, statusCode int) {
	attributes := []attribute.KeyValue{
		attribute.String("agent", attrs.AgentName),
		attribute.String("request_method", requestType),
		attribute.String("request_path", requestPath),
		attribute.Int("status_code", statusCode),
	}

	o.responseStatusCounter.Add(ctx, 1, metric.WithAttributes(attributes...))
}

func (o *OpenTelemetryImpl) RecordRequestDuration(ctx context.Context, attrs TelemetryAttributes, requestType, requestPath string, durationMs float64) {
	attributes := []attribute.KeyValue{
		attribute.String("agent", attrs.AgentName),
		attribute.String("request_method", requestType),
		attribute.String("request_path", requestPath),
	}

	o.requestDurationHistogram.Record(ctx, durationMs, metric.WithAttributes(attributes...))
}

func (o *OpenTelemetryImpl) RecordTaskCompleted(ctx context.Context, attrs TelemetryAttributes, success bool) {
	attributes := []attribute.KeyValue{
		attribute.String("agent", attrs.AgentName),
		attribute.Bool("success", success),
	}

	o.taskCompletedCounter.Add(ctx, 1, metric.WithAttributes(attributes...))
}

func (o *OpenTelemetryImpl) ShutDown(ctx context.Context) error {
	return o.meterProvider.Shutdown(ctx)
}
