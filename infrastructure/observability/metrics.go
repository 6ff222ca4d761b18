package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"surveydraw/config"
	"surveydraw/events"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// MetricsProvider manages OpenTelemetry metrics for the survey service
type MetricsProvider struct {
	config        *config.Config
	reader        sdkmetric.Reader
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	responsesSubmittedCounter    metric.Int64Counter
	duplicatesRejectedCounter    metric.Int64Counter
	drawsCompletedCounter        metric.Int64Counter
	drawCandidatesHist           metric.Int64Histogram
	notificationsRecordedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// NewMetricsProviderWithReader creates a provider that exports through the given reader
// instead of the configured exporter.
func NewMetricsProviderWithReader(cfg *config.Config, reader sdkmetric.Reader) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
		reader: reader,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	options := []sdkmetric.Option{sdkmetric.WithResource(res)}

	reader, err := mp.buildReader(ctx)
	if err != nil {
		return err
	}
	// "none" keeps a reader-less provider so the instruments stay valid no-ops
	if reader != nil {
		options = append(options, sdkmetric.WithReader(reader))
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(options...)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("surveydraw")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.WithField("exporter", mp.config.OTelExporterType).Info("Metrics provider initialized successfully")
	return nil
}

func (mp *MetricsProvider) buildReader(ctx context.Context) (sdkmetric.Reader, error) {
	if mp.reader != nil {
		return mp.reader, nil
	}

	interval := sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis) * time.Millisecond)

	switch mp.config.OTelExporterType {
	case "console":
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exporter, interval), nil

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")
		return sdkmetric.NewPeriodicReader(exporter, interval), nil

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.responsesSubmittedCounter, err = mp.meter.Int64Counter(
		ResponsesSubmittedTotal,
		metric.WithDescription("Total number of survey responses stored"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create responses submitted counter: %w", err)
	}

	mp.duplicatesRejectedCounter, err = mp.meter.Int64Counter(
		DuplicatesRejectedTotal,
		metric.WithDescription("Total number of lottery entries rejected as duplicates"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create duplicates rejected counter: %w", err)
	}

	mp.drawsCompletedCounter, err = mp.meter.Int64Counter(
		DrawsCompletedTotal,
		metric.WithDescription("Total number of completed prize draws"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create draws completed counter: %w", err)
	}

	mp.drawCandidatesHist, err = mp.meter.Int64Histogram(
		DrawCandidates,
		metric.WithDescription("Number of eligible candidates per draw"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000),
	)
	if err != nil {
		return fmt.Errorf("failed to create draw candidates histogram: %w", err)
	}

	mp.notificationsRecordedCounter, err = mp.meter.Int64Counter(
		NotificationsRecordedTotal,
		metric.WithDescription("Total number of winner notification outcomes recorded"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create notifications recorded counter: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// Register subscribes the provider to the domain events it counts
func (mp *MetricsProvider) Register(bus *events.Bus) {
	bus.Subscribe(events.EventTypeResponseSubmitted, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.ResponseSubmittedEvent); ok {
			mp.RecordResponseSubmitted(e.HasLottery)
		}
	})
	bus.Subscribe(events.EventTypeDuplicateRejected, func(ctx context.Context, event events.Event) {
		mp.RecordDuplicateRejected()
	})
	bus.Subscribe(events.EventTypeDrawCompleted, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.DrawCompletedEvent); ok {
			mp.RecordDrawCompleted(e.CandidateCount)
		}
	})
	bus.Subscribe(events.EventTypeWinnerNotificationRecorded, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.WinnerNotificationRecordedEvent); ok {
			mp.RecordNotification(string(e.Status))
		}
	})
}

// RecordResponseSubmitted records a stored response
func (mp *MetricsProvider) RecordResponseSubmitted(lottery bool) {
	if !mp.isEnabled() {
		return
	}

	mp.responsesSubmittedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.Bool(LabelLottery, lottery),
		),
	)
}

// RecordDuplicateRejected records a rejected duplicate entry
func (mp *MetricsProvider) RecordDuplicateRejected() {
	if !mp.isEnabled() {
		return
	}

	mp.duplicatesRejectedCounter.Add(context.Background(), 1)
}

// RecordDrawCompleted records a completed draw and its candidate pool size
func (mp *MetricsProvider) RecordDrawCompleted(candidateCount int) {
	if !mp.isEnabled() {
		return
	}

	mp.drawsCompletedCounter.Add(context.Background(), 1)
	mp.drawCandidatesHist.Record(context.Background(), int64(candidateCount))
}

// RecordNotification records a winner notification outcome
func (mp *MetricsProvider) RecordNotification(status string) {
	if !mp.isEnabled() {
		return
	}

	mp.notificationsRecordedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelStatus, status),
		),
	)
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.config.OTelEnabled
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
