package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"herald/config"

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

// Counter reports a current size, such as pending timers or attached listeners
type Counter interface {
	Count() int
}

// CounterFunc adapts a function to Counter
type CounterFunc func() int

// Count calls f
func (f CounterFunc) Count() int {
	return f()
}

// MetricsProvider manages OpenTelemetry metrics for herald
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	discordEventsCounter         metric.Int64Counter
	giveawaysResolvedCounter     metric.Int64Counter
	roleMutationsCounter         metric.Int64Counter
	reconciledCounter            metric.Int64Counter
	natsMessagesPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Info("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	var reader sdkmetric.Reader
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err := stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		reader = mp.periodicReader(exporter)
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		reader = mp.periodicReader(exporter)
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	if err := mp.start(reader); err != nil {
		return err
	}

	// Set as global meter provider
	otel.SetMeterProvider(mp.meterProvider)

	log.Info("Metrics provider initialized successfully")
	return nil
}

// InitializeWithReader sets up the provider on a caller supplied reader.
// Tests use it with a manual reader.
func (mp *MetricsProvider) InitializeWithReader(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		return nil
	}
	return mp.start(reader)
}

func (mp *MetricsProvider) periodicReader(exporter sdkmetric.Exporter) sdkmetric.Reader {
	return sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
	)
}

// start must be called with mp.mu held
func (mp *MetricsProvider) start(reader sdkmetric.Reader) error {
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

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	mp.meter = mp.meterProvider.Meter("herald")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.discordEventsCounter, err = mp.meter.Int64Counter(
		DiscordEventsTotal,
		metric.WithDescription("Total number of Discord events handled"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create discord events counter: %w", err)
	}

	mp.giveawaysResolvedCounter, err = mp.meter.Int64Counter(
		GiveawaysResolvedTotal,
		metric.WithDescription("Total number of giveaway resolution attempts by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create giveaways resolved counter: %w", err)
	}

	mp.roleMutationsCounter, err = mp.meter.Int64Counter(
		RoleMutationsTotal,
		metric.WithDescription("Total number of role grants and revocations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create role mutations counter: %w", err)
	}

	mp.reconciledCounter, err = mp.meter.Int64Counter(
		ReconciledTotal,
		metric.WithDescription("Total number of records handled by startup reconciliation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create reconciled counter: %w", err)
	}

	mp.natsMessagesPublishedCounter, err = mp.meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	return nil
}

// RegisterGauges exposes the pending timer and attached listener counts
func (mp *MetricsProvider) RegisterGauges(timers, attached Counter) error {
	if !mp.isEnabled() {
		return nil
	}

	_, err := mp.meter.Int64ObservableGauge(
		TimersPending,
		metric.WithDescription("Current number of armed giveaway deadline timers"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			o.Observe(int64(timers.Count()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create timers pending gauge: %w", err)
	}

	_, err = mp.meter.Int64ObservableGauge(
		ListenersAttached,
		metric.WithDescription("Current number of attached participation listeners"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			o.Observe(int64(attached.Count()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create listeners attached gauge: %w", err)
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

// RecordDiscordEvent records a Discord event being handled
func (mp *MetricsProvider) RecordDiscordEvent(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.discordEventsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelType, eventType),
		),
	)
}

// RecordGiveawayResolved records the outcome of a giveaway resolution attempt
func (mp *MetricsProvider) RecordGiveawayResolved(outcome string) {
	if !mp.isEnabled() {
		return
	}

	mp.giveawaysResolvedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelOutcome, outcome),
		),
	)
}

// RecordRoleMutation records a role grant or revocation
func (mp *MetricsProvider) RecordRoleMutation(action string, success bool) {
	if !mp.isEnabled() {
		return
	}

	mp.roleMutationsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelAction, action),
			attribute.Bool(LabelSuccess, success),
		),
	)
}

// RecordReconciled records a record visited by startup reconciliation
func (mp *MetricsProvider) RecordReconciled(campaign, outcome string) {
	if !mp.isEnabled() {
		return
	}

	mp.reconciledCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelCampaign, campaign),
			attribute.String(LabelOutcome, outcome),
		),
	)
}

// RecordNATSMessagePublished records a NATS publish attempt
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string, success bool) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
			attribute.Bool(LabelSuccess, success),
		),
	)
}

// isEnabled checks if metrics are initialized with a live meter
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meter != nil
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
