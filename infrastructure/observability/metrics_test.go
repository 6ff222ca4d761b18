package observability

import (
	"context"
	"testing"
	"time"

	"surveydraw/config"
	"surveydraw/events"
	"surveydraw/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func enabledConfig() *config.Config {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	return cfg
}

// counterTotal sums all data points of the named Int64 sum metric
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestMetricsProvider_DisabledIsNoop(t *testing.T) {
	mp := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, mp.Initialize(context.Background()))

	assert.NotPanics(t, func() {
		mp.RecordResponseSubmitted(true)
		mp.RecordDuplicateRejected()
		mp.RecordDrawCompleted(3)
		mp.RecordNotification("sent")
	})
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestMetricsProvider_NoneExporterDoesNotPanic(t *testing.T) {
	mp := NewMetricsProvider(enabledConfig())
	require.NoError(t, mp.Initialize(context.Background()))

	assert.NotPanics(t, func() {
		mp.RecordResponseSubmitted(false)
		mp.RecordDrawCompleted(10)
	})
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestMetricsProvider_UnknownExporter(t *testing.T) {
	cfg := enabledConfig()
	cfg.OTelExporterType = "prometheus"

	err := NewMetricsProvider(cfg).Initialize(context.Background())
	assert.ErrorContains(t, err, "unknown exporter type")
}

func TestMetricsProvider_RecordsDirectCalls(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMetricsProviderWithReader(enabledConfig(), reader)
	require.NoError(t, mp.Initialize(context.Background()))
	defer mp.Shutdown(context.Background())

	mp.RecordResponseSubmitted(true)
	mp.RecordResponseSubmitted(false)
	mp.RecordDuplicateRejected()
	mp.RecordDrawCompleted(12)
	mp.RecordNotification(string(models.NotificationStatusFailed))

	assert.Equal(t, int64(2), counterTotal(t, reader, ResponsesSubmittedTotal))
	assert.Equal(t, int64(1), counterTotal(t, reader, DuplicatesRejectedTotal))
	assert.Equal(t, int64(1), counterTotal(t, reader, DrawsCompletedTotal))
	assert.Equal(t, int64(1), counterTotal(t, reader, NotificationsRecordedTotal))
}

func TestMetricsProvider_RegisterCountsBusEvents(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMetricsProviderWithReader(enabledConfig(), reader)
	require.NoError(t, mp.Initialize(context.Background()))
	defer mp.Shutdown(context.Background())

	bus := events.NewBus()
	mp.Register(bus)

	ctx := context.Background()
	bus.Emit(ctx, events.ResponseSubmittedEvent{SurveyInstanceID: "S1", HasLottery: true})
	bus.Emit(ctx, events.DuplicateRejectedEvent{SurveyInstanceID: "S1"})
	bus.Emit(ctx, events.DrawCompletedEvent{DrawID: 1, SurveyInstanceID: "S1", CandidateCount: 3})
	bus.Emit(ctx, events.WinnerNotificationRecordedEvent{DrawID: 1, Status: models.NotificationStatusSent})

	assert.Eventually(t, func() bool {
		return counterTotal(t, reader, ResponsesSubmittedTotal) == 1 &&
			counterTotal(t, reader, DuplicatesRejectedTotal) == 1 &&
			counterTotal(t, reader, DrawsCompletedTotal) == 1 &&
			counterTotal(t, reader, NotificationsRecordedTotal) == 1
	}, time.Second, 10*time.Millisecond)
}
