package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	// HTTP status code threshold for considering a request successful
	successStatusCodeThreshold = http.StatusBadRequest
)

// SentryMetrics handles custom metrics for Sentry
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics client
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{
		enabled: true, // Always enabled if Sentry is configured
	}
}

// RecordAPIRequest records API request metrics
func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	// Create a span for API request tracking using the request context
	span := sentry.StartSpan(ctx, "api.request")
	defer span.Finish()

	// Set span tags
	span.SetTag("endpoint", endpoint)
	span.SetTag("status_code", fmt.Sprintf("%d", statusCode))
	span.SetTag("success", fmt.Sprintf("%t", statusCode < successStatusCodeThreshold))

	// Set span data
	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("endpoint", endpoint)
	span.SetData("status_code", statusCode)

	// Set span status based on response
	if statusCode < successStatusCodeThreshold {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	// Set span description
	span.Description = fmt.Sprintf("API Request: %s", endpoint)
}

// RecordPrediction records one prediction run against a checkpoint
func (m *SentryMetrics) RecordPrediction(ctx context.Context, checkpoint string, variations int, duration time.Duration, success bool) {
	if !m.enabled {
		return
	}

	// Attach summary tags to the transaction when one is active
	if transaction := sentry.TransactionFromContext(ctx); transaction != nil {
		transaction.SetTag("magnet.checkpoint", checkpoint)
		transaction.SetTag("magnet.variations", fmt.Sprintf("%d", variations))
		transaction.SetData("magnet.duration_ms", duration.Milliseconds())
	}

	// Child span for detailed tracking
	span := sentry.StartSpan(ctx, "magnet.prediction")
	defer span.Finish()

	span.SetTag("checkpoint", checkpoint)
	span.SetTag("variations", fmt.Sprintf("%d", variations))
	span.SetTag("success", fmt.Sprintf("%t", success))

	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("variations", variations)

	if success {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("Prediction: %s", checkpoint)
}

// RecordCheckpointReload records a checkpoint swap forced by a request
func (m *SentryMetrics) RecordCheckpointReload(ctx context.Context, checkpoint string, duration time.Duration) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "magnet.checkpoint_reload")
	defer span.Finish()

	span.SetTag("checkpoint", checkpoint)
	span.SetData("duration_ms", duration.Milliseconds())
	span.Status = sentry.SpanStatusOK
	span.Description = fmt.Sprintf("Checkpoint Reload: %s", checkpoint)
}

// RecordCustomMetric sends a custom metric with arbitrary data
func (m *SentryMetrics) RecordCustomMetric(metricName string, data map[string]interface{}) {
	if !m.enabled {
		return
	}

	ctx := context.Background()
	span := sentry.StartSpan(ctx, "custom.metric")
	defer span.Finish()

	span.SetTag("metric_name", metricName)
	for key, value := range data {
		span.SetData(key, value)
	}

	span.Status = sentry.SpanStatusOK
	span.Description = fmt.Sprintf("Custom Metric: %s", metricName)
}
