package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Domain metrics, registered by Init.
var (
	AdapterCalls       metric.Int64Counter
	AdapterErrors      metric.Int64Counter
	CatalogUpserts     metric.Int64Counter
	ScrapeDuration     metric.Float64Histogram
	PricingLookups     metric.Int64Counter
	MailSyncEmails     metric.Int64Counter
	MailSyncDeletes    metric.Int64Counter
	DmarcRowsInserted  metric.Int64Counter
	TagPropagationRuns metric.Int64Counter
)

// Count adds to a counter, tolerating an uninitialised pipeline (metrics
// are optional outside the serve command).
func Count(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, n, metric.WithAttributes(attrs...))
}

// Observe records a histogram sample when the pipeline is initialised.
func Observe(ctx context.Context, h metric.Float64Histogram, v float64, attrs ...attribute.KeyValue) {
	if h == nil {
		return
	}
	h.Record(ctx, v, metric.WithAttributes(attrs...))
}

func initMetrics() error {
	var err error

	if AdapterCalls, err = Meter.Int64Counter("stratus.adapter.calls",
		metric.WithDescription("Cloud adapter operations issued")); err != nil {
		return fmt.Errorf("create adapter calls counter: %w", err)
	}
	if AdapterErrors, err = Meter.Int64Counter("stratus.adapter.errors",
		metric.WithDescription("Cloud adapter operations that failed after retries")); err != nil {
		return fmt.Errorf("create adapter errors counter: %w", err)
	}
	if CatalogUpserts, err = Meter.Int64Counter("stratus.catalog.upserts",
		metric.WithDescription("Catalog rows written")); err != nil {
		return fmt.Errorf("create catalog upserts counter: %w", err)
	}
	if ScrapeDuration, err = Meter.Float64Histogram("stratus.scrape.duration_seconds",
		metric.WithDescription("Wall time of one scraper pass")); err != nil {
		return fmt.Errorf("create scrape duration histogram: %w", err)
	}
	if PricingLookups, err = Meter.Int64Counter("stratus.pricing.lookups",
		metric.WithDescription("Pricing API product queries")); err != nil {
		return fmt.Errorf("create pricing lookups counter: %w", err)
	}
	if MailSyncEmails, err = Meter.Int64Counter("stratus.mail.synced",
		metric.WithDescription("Inbound emails inserted during sync")); err != nil {
		return fmt.Errorf("create mail synced counter: %w", err)
	}
	if MailSyncDeletes, err = Meter.Int64Counter("stratus.mail.deleted",
		metric.WithDescription("Inbound email rows removed for vanished keys")); err != nil {
		return fmt.Errorf("create mail deleted counter: %w", err)
	}
	if DmarcRowsInserted, err = Meter.Int64Counter("stratus.dmarc.rows",
		metric.WithDescription("DMARC report rows inserted")); err != nil {
		return fmt.Errorf("create dmarc rows counter: %w", err)
	}
	if TagPropagationRuns, err = Meter.Int64Counter("stratus.spot.tag_propagation",
		metric.WithDescription("Tag propagation attempts for fulfilled spot requests")); err != nil {
		return fmt.Errorf("create tag propagation counter: %w", err)
	}

	return nil
}
