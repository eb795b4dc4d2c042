// Package pricing refreshes the instance_pricing table from the provider
// pricing API. One query per known instance type, throttled by a shared
// token bucket.
package pricing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/stratus-ops/stratus/catalog"
	"github.com/stratus-ops/stratus/telemetry"
)

// ProductLister is the slice of the cloud adapter the refresher needs.
type ProductLister interface {
	GetProducts(ctx context.Context, instanceType string) ([]string, error)
}

// Refresher walks instance_list and upserts ondemand and reserved price
// observations.
type Refresher struct {
	products ProductLister
	types    catalog.TypeStore
	prices   catalog.PriceStore
	limiter  *rate.Limiter
	logger   *telemetry.Logger
	now      func() time.Time
}

func New(products ProductLister, types catalog.TypeStore, prices catalog.PriceStore) *Refresher {
	return &Refresher{
		products: products,
		types:    types,
		prices:   prices,
		limiter:  rate.NewLimiter(rate.Limit(10), 5000),
		logger:   telemetry.NewLogger("pricing"),
		now:      time.Now,
	}
}

// Run queries the pricing API once per instance type and upserts whatever
// prices come back. A type with no published price is skipped, not an error.
func (r *Refresher) Run(ctx context.Context) error {
	instanceTypes, err := r.types.ListInstanceTypes(ctx)
	if err != nil {
		return fmt.Errorf("list instance types: %w", err)
	}

	for _, it := range instanceTypes {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		telemetry.Count(ctx, telemetry.PricingLookups, 1)

		blobs, err := r.products.GetProducts(ctx, it.InstanceType)
		if err != nil {
			return fmt.Errorf("get products for %s: %w", it.InstanceType, err)
		}

		quotes := ParseProducts(blobs)
		for _, q := range quotes {
			if err := r.prices.UpsertPrice(ctx, it.InstanceType, q.PriceType, q.Price, q.EffectiveDate); err != nil {
				return fmt.Errorf("upsert %s price for %s: %w", q.PriceType, it.InstanceType, err)
			}
			telemetry.Count(ctx, telemetry.CatalogUpserts, 1)
		}

		r.logger.Debug().
			Str("instance_type", it.InstanceType).
			Int("quotes", len(quotes)).
			Msg("pricing refreshed")
	}

	r.logger.Info().Int("instance_types", len(instanceTypes)).Msg("pricing pass complete")
	return nil
}
