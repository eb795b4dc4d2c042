package pricing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratus-ops/stratus/catalog"
)

func productJSON(termKind, unit, usd, effectiveDate string, attrs map[string]string) string {
	attrJSON := "{"
	first := true
	for k, v := range attrs {
		if !first {
			attrJSON += ","
		}
		attrJSON += fmt.Sprintf("%q:%q", k, v)
		first = false
	}
	attrJSON += "}"
	return fmt.Sprintf(`{
		"terms": {
			%q: {
				"SKU.TERM": {
					"effectiveDate": %q,
					"termAttributes": %s,
					"priceDimensions": {
						"SKU.TERM.RATE": {"unit": %q, "pricePerUnit": {"USD": %q}}
					}
				}
			}
		}
	}`, termKind, effectiveDate, attrJSON, unit, usd)
}

func TestParseProductsOnDemandLatestWins(t *testing.T) {
	blobs := []string{
		productJSON("OnDemand", "Hrs", "0.0960", "2019-01-01T00:00:00Z", nil),
		productJSON("OnDemand", "Hrs", "0.1040", "2021-06-01T00:00:00Z", nil),
		productJSON("OnDemand", "Hrs", "0.0990", "2020-03-01T00:00:00Z", nil),
	}

	quotes := ParseProducts(blobs)
	require.Len(t, quotes, 1)
	assert.Equal(t, catalog.PriceOnDemand, quotes[0].PriceType)
	assert.Equal(t, 0.1040, quotes[0].Price)
	assert.Equal(t, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), quotes[0].EffectiveDate)
}

func TestParseProductsReserved(t *testing.T) {
	oneYearAllUpfront := map[string]string{
		"LeaseContractLength": "1yr",
		"PurchaseOption":      "All Upfront",
	}
	blobs := []string{
		// Wrong lease length, ignored.
		productJSON("Reserved", "Quantity", "1500", "2021-01-01T00:00:00Z", map[string]string{
			"LeaseContractLength": "3yr",
			"PurchaseOption":      "All Upfront",
		}),
		// Zero upfront, discarded.
		productJSON("Reserved", "Quantity", "0", "2021-01-01T00:00:00Z", oneYearAllUpfront),
		// Hourly dimension inside a Reserved term, ignored.
		productJSON("Reserved", "Hrs", "0.05", "2021-01-01T00:00:00Z", oneYearAllUpfront),
		productJSON("Reserved", "Quantity", "876", "2020-01-01T00:00:00Z", oneYearAllUpfront),
	}

	quotes := ParseProducts(blobs)
	require.Len(t, quotes, 1)
	assert.Equal(t, catalog.PriceReserved, quotes[0].PriceType)
	assert.InDelta(t, 876.0/(365*24), quotes[0].Price, 1e-9)
}

func TestParseProductsAtMostOneRowPerPriceType(t *testing.T) {
	oneYearAllUpfront := map[string]string{
		"LeaseContractLength": "1yr",
		"PurchaseOption":      "All Upfront",
	}
	blobs := []string{
		productJSON("OnDemand", "Hrs", "0.10", "2020-01-01T00:00:00Z", nil),
		productJSON("OnDemand", "Hrs", "0.12", "2022-01-01T00:00:00Z", nil),
		productJSON("Reserved", "Quantity", "700", "2020-01-01T00:00:00Z", oneYearAllUpfront),
		productJSON("Reserved", "Quantity", "800", "2022-01-01T00:00:00Z", oneYearAllUpfront),
		"not even json",
	}

	quotes := ParseProducts(blobs)
	require.Len(t, quotes, 2)

	seen := map[string]Quote{}
	for _, q := range quotes {
		_, dup := seen[q.PriceType]
		require.False(t, dup, "duplicate price type %s", q.PriceType)
		seen[q.PriceType] = q
	}
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), seen[catalog.PriceOnDemand].EffectiveDate)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), seen[catalog.PriceReserved].EffectiveDate)
}

type fakeProducts struct {
	blobs map[string][]string
	calls []string
}

func (f *fakeProducts) GetProducts(_ context.Context, instanceType string) ([]string, error) {
	f.calls = append(f.calls, instanceType)
	return f.blobs[instanceType], nil
}

type fakeTypes struct {
	instanceTypes []catalog.InstanceType
}

func (f *fakeTypes) UpsertFamily(context.Context, catalog.InstanceFamily) error  { return nil }
func (f *fakeTypes) UpsertInstanceType(context.Context, catalog.InstanceType) error {
	return nil
}
func (f *fakeTypes) ListFamilies(context.Context) ([]catalog.InstanceFamily, error) {
	return nil, nil
}
func (f *fakeTypes) ListInstanceTypes(context.Context) ([]catalog.InstanceType, error) {
	return f.instanceTypes, nil
}

type priceRecord struct {
	instanceType, priceType string
	price                   float64
}

// fakePrices applies the same latest-wins rule as the pgx store: a row
// is replaced only when the incoming timestamp is not older.
type fakePrices struct {
	upserts []priceRecord
	rows    map[string]catalog.PriceObservation
}

func (f *fakePrices) UpsertPrice(_ context.Context, instanceType, priceType string, price float64, ts time.Time) error {
	f.upserts = append(f.upserts, priceRecord{instanceType, priceType, price})
	if f.rows == nil {
		f.rows = map[string]catalog.PriceObservation{}
	}
	key := instanceType + "/" + priceType
	if existing, ok := f.rows[key]; ok && ts.Before(existing.Timestamp) {
		return nil
	}
	f.rows[key] = catalog.PriceObservation{
		InstanceType: instanceType,
		Price:        price,
		PriceType:    priceType,
		Timestamp:    ts,
	}
	return nil
}

func (f *fakePrices) ListPrices(context.Context) ([]catalog.PriceObservation, error) {
	return nil, nil
}

func TestRunUpsertsPerType(t *testing.T) {
	products := &fakeProducts{blobs: map[string][]string{
		"m5.large": {productJSON("OnDemand", "Hrs", "0.096", "2021-01-01T00:00:00Z", nil)},
		"c5.large": {}, // no published price
	}}
	types := &fakeTypes{instanceTypes: []catalog.InstanceType{
		{InstanceType: "m5.large"},
		{InstanceType: "c5.large"},
	}}
	prices := &fakePrices{}

	r := New(products, types, prices)
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []string{"m5.large", "c5.large"}, products.calls)
	require.Len(t, prices.upserts, 1)
	assert.Equal(t, priceRecord{"m5.large", catalog.PriceOnDemand, 0.096}, prices.upserts[0])
}

func TestRunStaleScrapeDoesNotClobberNewerPrice(t *testing.T) {
	products := &fakeProducts{blobs: map[string][]string{
		"m5.large": {productJSON("OnDemand", "Hrs", "0.104", "2021-02-01T00:00:00Z", nil)},
	}}
	types := &fakeTypes{instanceTypes: []catalog.InstanceType{{InstanceType: "m5.large"}}}
	prices := &fakePrices{}

	r := New(products, types, prices)
	require.NoError(t, r.Run(context.Background()))

	// A later run observing an older publication must leave the row alone.
	products.blobs["m5.large"] = []string{productJSON("OnDemand", "Hrs", "0.096", "2021-01-01T00:00:00Z", nil)}
	require.NoError(t, r.Run(context.Background()))

	row := prices.rows["m5.large/"+catalog.PriceOnDemand]
	assert.Equal(t, 0.104, row.Price)
	assert.Equal(t, time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC), row.Timestamp)
	assert.Len(t, prices.upserts, 2)
}
