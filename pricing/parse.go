package pricing

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/stratus-ops/stratus/catalog"
)

const hoursPerYear = 365 * 24

// Quote is a single extracted price observation. At most one Quote per
// price type survives parsing; ties resolve to the latest effective date.
type Quote struct {
	PriceType     string
	Price         float64
	EffectiveDate time.Time
}

type productBlob struct {
	Terms map[string]map[string]term `json:"terms"`
}

type term struct {
	EffectiveDate   time.Time                 `json:"effectiveDate"`
	PriceDimensions map[string]priceDimension `json:"priceDimensions"`
	TermAttributes  map[string]string         `json:"termAttributes"`
}

type priceDimension struct {
	Unit         string            `json:"unit"`
	PricePerUnit map[string]string `json:"pricePerUnit"`
}

// ParseProducts extracts ondemand and reserved hourly rates from the raw
// JSON documents returned per product SKU.
func ParseProducts(blobs []string) []Quote {
	var ondemand, reserved *Quote

	for _, blob := range blobs {
		var product productBlob
		if err := json.Unmarshal([]byte(blob), &product); err != nil {
			continue
		}

		for _, t := range product.Terms["OnDemand"] {
			for _, dim := range t.PriceDimensions {
				if dim.Unit != "Hrs" {
					continue
				}
				price, err := strconv.ParseFloat(dim.PricePerUnit["USD"], 64)
				if err != nil {
					continue
				}
				ondemand = keepLatest(ondemand, Quote{
					PriceType:     catalog.PriceOnDemand,
					Price:         price,
					EffectiveDate: t.EffectiveDate,
				})
			}
		}

		for _, t := range product.Terms["Reserved"] {
			if t.TermAttributes["LeaseContractLength"] != "1yr" ||
				t.TermAttributes["PurchaseOption"] != "All Upfront" {
				continue
			}
			for _, dim := range t.PriceDimensions {
				if dim.Unit != "Quantity" {
					continue
				}
				upfront, err := strconv.ParseFloat(dim.PricePerUnit["USD"], 64)
				if err != nil || upfront == 0 {
					continue
				}
				reserved = keepLatest(reserved, Quote{
					PriceType:     catalog.PriceReserved,
					Price:         upfront / hoursPerYear,
					EffectiveDate: t.EffectiveDate,
				})
			}
		}
	}

	var quotes []Quote
	if ondemand != nil {
		quotes = append(quotes, *ondemand)
	}
	if reserved != nil {
		quotes = append(quotes, *reserved)
	}
	return quotes
}

func keepLatest(current *Quote, candidate Quote) *Quote {
	if current == nil || candidate.EffectiveDate.After(current.EffectiveDate) {
		return &candidate
	}
	return current
}
