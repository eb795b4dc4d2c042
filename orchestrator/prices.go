package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stratus-ops/stratus/catalog"
	"github.com/stratus-ops/stratus/types"
)

// GetEC2Prices joins the type catalog with recorded prices and a live
// spot snapshot. search filters by substring on the type or family name;
// empty search returns everything. Rows sort by CPU count then memory.
func (o *Orchestrator) GetEC2Prices(ctx context.Context, search string) ([]types.PriceRow, error) {
	if o.types == nil || o.prices == nil {
		return nil, fmt.Errorf("price catalog not configured")
	}

	instanceTypes, err := o.types.ListInstanceTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instance types: %w", err)
	}
	families, err := o.types.ListFamilies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	observations, err := o.prices.ListPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}

	search = strings.ToLower(search)
	matched := instanceTypes[:0:0]
	for _, it := range instanceTypes {
		if search == "" ||
			strings.Contains(strings.ToLower(it.InstanceType), search) ||
			strings.Contains(strings.ToLower(it.FamilyName), search) {
			matched = append(matched, it)
		}
	}

	spotNames := make([]string, len(matched))
	for i, it := range matched {
		spotNames[i] = it.InstanceType
	}
	spot, err := call(ctx, o, func(ctx context.Context) (map[string]float64, error) {
		return o.cloud.SpotPriceHistory(ctx, spotNames)
	})
	if err != nil {
		return nil, err
	}

	familyByName := make(map[string]catalog.InstanceFamily, len(families))
	for _, f := range families {
		familyByName[f.FamilyName] = f
	}
	priceByTypeKind := make(map[string]map[string]float64)
	for _, obs := range observations {
		if priceByTypeKind[obs.InstanceType] == nil {
			priceByTypeKind[obs.InstanceType] = make(map[string]float64)
		}
		priceByTypeKind[obs.InstanceType][obs.PriceType] = obs.Price
	}

	rows := make([]types.PriceRow, 0, len(matched))
	for _, it := range matched {
		row := types.PriceRow{
			InstanceType: it.InstanceType,
			FamilyName:   it.FamilyName,
			NCPU:         it.NCPU,
			MemoryGiB:    it.MemoryGiB,
		}
		if family, ok := familyByName[it.FamilyName]; ok {
			row.FamilyType = family.FamilyType
			row.DataURL = family.DataURL
		}
		if kinds, ok := priceByTypeKind[it.InstanceType]; ok {
			if p, ok := kinds[catalog.PriceOnDemand]; ok {
				row.OnDemand = &p
			}
			if p, ok := kinds[catalog.PriceReserved]; ok {
				row.Reserved = &p
			}
		}
		if p, ok := spot[it.InstanceType]; ok {
			row.Spot = &p
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].NCPU != rows[j].NCPU {
			return rows[i].NCPU < rows[j].NCPU
		}
		return rows[i].MemoryGiB < rows[j].MemoryGiB
	})
	return rows, nil
}

// LatestUbuntuAMI returns the newest matching stock Ubuntu image for the
// configured release, or nil when none match.
func (o *Orchestrator) LatestUbuntuAMI(ctx context.Context) (*types.Image, error) {
	images, err := call(ctx, o, func(ctx context.Context) ([]types.Image, error) {
		return o.cloud.LatestUbuntuImage(ctx, o.cfg.UbuntuRelease)
	})
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, nil
	}
	latest := images[len(images)-1]
	return &latest, nil
}
