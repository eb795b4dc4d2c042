package scraper

import (
	"golang.org/x/net/html"

	"github.com/stratus-ops/stratus/catalog"
)

// parsePV extracts previous-generation families and types. The PV page
// carries an explicit "Instance Family" column; each instance row yields
// one family row (collapsed later by the dedup pass) and one type row
// with generation pv.
func parsePV(doc *html.Node) ([]catalog.InstanceFamily, []catalog.InstanceType) {
	var families []catalog.InstanceFamily
	var instanceTypes []catalog.InstanceType
	seen := make(map[string]bool)

	walk(doc, func(n *html.Node) {
		if !isElement(n, "table") {
			return
		}
		rows := tableRows(n)
		if len(rows) < 2 {
			return
		}

		familyIdx := indexOf(rows[0], "Instance Family")
		if familyIdx < 0 {
			return
		}
		typeIdx, cpuIdx, memIdx, ok := tableColumns(rows[0])
		if !ok {
			return
		}

		for _, cells := range rows[1:] {
			row, ok := extractRow(cells, typeIdx, cpuIdx, memIdx)
			if !ok || seen[row.instanceType] {
				continue
			}
			seen[row.instanceType] = true

			familyType := ""
			if familyIdx < len(cells) {
				familyType = cells[familyIdx]
			}

			families = append(families, catalog.InstanceFamily{
				FamilyName: familyOf(row.instanceType),
				FamilyType: familyType,
			})
			instanceTypes = append(instanceTypes, catalog.InstanceType{
				InstanceType: row.instanceType,
				FamilyName:   familyOf(row.instanceType),
				NCPU:         row.nCPU,
				MemoryGiB:    row.memoryGiB,
				Generation:   catalog.GenerationPV,
			})
		}
	})

	return dedupFamilies(families), instanceTypes
}
