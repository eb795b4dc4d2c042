package scraper

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/stratus-ops/stratus/catalog"
)

// parseHVM extracts current-generation families and types from the
// vendor's instance-types page.
//
// Families come from grid blocks: the block's first title node is the
// human family label, the remaining leaf texts are candidate family
// names (lowercased, anything containing whitespace skipped). Data URLs
// come from anchors whose href contains "instance-types/"; the third
// path segment keys the URL. Types come from the header-triplet tables.
func parseHVM(doc *html.Node) ([]catalog.InstanceFamily, []catalog.InstanceType) {
	families := gridFamilies(doc)
	dataURLs := collectDataURLs(doc)
	families = dedupFamilies(families)
	attachDataURLs(families, dataURLs)

	instanceTypes := parseTypeTables(doc, catalog.GenerationHVM)
	return families, instanceTypes
}

func gridFamilies(doc *html.Node) []catalog.InstanceFamily {
	var families []catalog.InstanceFamily

	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || !hasClass(n, "lb-grid") {
			return
		}

		familyType := ""
		walk(n, func(c *html.Node) {
			if familyType == "" && c.Type == html.ElementNode && hasClass(c, "lb-title") {
				familyType = nodeText(c)
			}
		})
		if familyType == "" {
			return
		}

		walk(n, func(c *html.Node) {
			if c.Type != html.TextNode {
				return
			}
			candidate := strings.ToLower(strings.TrimSpace(c.Data))
			if candidate == "" || strings.ContainsAny(candidate, " \t\n") {
				return
			}
			if candidate == strings.ToLower(familyType) {
				return
			}
			families = append(families, catalog.InstanceFamily{
				FamilyName: candidate,
				FamilyType: familyType,
			})
		})
	})

	return families
}

// collectDataURLs maps the third path segment of every
// "instance-types/" anchor to its fully-qualified href.
func collectDataURLs(doc *html.Node) map[string]string {
	urls := make(map[string]string)

	walk(doc, func(n *html.Node) {
		if !isElement(n, "a") {
			return
		}
		href := attrVal(n, "href")
		if !strings.Contains(href, "instance-types/") {
			return
		}

		path := href
		if idx := strings.Index(path, "//"); idx >= 0 {
			rest := path[idx+2:]
			if slash := strings.Index(rest, "/"); slash >= 0 {
				path = rest[slash:]
			}
		}
		segments := splitPath(path)
		if len(segments) < 3 {
			return
		}
		urls[segments[2]] = href
	})

	return urls
}

func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// dedupFamilies keeps the first row per family_name.
func dedupFamilies(families []catalog.InstanceFamily) []catalog.InstanceFamily {
	seen := make(map[string]bool, len(families))
	out := families[:0]
	for _, f := range families {
		if seen[f.FamilyName] {
			continue
		}
		seen[f.FamilyName] = true
		out = append(out, f)
	}
	return out
}

// attachDataURLs resolves each family's documentation URL by exact key
// match, then by substring containment. The substring fallback can
// mis-attribute a URL when one family name contains another; that
// behavior is long-standing and kept.
func attachDataURLs(families []catalog.InstanceFamily, urls map[string]string) {
	for i := range families {
		if url, ok := urls[families[i].FamilyName]; ok {
			families[i].DataURL = url
			continue
		}
		for key, url := range urls {
			if strings.Contains(key, families[i].FamilyName) ||
				strings.Contains(families[i].FamilyName, key) {
				families[i].DataURL = url
				break
			}
		}
	}
}

// parseTypeTables extracts instance rows from every table whose header
// matches an accepted triplet.
func parseTypeTables(doc *html.Node, generation string) []catalog.InstanceType {
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
			instanceTypes = append(instanceTypes, catalog.InstanceType{
				InstanceType: row.instanceType,
				FamilyName:   familyOf(row.instanceType),
				NCPU:         row.nCPU,
				MemoryGiB:    row.memoryGiB,
				Generation:   generation,
			})
		}
	})

	return instanceTypes
}

// familyOf derives the family name from an instance type, e.g.
// "m5.large" -> "m5".
func familyOf(instanceType string) string {
	if idx := strings.Index(instanceType, "."); idx > 0 {
		return instanceType[:idx]
	}
	return instanceType
}
