package scraper

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// headerTriplet names the three columns a type table must expose. The
// parser is data-driven: supporting a new vendor layout means adding a
// triplet here, nothing else.
type headerTriplet struct {
	typeCol string
	cpuCol  string
	memCol  string
}

var acceptedTriplets = []headerTriplet{
	{"Instance Type", "vCPU", "Mem (GiB)"},
	{"Instance Type", "vCPU", "Memory (GiB)"},
	{"Instance Type", "vCPU*", "Mem (GiB)"},
	{"Instance Type", "vCPUs", "Mem (GiB)"},
	{"Instance Type", "Logical Proc*", "Mem (GiB)"},
	{"Instance Type", "vCPU", "Mem (GB)"},
	{"Instance Size", "vCPU", "Memory (GiB)"},
	{"Instance", "vCPU", "Mem (GiB)"},
	{"Instance", "vCPU*", "Mem (GiB)"},
	{"Instance", "vCPU", "Memory (GiB)"},
	{"Name", "Logical Processors*", "RAM (GiB)"},
}

// typeRow is one extracted (instance type, cpu, memory) triple.
type typeRow struct {
	instanceType string
	nCPU         int
	memoryGiB    float64
}

// tableColumns locates the accepted triplet in a header row, returning
// the three column indexes. ok is false when no triplet matches.
func tableColumns(headers []string) (typeIdx, cpuIdx, memIdx int, ok bool) {
	for _, triplet := range acceptedTriplets {
		typeIdx = indexOf(headers, triplet.typeCol)
		cpuIdx = indexOf(headers, triplet.cpuCol)
		memIdx = indexOf(headers, triplet.memCol)
		if typeIdx >= 0 && cpuIdx >= 0 && memIdx >= 0 {
			return typeIdx, cpuIdx, memIdx, true
		}
	}
	return 0, 0, 0, false
}

func indexOf(cells []string, want string) int {
	for i, cell := range cells {
		if strings.EqualFold(strings.TrimSpace(cell), want) {
			return i
		}
	}
	return -1
}

// extractRow pulls the triple out of one data row. A row whose
// instance-type cell parses as an integer carries a leading family-name
// column, shifting the data one column left; the indexes are decremented
// to compensate.
func extractRow(cells []string, typeIdx, cpuIdx, memIdx int) (typeRow, bool) {
	if typeIdx >= len(cells) {
		return typeRow{}, false
	}

	if _, err := strconv.Atoi(cleanNumeric(cells[typeIdx])); err == nil {
		typeIdx--
		cpuIdx--
		memIdx--
		if typeIdx < 0 {
			return typeRow{}, false
		}
	}
	if cpuIdx >= len(cells) || memIdx >= len(cells) || cpuIdx < 0 || memIdx < 0 {
		return typeRow{}, false
	}

	instanceType := strings.ToLower(strings.TrimSpace(cells[typeIdx]))
	if instanceType == "" || strings.ContainsAny(instanceType, " \t") {
		return typeRow{}, false
	}

	nCPU, err := strconv.Atoi(cleanNumeric(cells[cpuIdx]))
	if err != nil {
		return typeRow{}, false
	}
	memory, err := strconv.ParseFloat(cleanNumeric(cells[memIdx]), 64)
	if err != nil {
		return typeRow{}, false
	}

	return typeRow{instanceType: instanceType, nCPU: nCPU, memoryGiB: memory}, true
}

// cleanNumeric strips thousands separators and footnote markers.
func cleanNumeric(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimRight(s, "*†")
	return strings.TrimSpace(s)
}

// walk applies fn to every node in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// nodeText concatenates the text content of a subtree.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return strings.TrimSpace(sb.String())
}

func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	return strings.Contains(attrVal(n, "class"), class)
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

// tableRows returns the cell texts of each tr under every tbody (or
// bare table) in the subtree.
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	walk(table, func(n *html.Node) {
		if !isElement(n, "tr") {
			return
		}
		var cells []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c, "td") || isElement(c, "th") {
				cells = append(cells, nodeText(c))
			}
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return rows
}
