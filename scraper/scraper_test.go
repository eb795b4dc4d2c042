package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/stratus-ops/stratus/catalog"
)

const hvmPage = `<html><body>
<div class="lb-grid">
  <div class="lb-title">General Purpose</div>
  <div><p>M5</p><p>T3</p><p>burstable types</p></div>
</div>
<div class="lb-grid">
  <div class="lb-title">Compute Optimized</div>
  <div><p>C5</p></div>
</div>
<a href="https://aws.amazon.com/ec2/instance-types/m5/">M5 details</a>
<a href="https://aws.amazon.com/ec2/instance-types/c5/">C5 details</a>
<table>
  <tbody>
    <tr><th>Instance Type</th><th>vCPU</th><th>Mem (GiB)</th></tr>
    <tr><td>m5.large</td><td>2</td><td>8</td></tr>
    <tr><td>m5.24xlarge</td><td>96</td><td>384</td></tr>
    <tr><td>c5.xlarge</td><td>4</td><td>8</td></tr>
  </tbody>
</table>
</body></html>`

const pvPage = `<html><body>
<table>
  <tbody>
    <tr><th>Instance Family</th><th>Instance Type</th><th>vCPU</th><th>Memory (GiB)</th></tr>
    <tr><td>General purpose</td><td>m1.small</td><td>1</td><td>1.7</td></tr>
    <tr><td>General purpose</td><td>m1.medium</td><td>1</td><td>3.75</td></tr>
    <tr><td>Compute optimized</td><td>c1.medium</td><td>2</td><td>1.7</td></tr>
  </tbody>
</table>
</body></html>`

func parse(t *testing.T, page string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestParseHVM(t *testing.T) {
	families, instanceTypes := parseHVM(parse(t, hvmPage))

	require.Len(t, families, 3)
	byName := map[string]catalog.InstanceFamily{}
	for _, f := range families {
		byName[f.FamilyName] = f
	}

	// "burstable types" contains whitespace and is skipped.
	assert.Contains(t, byName, "m5")
	assert.Contains(t, byName, "t3")
	assert.Contains(t, byName, "c5")
	assert.Equal(t, "General Purpose", byName["m5"].FamilyType)
	assert.Equal(t, "Compute Optimized", byName["c5"].FamilyType)
	assert.Equal(t, "https://aws.amazon.com/ec2/instance-types/m5/", byName["m5"].DataURL)
	assert.Equal(t, "https://aws.amazon.com/ec2/instance-types/c5/", byName["c5"].DataURL)
	assert.Empty(t, byName["t3"].DataURL)

	require.Len(t, instanceTypes, 3)
	assert.Equal(t, catalog.InstanceType{
		InstanceType: "m5.large",
		FamilyName:   "m5",
		NCPU:         2,
		MemoryGiB:    8,
		Generation:   catalog.GenerationHVM,
	}, instanceTypes[0])
	assert.Equal(t, 96, instanceTypes[1].NCPU)
	assert.Equal(t, 384.0, instanceTypes[1].MemoryGiB)
}

func TestParseHVMShiftedColumnRow(t *testing.T) {
	// The header carries a leading family column but the data rows do
	// not: the cell under "Instance Type" parses as an integer, so all
	// indexes shift one left.
	page := `<html><body><table><tbody>
		<tr><th>Family</th><th>Instance Type</th><th>vCPU</th><th>Mem (GiB)</th></tr>
		<tr><td>r5.large</td><td>2</td><td>16</td><td>-</td></tr>
	</tbody></table></body></html>`

	_, instanceTypes := parseHVM(parse(t, page))
	require.Len(t, instanceTypes, 1)
	assert.Equal(t, "r5.large", instanceTypes[0].InstanceType)
	assert.Equal(t, 2, instanceTypes[0].NCPU)
	assert.Equal(t, 16.0, instanceTypes[0].MemoryGiB)
}

func TestParseHVMCommaSeparatedMemory(t *testing.T) {
	page := `<html><body><table><tbody>
		<tr><th>Instance Type</th><th>vCPU</th><th>Mem (GiB)</th></tr>
		<tr><td>x1e.32xlarge</td><td>128</td><td>3,904</td></tr>
	</tbody></table></body></html>`

	_, instanceTypes := parseHVM(parse(t, page))
	require.Len(t, instanceTypes, 1)
	assert.Equal(t, 3904.0, instanceTypes[0].MemoryGiB)
}

func TestParsePV(t *testing.T) {
	families, instanceTypes := parsePV(parse(t, pvPage))

	// Three instance rows collapse to two families after dedup.
	require.Len(t, families, 2)
	assert.Equal(t, "m1", families[0].FamilyName)
	assert.Equal(t, "General purpose", families[0].FamilyType)
	assert.Equal(t, "c1", families[1].FamilyName)

	require.Len(t, instanceTypes, 3)
	for _, it := range instanceTypes {
		assert.Equal(t, catalog.GenerationPV, it.Generation)
	}
	assert.Equal(t, "m1.small", instanceTypes[0].InstanceType)
	assert.Equal(t, 1.7, instanceTypes[0].MemoryGiB)
}

func TestDataURLSubstringFallback(t *testing.T) {
	families := []catalog.InstanceFamily{{FamilyName: "u-6tb1", FamilyType: "Memory"}}
	attachDataURLs(families, map[string]string{
		"high-memory": "https://aws.amazon.com/ec2/instance-types/high-memory/",
	})
	// No exact or substring match: stays empty.
	assert.Empty(t, families[0].DataURL)

	families = []catalog.InstanceFamily{{FamilyName: "m5", FamilyType: "General"}}
	attachDataURLs(families, map[string]string{
		"m5zn": "https://aws.amazon.com/ec2/instance-types/m5zn/",
	})
	// Substring containment attributes m5zn's URL to m5. Known quirk.
	assert.Equal(t, "https://aws.amazon.com/ec2/instance-types/m5zn/", families[0].DataURL)
}

type fakeTypeStore struct {
	families      []catalog.InstanceFamily
	instanceTypes []catalog.InstanceType
}

func (f *fakeTypeStore) UpsertFamily(_ context.Context, fam catalog.InstanceFamily) error {
	for i, existing := range f.families {
		if existing.FamilyName == fam.FamilyName {
			f.families[i] = fam
			return nil
		}
	}
	f.families = append(f.families, fam)
	return nil
}

func (f *fakeTypeStore) UpsertInstanceType(_ context.Context, it catalog.InstanceType) error {
	for i, existing := range f.instanceTypes {
		if existing.InstanceType == it.InstanceType {
			f.instanceTypes[i] = it
			return nil
		}
	}
	f.instanceTypes = append(f.instanceTypes, it)
	return nil
}

func (f *fakeTypeStore) ListFamilies(context.Context) ([]catalog.InstanceFamily, error) {
	return f.families, nil
}

func (f *fakeTypeStore) ListInstanceTypes(context.Context) ([]catalog.InstanceType, error) {
	return f.instanceTypes, nil
}

func TestRunUpsertsFamiliesBeforeTypesAndIsIdempotent(t *testing.T) {
	hvmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(hvmPage))
	}))
	defer hvmSrv.Close()
	pvSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(pvPage))
	}))
	defer pvSrv.Close()

	store := &fakeTypeStore{}
	s := New(store).WithURLs(hvmSrv.URL, pvSrv.URL)

	require.NoError(t, s.Run(context.Background()))
	familiesOnce := len(store.families)
	typesOnce := len(store.instanceTypes)
	assert.Equal(t, 5, familiesOnce) // m5, t3, c5, m1, c1
	assert.Equal(t, 6, typesOnce)

	// A second pass converges to the same rows.
	require.NoError(t, s.Run(context.Background()))
	assert.Len(t, store.families, familiesOnce)
	assert.Len(t, store.instanceTypes, typesOnce)
}
