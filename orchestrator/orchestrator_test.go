package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratus-ops/stratus/catalog"
	"github.com/stratus-ops/stratus/internal/retry"
	"github.com/stratus-ops/stratus/types"
)

// mockCloud implements CloudAPI through function fields; tests set only
// the operations they exercise. Calling an unset operation panics via
// the embedded nil interface.
type mockCloud struct {
	CloudAPI
	mu sync.Mutex

	listInstancesFunc      func(ctx context.Context) ([]types.Instance, error)
	listImagesFunc         func(ctx context.Context) ([]types.Image, error)
	listSpotRequestsFunc   func(ctx context.Context) ([]types.SpotRequest, error)
	listDNSRecordsFunc     func(ctx context.Context) ([]types.DNSRecord, error)
	listRepoImagesFunc     func(ctx context.Context) ([]types.RepositoryImage, error)
	spotPriceHistoryFunc   func(ctx context.Context, instanceTypes []string) (map[string]float64, error)
	terminateFunc          func(ctx context.Context, ids []string) error
	tagResourceFunc        func(ctx context.Context, id string, tags map[string]string) error
	upsertARecordFunc      func(ctx context.Context, zoneID, name, ip, comment string) error
	requestSpotFunc        func(ctx context.Context, req types.SpotLaunchRequest) ([]string, error)
	deleteRepoImagesFunc   func(ctx context.Context, repo string, digests []string) error
	deregisterImageFunc    func(ctx context.Context, imageID string) error
}

func (m *mockCloud) ListInstances(ctx context.Context) ([]types.Instance, error) {
	return m.listInstancesFunc(ctx)
}
func (m *mockCloud) ListImages(ctx context.Context) ([]types.Image, error) {
	return m.listImagesFunc(ctx)
}
func (m *mockCloud) ListSpotRequests(ctx context.Context) ([]types.SpotRequest, error) {
	return m.listSpotRequestsFunc(ctx)
}
func (m *mockCloud) ListDNSRecords(ctx context.Context) ([]types.DNSRecord, error) {
	return m.listDNSRecordsFunc(ctx)
}
func (m *mockCloud) ListRepositoryImages(ctx context.Context) ([]types.RepositoryImage, error) {
	return m.listRepoImagesFunc(ctx)
}
func (m *mockCloud) SpotPriceHistory(ctx context.Context, instanceTypes []string) (map[string]float64, error) {
	return m.spotPriceHistoryFunc(ctx, instanceTypes)
}
func (m *mockCloud) TerminateInstances(ctx context.Context, ids []string) error {
	return m.terminateFunc(ctx, ids)
}
func (m *mockCloud) TagResource(ctx context.Context, id string, tags map[string]string) error {
	return m.tagResourceFunc(ctx, id, tags)
}
func (m *mockCloud) UpsertARecord(ctx context.Context, zoneID, name, ip, comment string) error {
	return m.upsertARecordFunc(ctx, zoneID, name, ip, comment)
}
func (m *mockCloud) RequestSpotInstances(ctx context.Context, req types.SpotLaunchRequest) ([]string, error) {
	return m.requestSpotFunc(ctx, req)
}
func (m *mockCloud) DeleteRepositoryImages(ctx context.Context, repo string, digests []string) error {
	return m.deleteRepoImagesFunc(ctx, repo, digests)
}
func (m *mockCloud) DeregisterImage(ctx context.Context, imageID string) error {
	return m.deregisterImageFunc(ctx, imageID)
}

func newTestOrchestrator(cloud CloudAPI) *Orchestrator {
	return New(cloud, Config{MaxSpotPrice: 0.20, UbuntuRelease: "bionic-18.04"}).
		WithRetryOptions(
			retry.WithSleep(func(context.Context, time.Duration) error { return nil }),
			retry.WithJitter(func() int64 { return 999 }),
		)
}

func TestTerminateByName(t *testing.T) {
	var terminated []string
	cloud := &mockCloud{
		listInstancesFunc: func(context.Context) ([]types.Instance, error) {
			return []types.Instance{{
				ID: "i-1", State: types.StateRunning, Tags: map[string]string{"Name": "alpha"},
			}}, nil
		},
		terminateFunc: func(_ context.Context, ids []string) error {
			terminated = ids
			return nil
		},
	}
	o := newTestOrchestrator(cloud)
	defer o.Close()

	_, err := o.FillInstanceList(context.Background())
	require.NoError(t, err)
	require.NoError(t, o.Terminate(context.Background(), []string{"alpha"}))
	assert.Equal(t, []string{"i-1"}, terminated)
}

func TestTerminateUnknownNamePassesThrough(t *testing.T) {
	var terminated []string
	cloud := &mockCloud{
		terminateFunc: func(_ context.Context, ids []string) error {
			terminated = ids
			return nil
		},
	}
	o := newTestOrchestrator(cloud)
	defer o.Close()

	require.NoError(t, o.Terminate(context.Background(), []string{"i-2"}))
	assert.Equal(t, []string{"i-2"}, terminated)
}

func TestFillInstanceListIsOrderStable(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	listing := []types.Instance{
		{ID: "i-stopped", State: "stopped", LaunchTime: early},
		{ID: "i-new", State: types.StateRunning, LaunchTime: late},
		{ID: "i-old", State: types.StateRunning, LaunchTime: early},
	}
	cloud := &mockCloud{
		listInstancesFunc: func(context.Context) ([]types.Instance, error) {
			out := make([]types.Instance, len(listing))
			copy(out, listing)
			return out, nil
		},
	}
	o := newTestOrchestrator(cloud)
	defer o.Close()

	first, err := o.FillInstanceList(context.Background())
	require.NoError(t, err)
	second, err := o.FillInstanceList(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "i-old", first[0].ID)
	assert.Equal(t, "i-new", first[1].ID)
	assert.Equal(t, "i-stopped", first[2].ID)
}

func TestUpdateDNS(t *testing.T) {
	records := []types.DNSRecord{{ZoneID: "Z", Name: "example.com.", IP: "1.2.3.4"}}
	var gotName, gotIP, gotComment string
	cloud := &mockCloud{
		listDNSRecordsFunc: func(context.Context) ([]types.DNSRecord, error) {
			return records, nil
		},
		upsertARecordFunc: func(_ context.Context, _, name, ip, comment string) error {
			gotName, gotIP, gotComment = name, ip, comment
			return nil
		},
	}
	o := newTestOrchestrator(cloud)
	defer o.Close()

	err := o.UpdateDNS(context.Background(), "Z", "example.com.", "1.2.3.4", "5.6.7.8")
	require.NoError(t, err)
	assert.Equal(t, "example.com.", gotName)
	assert.Equal(t, "5.6.7.8", gotIP)
	assert.Equal(t, "change ip of example.com. from 1.2.3.4 to 5.6.7.8", gotComment)

	// old == new never touches the provider.
	gotIP = ""
	require.NoError(t, o.UpdateDNS(context.Background(), "Z", "example.com.", "1.2.3.4", "1.2.3.4"))
	assert.Empty(t, gotIP)

	// A record holding a different value is a refusal, not an upsert.
	err = o.UpdateDNS(context.Background(), "Z", "example.com.", "9.9.9.9", "5.6.7.8")
	assert.Error(t, err)
}

func TestRequestSpotSubstitutesAMINameAndPropagatesTags(t *testing.T) {
	var taggedID string
	var taggedTags map[string]string
	var polls int
	var mu sync.Mutex

	cloud := &mockCloud{
		listImagesFunc: func(context.Context) ([]types.Image, error) {
			return []types.Image{{ID: "ami-123", Name: "base-image"}}, nil
		},
		requestSpotFunc: func(_ context.Context, req types.SpotLaunchRequest) ([]string, error) {
			assert.Equal(t, "ami-123", req.AMI)
			assert.Equal(t, 0.20, req.Price)
			return []string{"sir-1"}, nil
		},
		listSpotRequestsFunc: func(context.Context) ([]types.SpotRequest, error) {
			mu.Lock()
			defer mu.Unlock()
			polls++
			if polls < 2 {
				return []types.SpotRequest{{ID: "sir-1"}}, nil
			}
			return []types.SpotRequest{{ID: "sir-1", InstanceID: "i-spot"}}, nil
		},
		tagResourceFunc: func(_ context.Context, id string, tags map[string]string) error {
			mu.Lock()
			defer mu.Unlock()
			taggedID = id
			taggedTags = tags
			return nil
		},
	}
	o := newTestOrchestrator(cloud)
	o.pollInterval = time.Millisecond

	ids, err := o.RequestSpot(context.Background(), types.SpotLaunchRequest{
		AMI:  "base-image",
		Tags: map[string]string{"Name": "worker"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sir-1"}, ids)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return taggedID == "i-spot"
	}, time.Second, time.Millisecond)
	o.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]string{"Name": "worker"}, taggedTags)
}

func TestTagPropagationGivesUpSilently(t *testing.T) {
	var polls int
	var mu sync.Mutex
	cloud := &mockCloud{
		listImagesFunc: func(context.Context) ([]types.Image, error) { return nil, nil },
		requestSpotFunc: func(context.Context, types.SpotLaunchRequest) ([]string, error) {
			return []string{"sir-2"}, nil
		},
		listSpotRequestsFunc: func(context.Context) ([]types.SpotRequest, error) {
			mu.Lock()
			defer mu.Unlock()
			polls++
			return []types.SpotRequest{{ID: "sir-2"}}, nil
		},
		tagResourceFunc: func(context.Context, string, map[string]string) error {
			t.Error("no instance id ever appeared, nothing should be tagged")
			return nil
		},
	}
	o := newTestOrchestrator(cloud)
	o.pollInterval = time.Millisecond
	o.pollAttempts = 3

	_, err := o.RequestSpot(context.Background(), types.SpotLaunchRequest{
		AMI: "ami-raw", Tags: map[string]string{"Name": "x"},
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return polls == 3
	}, time.Second, time.Millisecond)
	o.Close()
}

func TestDeleteImageResolvesName(t *testing.T) {
	var deregistered string
	cloud := &mockCloud{
		listImagesFunc: func(context.Context) ([]types.Image, error) {
			return []types.Image{{ID: "ami-9", Name: "golden"}}, nil
		},
		deregisterImageFunc: func(_ context.Context, id string) error {
			deregistered = id
			return nil
		},
	}
	o := newTestOrchestrator(cloud)
	defer o.Close()

	require.NoError(t, o.DeleteImage(context.Background(), "golden"))
	assert.Equal(t, "ami-9", deregistered)

	require.NoError(t, o.DeleteImage(context.Background(), "ami-raw"))
	assert.Equal(t, "ami-raw", deregistered)
}

func TestCleanupECRKeepsNewestPerRepository(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	deleted := map[string][]string{}
	cloud := &mockCloud{
		listRepoImagesFunc: func(context.Context) ([]types.RepositoryImage, error) {
			return []types.RepositoryImage{
				{Repository: "app", Digest: "sha-old", PushedAt: base},
				{Repository: "app", Digest: "sha-new", PushedAt: base.Add(time.Hour)},
				{Repository: "app", Digest: "sha-mid", PushedAt: base.Add(time.Minute)},
				{Repository: "lonely", Digest: "sha-only", PushedAt: base},
			}, nil
		},
		deleteRepoImagesFunc: func(_ context.Context, repo string, digests []string) error {
			deleted[repo] = digests
			return nil
		},
	}
	o := newTestOrchestrator(cloud)
	defer o.Close()

	require.NoError(t, o.CleanupECRImages(context.Background()))
	assert.ElementsMatch(t, []string{"sha-old", "sha-mid"}, deleted["app"])
	_, touched := deleted["lonely"]
	assert.False(t, touched, "single-image repository must be left alone")
}

func TestListAlwaysIncludesInstancesAndDedups(t *testing.T) {
	var instanceCalls, spotCalls int
	var mu sync.Mutex
	cloud := &mockCloud{
		listInstancesFunc: func(context.Context) ([]types.Instance, error) {
			mu.Lock()
			defer mu.Unlock()
			instanceCalls++
			return []types.Instance{{ID: "i-1", State: types.StateRunning}}, nil
		},
		listSpotRequestsFunc: func(context.Context) ([]types.SpotRequest, error) {
			mu.Lock()
			defer mu.Unlock()
			spotCalls++
			return []types.SpotRequest{{ID: "sir-9"}}, nil
		},
	}
	o := newTestOrchestrator(cloud)
	defer o.Close()

	// Instances are implied; duplicates collapse to one listing each.
	out, err := o.List(context.Background(), types.KindSpot, types.KindSpot, types.KindInstances)
	require.NoError(t, err)
	assert.Equal(t, 1, instanceCalls)
	assert.Equal(t, 1, spotCalls)
	require.Len(t, out.Instances, 1)
	require.Len(t, out.Spot, 1)
	assert.Equal(t, "i-1", out.Instances[0].ID)
}

type staticTypeStore struct {
	families      []catalog.InstanceFamily
	instanceTypes []catalog.InstanceType
}

func (s *staticTypeStore) UpsertFamily(context.Context, catalog.InstanceFamily) error { return nil }
func (s *staticTypeStore) UpsertInstanceType(context.Context, catalog.InstanceType) error {
	return nil
}
func (s *staticTypeStore) ListFamilies(context.Context) ([]catalog.InstanceFamily, error) {
	return s.families, nil
}
func (s *staticTypeStore) ListInstanceTypes(context.Context) ([]catalog.InstanceType, error) {
	return s.instanceTypes, nil
}

type staticPriceStore struct {
	observations []catalog.PriceObservation
}

func (s *staticPriceStore) UpsertPrice(context.Context, string, string, float64, time.Time) error {
	return nil
}
func (s *staticPriceStore) ListPrices(context.Context) ([]catalog.PriceObservation, error) {
	return s.observations, nil
}

func TestGetEC2PricesJoinAndSort(t *testing.T) {
	cloud := &mockCloud{
		spotPriceHistoryFunc: func(_ context.Context, _ []string) (map[string]float64, error) {
			return map[string]float64{"m5.large": 0.035}, nil
		},
	}
	o := newTestOrchestrator(cloud).WithCatalog(
		&staticTypeStore{
			families: []catalog.InstanceFamily{
				{FamilyName: "m5", FamilyType: "General Purpose", DataURL: "https://example.com/m5"},
			},
			instanceTypes: []catalog.InstanceType{
				{InstanceType: "m5.24xlarge", FamilyName: "m5", NCPU: 96, MemoryGiB: 384},
				{InstanceType: "m5.large", FamilyName: "m5", NCPU: 2, MemoryGiB: 8},
				{InstanceType: "c5.large", FamilyName: "c5", NCPU: 2, MemoryGiB: 4},
			},
		},
		&staticPriceStore{observations: []catalog.PriceObservation{
			{InstanceType: "m5.large", PriceType: catalog.PriceOnDemand, Price: 0.096},
			{InstanceType: "m5.large", PriceType: catalog.PriceReserved, Price: 0.060},
		}},
	)
	defer o.Close()

	rows, err := o.GetEC2Prices(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// (n_cpu asc, memory asc): c5.large before m5.large before m5.24xlarge.
	assert.Equal(t, "c5.large", rows[0].InstanceType)
	assert.Equal(t, "m5.large", rows[1].InstanceType)
	assert.Equal(t, "m5.24xlarge", rows[2].InstanceType)

	m5 := rows[1]
	require.NotNil(t, m5.OnDemand)
	assert.Equal(t, 0.096, *m5.OnDemand)
	require.NotNil(t, m5.Reserved)
	assert.Equal(t, 0.060, *m5.Reserved)
	require.NotNil(t, m5.Spot)
	assert.Equal(t, 0.035, *m5.Spot)
	assert.Equal(t, "General Purpose", m5.FamilyType)
	assert.Equal(t, "https://example.com/m5", m5.DataURL)

	// c5 has no family row and no prices.
	assert.Empty(t, rows[0].FamilyType)
	assert.Nil(t, rows[0].OnDemand)

	filtered, err := o.GetEC2Prices(context.Background(), "m5")
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}
