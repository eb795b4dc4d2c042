// Package orchestrator aggregates cloud adapter calls into operator-level
// actions: alias-aware lifecycle operations, parallel listings, price
// joins and the spot tag-propagation task.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/stratus-ops/stratus/alias"
	"github.com/stratus-ops/stratus/catalog"
	"github.com/stratus-ops/stratus/internal/retry"
	"github.com/stratus-ops/stratus/sysd"
	"github.com/stratus-ops/stratus/telemetry"
	"github.com/stratus-ops/stratus/types"
)

// CloudAPI is the adapter surface the orchestrator drives. Implemented
// by providers/aws.Adapter.
type CloudAPI interface {
	ListInstances(ctx context.Context) ([]types.Instance, error)
	ListReserved(ctx context.Context) ([]types.ReservedInstance, error)
	ListSpotRequests(ctx context.Context) ([]types.SpotRequest, error)
	SpotPriceHistory(ctx context.Context, instanceTypes []string) (map[string]float64, error)
	ListImages(ctx context.Context) ([]types.Image, error)
	LatestUbuntuImage(ctx context.Context, release string) ([]types.Image, error)
	ListVolumes(ctx context.Context) ([]types.Volume, error)
	ListSnapshots(ctx context.Context) ([]types.Snapshot, error)
	ListKeyPairs(ctx context.Context) ([]types.KeyPair, error)
	ListSecurityGroups(ctx context.Context) ([]types.SecurityGroup, error)
	ListRepositoryImages(ctx context.Context) ([]types.RepositoryImage, error)
	DeleteRepositoryImages(ctx context.Context, repo string, digests []string) error
	ListUsers(ctx context.Context) ([]types.User, error)
	ListGroups(ctx context.Context) ([]types.Group, error)
	CreateUser(ctx context.Context, userName string) (*types.User, error)
	DeleteUser(ctx context.Context, userName string) error
	AddUserToGroup(ctx context.Context, userName, groupName string) error
	RemoveUserFromGroup(ctx context.Context, userName, groupName string) error
	ListAccessKeys(ctx context.Context, userName string) ([]types.AccessKeyMetadata, error)
	CreateAccessKey(ctx context.Context, userName string) (*types.AccessKey, error)
	DeleteAccessKey(ctx context.Context, userName, keyID string) error
	ListDNSRecords(ctx context.Context) ([]types.DNSRecord, error)
	UpsertARecord(ctx context.Context, zoneID, name, ip, comment string) error
	TerminateInstances(ctx context.Context, ids []string) error
	TagResource(ctx context.Context, id string, tags map[string]string) error
	GetConsoleOutput(ctx context.Context, id string) (string, error)
	CreateImage(ctx context.Context, instanceID, name string) (string, error)
	DeregisterImage(ctx context.Context, imageID string) error
	CreateVolume(ctx context.Context, az string, sizeGiB int32) (string, error)
	DeleteVolume(ctx context.Context, volumeID string) error
	AttachVolume(ctx context.Context, volumeID, instanceID, device string) error
	DetachVolume(ctx context.Context, volumeID string) error
	ModifyVolume(ctx context.Context, volumeID string, sizeGiB int32) error
	CreateSnapshot(ctx context.Context, volumeID, name string) (string, error)
	DeleteSnapshot(ctx context.Context, snapshotID string) error
	RequestSpotInstances(ctx context.Context, req types.SpotLaunchRequest) ([]string, error)
	CancelSpotRequests(ctx context.Context, ids []string) error
	RunInstance(ctx context.Context, req types.RunRequest) (string, error)
}

// Config carries the orchestrator's tunables.
type Config struct {
	MaxSpotPrice  float64
	UbuntuRelease string
	ScriptDir     string
}

// Orchestrator is safe for concurrent use. The instance cache has one
// writer (FillInstanceList) and many readers.
type Orchestrator struct {
	cloud  CloudAPI
	cfg    Config
	cache  *instanceCache
	logger *telemetry.Logger

	types  catalog.TypeStore
	prices catalog.PriceStore
	mail   catalog.MailStore
	sup    *sysd.Supervisor

	retryOpts    []retry.Option
	pollInterval time.Duration
	pollAttempts int
	statusBudget time.Duration

	tasks    sync.WaitGroup
	taskCtx  context.Context
	stopTask context.CancelFunc
}

func New(cloud CloudAPI, cfg Config) *Orchestrator {
	taskCtx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		cloud:        cloud,
		cfg:          cfg,
		cache:        &instanceCache{},
		logger:       telemetry.NewLogger("orchestrator"),
		pollInterval: 5 * time.Second,
		pollAttempts: 20,
		statusBudget: 60 * time.Second,
		taskCtx:      taskCtx,
		stopTask:     stop,
	}
}

// WithCatalog wires the price-join stores.
func (o *Orchestrator) WithCatalog(types catalog.TypeStore, prices catalog.PriceStore) *Orchestrator {
	o.types = types
	o.prices = prices
	return o
}

// WithMailStore enables the inbound-email listing.
func (o *Orchestrator) WithMailStore(mail catalog.MailStore) *Orchestrator {
	o.mail = mail
	return o
}

// WithSupervisor enables the systemd listing.
func (o *Orchestrator) WithSupervisor(sup *sysd.Supervisor) *Orchestrator {
	o.sup = sup
	return o
}

// WithRetryOptions overrides the retry driver behavior, used by tests to
// remove sleeps.
func (o *Orchestrator) WithRetryOptions(opts ...retry.Option) *Orchestrator {
	o.retryOpts = opts
	return o
}

// Close abandons outstanding background tasks and waits for them to
// observe the cancellation.
func (o *Orchestrator) Close() {
	o.stopTask()
	o.tasks.Wait()
}

// do wraps one adapter call in the retry driver.
func (o *Orchestrator) do(ctx context.Context, fn func(context.Context) error) error {
	return retry.Do(ctx, fn, o.retryOpts...)
}

// call is the value-returning companion of do.
func call[T any](ctx context.Context, o *Orchestrator, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := o.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// instanceCache is the shared snapshot of the last instance listing.
// Readers get a copy, never the backing slice.
type instanceCache struct {
	mu        sync.RWMutex
	instances []types.Instance
}

func (c *instanceCache) set(instances []types.Instance) {
	snapshot := make([]types.Instance, len(instances))
	copy(snapshot, instances)
	c.mu.Lock()
	c.instances = snapshot
	c.mu.Unlock()
}

func (c *instanceCache) snapshot() []types.Instance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Instance, len(c.instances))
	copy(out, c.instances)
	return out
}

// FillInstanceList refreshes the cached instance snapshot: running
// instances first, then launch time ascending. Two consecutive calls
// against the same provider state publish identical snapshots.
func (o *Orchestrator) FillInstanceList(ctx context.Context) ([]types.Instance, error) {
	instances, err := call(ctx, o, o.cloud.ListInstances)
	if err != nil {
		return nil, err
	}
	types.SortInstances(instances)
	o.cache.set(instances)
	o.logger.Debug().Int("count", len(instances)).Msg("instance cache refreshed")
	return instances, nil
}

// CachedInstances returns the current snapshot without touching the
// provider.
func (o *Orchestrator) CachedInstances() []types.Instance {
	return o.cache.snapshot()
}

// resolver rebuilds alias maps from the cached snapshot.
func (o *Orchestrator) resolver() *alias.Resolver {
	return alias.Build(o.cache.snapshot())
}
