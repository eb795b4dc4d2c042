package orchestrator

import (
	"context"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/stratus-ops/stratus/catalog"
	"github.com/stratus-ops/stratus/sysd"
	"github.com/stratus-ops/stratus/types"
)

// Listings carries the per-kind results of one List call. Only the
// fields for the requested kinds are populated; the shapes are too
// different to unify.
type Listings struct {
	Instances        []types.Instance
	Reserved         []types.ReservedInstance
	Spot             []types.SpotRequest
	Images           []types.Image
	Volumes          []types.Volume
	Snapshots        []types.Snapshot
	RepositoryImages []types.RepositoryImage
	KeyPairs         []types.KeyPair
	Scripts          []string
	Users            []types.User
	Groups           []types.Group
	AccessKeys       []types.AccessKeyMetadata
	DNSRecords       []types.DNSRecord
	Services         map[string]sysd.RunState
	Emails           []catalog.InboundEmail
	SecurityGroups   []types.SecurityGroup
}

// List enumerates the requested resource kinds in parallel. Instances
// are always included and always refresh the cache. The kind set is
// de-duplicated preserving first-seen order; the first error cancels the
// remaining listings.
func (o *Orchestrator) List(ctx context.Context, kinds ...types.Kind) (*Listings, error) {
	requested := []types.Kind{types.KindInstances}
	seen := map[types.Kind]struct{}{types.KindInstances: {}}
	for _, k := range kinds {
		for _, expanded := range k.ExpandAll() {
			if _, ok := seen[expanded]; ok {
				continue
			}
			seen[expanded] = struct{}{}
			requested = append(requested, expanded)
		}
	}

	out := &Listings{}
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range requested {
		g.Go(o.listOne(ctx, kind, out))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// listOne returns the closure that fills one Listings field. Each kind
// writes a distinct field, so no locking is needed across siblings.
func (o *Orchestrator) listOne(ctx context.Context, kind types.Kind, out *Listings) func() error {
	switch kind {
	case types.KindInstances:
		return func() error {
			instances, err := o.FillInstanceList(ctx)
			out.Instances = instances
			return err
		}
	case types.KindReserved:
		return func() (err error) {
			out.Reserved, err = call(ctx, o, o.cloud.ListReserved)
			return err
		}
	case types.KindSpot:
		return func() (err error) {
			out.Spot, err = call(ctx, o, o.cloud.ListSpotRequests)
			return err
		}
	case types.KindAMI:
		return func() (err error) {
			out.Images, err = call(ctx, o, o.cloud.ListImages)
			return err
		}
	case types.KindVolume:
		return func() (err error) {
			out.Volumes, err = call(ctx, o, o.cloud.ListVolumes)
			return err
		}
	case types.KindSnapshot:
		return func() (err error) {
			out.Snapshots, err = call(ctx, o, o.cloud.ListSnapshots)
			return err
		}
	case types.KindECR:
		return func() (err error) {
			out.RepositoryImages, err = call(ctx, o, o.cloud.ListRepositoryImages)
			return err
		}
	case types.KindKey:
		return func() (err error) {
			out.KeyPairs, err = call(ctx, o, o.cloud.ListKeyPairs)
			return err
		}
	case types.KindScript:
		return func() (err error) {
			out.Scripts, err = o.listScripts()
			return err
		}
	case types.KindUser:
		return func() (err error) {
			out.Users, err = call(ctx, o, o.cloud.ListUsers)
			return err
		}
	case types.KindGroup:
		return func() (err error) {
			out.Groups, err = call(ctx, o, o.cloud.ListGroups)
			return err
		}
	case types.KindAccessKey:
		return func() (err error) {
			out.AccessKeys, err = o.listAllAccessKeys(ctx)
			return err
		}
	case types.KindRoute53:
		return func() (err error) {
			out.DNSRecords, err = call(ctx, o, o.cloud.ListDNSRecords)
			return err
		}
	case types.KindSystemd:
		return func() (err error) {
			if o.sup == nil {
				return nil
			}
			out.Services, err = o.sup.ListRunning(ctx)
			return err
		}
	case types.KindInboundEmail:
		return func() (err error) {
			if o.mail == nil {
				return nil
			}
			out.Emails, err = o.mail.ListInboundEmails(ctx)
			return err
		}
	case types.KindSecurityGroup:
		return func() (err error) {
			out.SecurityGroups, err = call(ctx, o, o.cloud.ListSecurityGroups)
			return err
		}
	default:
		return func() error {
			return fmt.Errorf("unknown resource kind %q", kind)
		}
	}
}

// listAllAccessKeys gathers access keys across every IAM user.
func (o *Orchestrator) listAllAccessKeys(ctx context.Context) ([]types.AccessKeyMetadata, error) {
	users, err := call(ctx, o, o.cloud.ListUsers)
	if err != nil {
		return nil, err
	}
	var keys []types.AccessKeyMetadata
	for _, user := range users {
		userKeys, err := call(ctx, o, func(ctx context.Context) ([]types.AccessKeyMetadata, error) {
			return o.cloud.ListAccessKeys(ctx, user.Name)
		})
		if err != nil {
			return nil, err
		}
		keys = append(keys, userKeys...)
	}
	return keys, nil
}

// listScripts names the files in the configured script directory. A
// missing directory is an empty listing, not an error.
func (o *Orchestrator) listScripts() ([]string, error) {
	if o.cfg.ScriptDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(o.cfg.ScriptDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read script dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
