package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/stratus-ops/stratus/alias"
	"github.com/stratus-ops/stratus/telemetry"
	"github.com/stratus-ops/stratus/types"
)

// Terminate resolves each input through the alias maps built from the
// cached snapshot and terminates the resulting ids. Unknown names pass
// through verbatim.
func (o *Orchestrator) Terminate(ctx context.Context, names []string) error {
	r := o.resolver()
	ids := make([]string, len(names))
	for i, name := range names {
		ids[i] = r.Resolve(name)
	}
	o.logger.Info().Strs("ids", ids).Msg("terminating instances")
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.TerminateInstances(ctx, ids)
	})
}

// CreateImage snapshots an instance into a new AMI and returns its id,
// or "" when the provider returned none.
func (o *Orchestrator) CreateImage(ctx context.Context, instance, name string) (string, error) {
	id := o.resolver().Resolve(instance)
	return call(ctx, o, func(ctx context.Context) (string, error) {
		return o.cloud.CreateImage(ctx, id, name)
	})
}

// DeleteImage deregisters an AMI given its id or name.
func (o *Orchestrator) DeleteImage(ctx context.Context, amiOrName string) error {
	images, err := call(ctx, o, o.cloud.ListImages)
	if err != nil {
		return err
	}
	byName := make(map[string]string, len(images))
	for _, img := range images {
		byName[img.Name] = img.ID
	}
	id := alias.MapOrVal(byName, amiOrName)
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.DeregisterImage(ctx, id)
	})
}

// volumeID maps a volume Name tag (or raw id) to the volume id.
func (o *Orchestrator) volumeID(ctx context.Context, volOrName string) (string, error) {
	volumes, err := call(ctx, o, o.cloud.ListVolumes)
	if err != nil {
		return "", err
	}
	byName := make(map[string]string, len(volumes))
	for _, v := range volumes {
		if name := v.Name(); name != "" {
			byName[name] = v.ID
		}
	}
	return alias.MapOrVal(byName, volOrName), nil
}

func (o *Orchestrator) CreateVolume(ctx context.Context, az string, sizeGiB int32) (string, error) {
	return call(ctx, o, func(ctx context.Context) (string, error) {
		return o.cloud.CreateVolume(ctx, az, sizeGiB)
	})
}

func (o *Orchestrator) DeleteVolume(ctx context.Context, volOrName string) error {
	id, err := o.volumeID(ctx, volOrName)
	if err != nil {
		return err
	}
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.DeleteVolume(ctx, id)
	})
}

func (o *Orchestrator) AttachVolume(ctx context.Context, volOrName, instance, device string) error {
	id, err := o.volumeID(ctx, volOrName)
	if err != nil {
		return err
	}
	instanceID := o.resolver().Resolve(instance)
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.AttachVolume(ctx, id, instanceID, device)
	})
}

func (o *Orchestrator) DetachVolume(ctx context.Context, volOrName string) error {
	id, err := o.volumeID(ctx, volOrName)
	if err != nil {
		return err
	}
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.DetachVolume(ctx, id)
	})
}

func (o *Orchestrator) ModifyVolume(ctx context.Context, volOrName string, sizeGiB int32) error {
	id, err := o.volumeID(ctx, volOrName)
	if err != nil {
		return err
	}
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.ModifyVolume(ctx, id, sizeGiB)
	})
}

// CreateSnapshot snapshots a volume; the snapshot carries name as its
// Name tag.
func (o *Orchestrator) CreateSnapshot(ctx context.Context, volOrName, name string) (string, error) {
	id, err := o.volumeID(ctx, volOrName)
	if err != nil {
		return "", err
	}
	return call(ctx, o, func(ctx context.Context) (string, error) {
		return o.cloud.CreateSnapshot(ctx, id, name)
	})
}

// DeleteSnapshot deletes a snapshot given its id or Name tag.
func (o *Orchestrator) DeleteSnapshot(ctx context.Context, snapOrName string) error {
	snapshots, err := call(ctx, o, o.cloud.ListSnapshots)
	if err != nil {
		return err
	}
	byName := make(map[string]string, len(snapshots))
	for _, s := range snapshots {
		if name := s.Name(); name != "" {
			byName[name] = s.ID
		}
	}
	id := alias.MapOrVal(byName, snapOrName)
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.DeleteSnapshot(ctx, id)
	})
}

// TagResource applies a tag map to an instance, volume or snapshot,
// resolving instance aliases.
func (o *Orchestrator) TagResource(ctx context.Context, idOrName string, tags map[string]string) error {
	id := o.resolver().Resolve(idOrName)
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.TagResource(ctx, id, tags)
	})
}

// substituteAMI replaces a known image name with its id; anything else
// passes through.
func (o *Orchestrator) substituteAMI(ctx context.Context, ami string) (string, error) {
	images, err := call(ctx, o, o.cloud.ListImages)
	if err != nil {
		return "", err
	}
	byName := make(map[string]string, len(images))
	for _, img := range images {
		byName[img.Name] = img.ID
	}
	return alias.MapOrVal(byName, ami), nil
}

// RequestSpot places a spot bid and starts the tag-propagation task for
// the returned request ids. The request's AMI may be an image name.
func (o *Orchestrator) RequestSpot(ctx context.Context, req types.SpotLaunchRequest) ([]string, error) {
	amiID, err := o.substituteAMI(ctx, req.AMI)
	if err != nil {
		return nil, err
	}
	req.AMI = amiID
	if req.Price == 0 {
		req.Price = o.cfg.MaxSpotPrice
	}

	ids, err := call(ctx, o, func(ctx context.Context) ([]string, error) {
		return o.cloud.RequestSpotInstances(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	if len(req.Tags) > 0 {
		o.tasks.Add(1)
		go func() {
			defer o.tasks.Done()
			o.propagateTags(o.taskCtx, ids, req.Tags)
		}()
	}
	return ids, nil
}

// RunInstance launches one on-demand instance, substituting a known AMI
// name for its id.
func (o *Orchestrator) RunInstance(ctx context.Context, req types.RunRequest) (string, error) {
	amiID, err := o.substituteAMI(ctx, req.AMI)
	if err != nil {
		return "", err
	}
	req.AMI = amiID
	return call(ctx, o, func(ctx context.Context) (string, error) {
		return o.cloud.RunInstance(ctx, req)
	})
}

// CancelSpot cancels spot requests by id.
func (o *Orchestrator) CancelSpot(ctx context.Context, ids []string) error {
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.CancelSpotRequests(ctx, ids)
	})
}

// propagateTags polls the spot listing until one of the requests reports
// a bound instance id, then tags that instance. Exhausting the attempt
// budget is not an error the operator sees.
func (o *Orchestrator) propagateTags(ctx context.Context, requestIDs []string, tags map[string]string) {
	wanted := make(map[string]struct{}, len(requestIDs))
	for _, id := range requestIDs {
		wanted[id] = struct{}{}
	}

	telemetry.Count(ctx, telemetry.TagPropagationRuns, 1)
	for attempt := 0; attempt < o.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.pollInterval):
		}

		requests, err := o.cloud.ListSpotRequests(ctx)
		if err != nil {
			continue
		}
		for _, req := range requests {
			if _, ok := wanted[req.ID]; !ok || req.InstanceID == "" {
				continue
			}
			if err := o.cloud.TagResource(ctx, req.InstanceID, tags); err != nil {
				o.logger.Debug().Err(err).Str("instance", req.InstanceID).Msg("tagging fulfilled spot instance failed")
				return
			}
			o.logger.Info().Str("instance", req.InstanceID).Msg("spot instance tagged")
			return
		}
	}
	o.logger.Debug().Strs("request_ids", requestIDs).Msg("tag propagation gave up")
}

// GetStatus alias-resolves an instance and returns its console output,
// bounded by a 60-second wall clock.
func (o *Orchestrator) GetStatus(ctx context.Context, instance string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.statusBudget)
	defer cancel()

	id := o.resolver().Resolve(instance)
	return call(ctx, o, func(ctx context.Context) (string, error) {
		return o.cloud.GetConsoleOutput(ctx, id)
	})
}

// UpdateDNS rewrites the A record for name from oldIP to newIP inside
// one change batch. The record must currently hold oldIP; old == new is
// a no-op.
func (o *Orchestrator) UpdateDNS(ctx context.Context, zoneID, name, oldIP, newIP string) error {
	if oldIP == newIP {
		return nil
	}

	records, err := call(ctx, o, o.cloud.ListDNSRecords)
	if err != nil {
		return err
	}
	found := false
	for _, record := range records {
		if record.ZoneID == zoneID && record.Name == name && record.IP == oldIP {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no A record %s with value %s in zone %s", name, oldIP, zoneID)
	}

	comment := fmt.Sprintf("change ip of %s from %s to %s", name, oldIP, newIP)
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.UpsertARecord(ctx, zoneID, name, newIP, comment)
	})
}

// DeleteECRImage deletes one image digest from a repository.
func (o *Orchestrator) DeleteECRImage(ctx context.Context, repo, digest string) error {
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.DeleteRepositoryImages(ctx, repo, []string{digest})
	})
}

// CleanupECRImages deletes everything but the newest image in each
// repository.
func (o *Orchestrator) CleanupECRImages(ctx context.Context) error {
	images, err := call(ctx, o, o.cloud.ListRepositoryImages)
	if err != nil {
		return err
	}

	byRepo := make(map[string][]types.RepositoryImage)
	for _, img := range images {
		byRepo[img.Repository] = append(byRepo[img.Repository], img)
	}

	for repo, repoImages := range byRepo {
		if len(repoImages) < 2 {
			continue
		}
		sort.Slice(repoImages, func(i, j int) bool {
			return repoImages[i].PushedAt.After(repoImages[j].PushedAt)
		})
		digests := make([]string, 0, len(repoImages)-1)
		for _, img := range repoImages[1:] {
			digests = append(digests, img.Digest)
		}
		if err := o.do(ctx, func(ctx context.Context) error {
			return o.cloud.DeleteRepositoryImages(ctx, repo, digests)
		}); err != nil {
			return err
		}
		o.logger.Info().Str("repository", repo).Int("deleted", len(digests)).Msg("repository pruned")
	}
	return nil
}

// IAM pass-throughs. Alias resolution does not apply to identities.

func (o *Orchestrator) CreateUser(ctx context.Context, userName string) (*types.User, error) {
	return call(ctx, o, func(ctx context.Context) (*types.User, error) {
		return o.cloud.CreateUser(ctx, userName)
	})
}

func (o *Orchestrator) DeleteUser(ctx context.Context, userName string) error {
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.DeleteUser(ctx, userName)
	})
}

func (o *Orchestrator) AddUserToGroup(ctx context.Context, userName, groupName string) error {
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.AddUserToGroup(ctx, userName, groupName)
	})
}

func (o *Orchestrator) RemoveUserFromGroup(ctx context.Context, userName, groupName string) error {
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.RemoveUserFromGroup(ctx, userName, groupName)
	})
}

func (o *Orchestrator) CreateAccessKey(ctx context.Context, userName string) (*types.AccessKey, error) {
	return call(ctx, o, func(ctx context.Context) (*types.AccessKey, error) {
		return o.cloud.CreateAccessKey(ctx, userName)
	})
}

func (o *Orchestrator) DeleteAccessKey(ctx context.Context, userName, keyID string) error {
	return o.do(ctx, func(ctx context.Context) error {
		return o.cloud.DeleteAccessKey(ctx, userName, keyID)
	})
}
