package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stratus-ops/stratus/types"
)

// ListVolumes returns all block-storage volumes.
func (a *Adapter) ListVolumes(ctx context.Context) ([]types.Volume, error) {
	var volumes []types.Volume
	var nextToken *string

	for {
		output, err := a.ec2Client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe volumes: %w", err)
		}

		for _, vol := range output.Volumes {
			if vol.VolumeId == nil || vol.AvailabilityZone == nil {
				continue
			}
			volumes = append(volumes, types.Volume{
				ID:    awssdk.ToString(vol.VolumeId),
				AZ:    awssdk.ToString(vol.AvailabilityZone),
				Size:  awssdk.ToInt32(vol.Size),
				IOPS:  awssdk.ToInt32(vol.Iops),
				State: string(vol.State),
				Tags:  convertEC2Tags(vol.Tags),
			})
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	return volumes, nil
}

// ListSnapshots returns the tenant's snapshots. Without a configured
// owner id the listing is empty rather than an error.
func (a *Adapter) ListSnapshots(ctx context.Context) ([]types.Snapshot, error) {
	if a.ownerID == "" {
		return nil, nil
	}

	var snapshots []types.Snapshot
	var nextToken *string

	for {
		output, err := a.ec2Client.DescribeSnapshots(ctx, &ec2.DescribeSnapshotsInput{
			OwnerIds:  []string{a.ownerID},
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("describe snapshots: %w", err)
		}

		for _, snap := range output.Snapshots {
			if snap.SnapshotId == nil {
				continue
			}
			snapshots = append(snapshots, types.Snapshot{
				ID:         awssdk.ToString(snap.SnapshotId),
				VolumeSize: awssdk.ToInt32(snap.VolumeSize),
				State:      string(snap.State),
				Progress:   awssdk.ToString(snap.Progress),
				Tags:       convertEC2Tags(snap.Tags),
			})
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	return snapshots, nil
}

// CreateVolume creates a volume in an availability zone and returns its id.
func (a *Adapter) CreateVolume(ctx context.Context, az string, sizeGiB int32) (string, error) {
	output, err := a.ec2Client.CreateVolume(ctx, &ec2.CreateVolumeInput{
		AvailabilityZone: awssdk.String(az),
		Size:             awssdk.Int32(sizeGiB),
	})
	if err != nil {
		return "", fmt.Errorf("create volume: %w", err)
	}
	return awssdk.ToString(output.VolumeId), nil
}

// DeleteVolume removes a volume.
func (a *Adapter) DeleteVolume(ctx context.Context, volumeID string) error {
	_, err := a.ec2Client.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: awssdk.String(volumeID)})
	if err != nil {
		return fmt.Errorf("delete volume %s: %w", volumeID, err)
	}
	return nil
}

// AttachVolume attaches a volume to an instance at a device path.
func (a *Adapter) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	_, err := a.ec2Client.AttachVolume(ctx, &ec2.AttachVolumeInput{
		VolumeId:   awssdk.String(volumeID),
		InstanceId: awssdk.String(instanceID),
		Device:     awssdk.String(device),
	})
	if err != nil {
		return fmt.Errorf("attach volume %s to %s: %w", volumeID, instanceID, err)
	}
	return nil
}

// DetachVolume detaches a volume.
func (a *Adapter) DetachVolume(ctx context.Context, volumeID string) error {
	_, err := a.ec2Client.DetachVolume(ctx, &ec2.DetachVolumeInput{VolumeId: awssdk.String(volumeID)})
	if err != nil {
		return fmt.Errorf("detach volume %s: %w", volumeID, err)
	}
	return nil
}

// ModifyVolume changes a volume's size.
func (a *Adapter) ModifyVolume(ctx context.Context, volumeID string, sizeGiB int32) error {
	_, err := a.ec2Client.ModifyVolume(ctx, &ec2.ModifyVolumeInput{
		VolumeId: awssdk.String(volumeID),
		Size:     awssdk.Int32(sizeGiB),
	})
	if err != nil {
		return fmt.Errorf("modify volume %s: %w", volumeID, err)
	}
	return nil
}

// CreateSnapshot snapshots a volume and returns the snapshot id.
func (a *Adapter) CreateSnapshot(ctx context.Context, volumeID, name string) (string, error) {
	input := &ec2.CreateSnapshotInput{VolumeId: awssdk.String(volumeID)}
	if name != "" {
		input.TagSpecifications = []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeSnapshot,
			Tags:         toEC2Tags(map[string]string{"Name": name}),
		}}
	}

	output, err := a.ec2Client.CreateSnapshot(ctx, input)
	if err != nil {
		return "", fmt.Errorf("create snapshot of %s: %w", volumeID, err)
	}
	return awssdk.ToString(output.SnapshotId), nil
}

// DeleteSnapshot removes a snapshot.
func (a *Adapter) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	_, err := a.ec2Client.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{SnapshotId: awssdk.String(snapshotID)})
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", snapshotID, err)
	}
	return nil
}
