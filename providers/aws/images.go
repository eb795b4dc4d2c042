package aws

import (
	"context"
	"fmt"
	"sort"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stratus-ops/stratus/types"
)

// ubuntuOwnerID is Canonical's AWS account.
const ubuntuOwnerID = "099720109477"

// ListImages returns the tenant's AMIs. Without a configured owner id the
// listing is empty rather than an error.
func (a *Adapter) ListImages(ctx context.Context) ([]types.Image, error) {
	if a.ownerID == "" {
		return nil, nil
	}

	output, err := a.ec2Client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{a.ownerID},
	})
	if err != nil {
		return nil, fmt.Errorf("describe images: %w", err)
	}

	var images []types.Image
	for _, img := range output.Images {
		if img.ImageId == nil || img.Name == nil {
			continue
		}
		images = append(images, convertImage(img))
	}
	return images, nil
}

// LatestUbuntuImage returns Canonical's HVM SSD images for a release,
// sorted ascending by name so the newest build is last.
func (a *Adapter) LatestUbuntuImage(ctx context.Context, release string) ([]types.Image, error) {
	pattern := fmt.Sprintf("ubuntu/images/hvm-ssd/ubuntu-%s-amd64-server*", release)

	output, err := a.ec2Client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{ubuntuOwnerID},
		Filters: []ec2types.Filter{{
			Name:   awssdk.String("name"),
			Values: []string{pattern},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("describe ubuntu images: %w", err)
	}

	var images []types.Image
	for _, img := range output.Images {
		if img.ImageId == nil || img.Name == nil {
			continue
		}
		images = append(images, convertImage(img))
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

func convertImage(img ec2types.Image) types.Image {
	var snapshotIDs []string
	for _, mapping := range img.BlockDeviceMappings {
		if mapping.Ebs != nil && mapping.Ebs.SnapshotId != nil {
			snapshotIDs = append(snapshotIDs, awssdk.ToString(mapping.Ebs.SnapshotId))
		}
	}
	return types.Image{
		ID:          awssdk.ToString(img.ImageId),
		Name:        awssdk.ToString(img.Name),
		State:       string(img.State),
		SnapshotIDs: snapshotIDs,
	}
}

// CreateImage creates an AMI from an instance and returns the new id.
func (a *Adapter) CreateImage(ctx context.Context, instanceID, name string) (string, error) {
	output, err := a.ec2Client.CreateImage(ctx, &ec2.CreateImageInput{
		InstanceId: awssdk.String(instanceID),
		Name:       awssdk.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("create image from %s: %w", instanceID, err)
	}
	return awssdk.ToString(output.ImageId), nil
}

// DeregisterImage removes an AMI.
func (a *Adapter) DeregisterImage(ctx context.Context, imageID string) error {
	_, err := a.ec2Client.DeregisterImage(ctx, &ec2.DeregisterImageInput{
		ImageId: awssdk.String(imageID),
	})
	if err != nil {
		return fmt.Errorf("deregister image %s: %w", imageID, err)
	}
	return nil
}
