package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stratus-ops/stratus/types"
)

// ListInstances returns all compute instances. Records missing any
// required field are dropped, never failing the listing.
func (a *Adapter) ListInstances(ctx context.Context) ([]types.Instance, error) {
	var instances []types.Instance
	var nextToken *string

	for {
		output, err := a.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, inst := range reservation.Instances {
				if converted, ok := convertInstance(inst); ok {
					instances = append(instances, converted)
				}
			}
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	return instances, nil
}

func convertInstance(inst ec2types.Instance) (types.Instance, bool) {
	if inst.InstanceId == nil || inst.PublicDnsName == nil || inst.State == nil ||
		inst.State.Name == "" || inst.InstanceType == "" || inst.LaunchTime == nil ||
		inst.Placement == nil || inst.Placement.AvailabilityZone == nil {
		return types.Instance{}, false
	}

	return types.Instance{
		ID:         awssdk.ToString(inst.InstanceId),
		DNSName:    awssdk.ToString(inst.PublicDnsName),
		State:      string(inst.State.Name),
		Type:       string(inst.InstanceType),
		AZ:         awssdk.ToString(inst.Placement.AvailabilityZone),
		LaunchTime: inst.LaunchTime.UTC(),
		Tags:       convertEC2Tags(inst.Tags),
	}, true
}

// ListReserved returns reserved instances, filtering out retired entries.
func (a *Adapter) ListReserved(ctx context.Context) ([]types.ReservedInstance, error) {
	output, err := a.ec2Client.DescribeReservedInstances(ctx, &ec2.DescribeReservedInstancesInput{})
	if err != nil {
		return nil, fmt.Errorf("describe reserved instances: %w", err)
	}

	var reserved []types.ReservedInstance
	for _, ri := range output.ReservedInstances {
		if ri.State == ec2types.ReservedInstanceStateRetired {
			continue
		}
		if ri.ReservedInstancesId == nil || ri.InstanceType == "" {
			continue
		}
		reserved = append(reserved, types.ReservedInstance{
			ID:         awssdk.ToString(ri.ReservedInstancesId),
			FixedPrice: float64(awssdk.ToFloat32(ri.FixedPrice)),
			Type:       string(ri.InstanceType),
			State:      string(ri.State),
			AZ:         awssdk.ToString(ri.AvailabilityZone),
		})
	}
	return reserved, nil
}

// TerminateInstances terminates the given instance ids.
func (a *Adapter) TerminateInstances(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := a.ec2Client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: ids})
	if err != nil {
		return fmt.Errorf("terminate instances: %w", err)
	}
	return nil
}

// TagResource applies a tag map to a resource id.
func (a *Adapter) TagResource(ctx context.Context, id string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := a.ec2Client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{id},
		Tags:      toEC2Tags(tags),
	})
	if err != nil {
		return fmt.Errorf("create tags on %s: %w", id, err)
	}
	return nil
}

// GetConsoleOutput fetches the system log of an instance.
func (a *Adapter) GetConsoleOutput(ctx context.Context, id string) (string, error) {
	output, err := a.ec2Client.GetConsoleOutput(ctx, &ec2.GetConsoleOutputInput{InstanceId: awssdk.String(id)})
	if err != nil {
		return "", fmt.Errorf("get console output for %s: %w", id, err)
	}
	return awssdk.ToString(output.Output), nil
}

func convertEC2Tags(tags []ec2types.Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		out[awssdk.ToString(tag.Key)] = awssdk.ToString(tag.Value)
	}
	return out
}

func toEC2Tags(tags map[string]string) []ec2types.Tag {
	out := make([]ec2types.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, ec2types.Tag{Key: awssdk.String(k), Value: awssdk.String(v)})
	}
	return out
}
