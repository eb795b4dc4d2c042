package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/stratus-ops/stratus/types"
)

// ListKeyPairs returns the registered SSH key pairs.
func (a *Adapter) ListKeyPairs(ctx context.Context) ([]types.KeyPair, error) {
	output, err := a.ec2Client.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{})
	if err != nil {
		return nil, fmt.Errorf("describe key pairs: %w", err)
	}

	var keys []types.KeyPair
	for _, kp := range output.KeyPairs {
		if kp.KeyName == nil {
			continue
		}
		keys = append(keys, types.KeyPair{
			Name:        awssdk.ToString(kp.KeyName),
			Fingerprint: awssdk.ToString(kp.KeyFingerprint),
		})
	}
	return keys, nil
}

// ListRegions returns the provider regions visible to the account.
func (a *Adapter) ListRegions(ctx context.Context) ([]types.Region, error) {
	output, err := a.ec2Client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, fmt.Errorf("describe regions: %w", err)
	}

	var regions []types.Region
	for _, region := range output.Regions {
		if region.RegionName == nil {
			continue
		}
		regions = append(regions, types.Region{
			Name:     awssdk.ToString(region.RegionName),
			Endpoint: awssdk.ToString(region.Endpoint),
		})
	}
	return regions, nil
}

// ListSecurityGroups returns the account's firewall groups.
func (a *Adapter) ListSecurityGroups(ctx context.Context) ([]types.SecurityGroup, error) {
	var groups []types.SecurityGroup
	var nextToken *string

	for {
		output, err := a.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe security groups: %w", err)
		}

		for _, sg := range output.SecurityGroups {
			if sg.GroupId == nil {
				continue
			}
			groups = append(groups, types.SecurityGroup{
				ID:          awssdk.ToString(sg.GroupId),
				Name:        awssdk.ToString(sg.GroupName),
				Description: awssdk.ToString(sg.Description),
			})
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	return groups, nil
}
