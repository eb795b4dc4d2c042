package aws

import (
	"context"
	"fmt"
	"strconv"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stratus-ops/stratus/types"
)

// spotPriceLookback bounds the spot-price history query.
const spotPriceLookback = 4 * time.Hour

var spotPriceZones = []string{
	"us-east-1a", "us-east-1b", "us-east-1c",
	"us-east-1d", "us-east-1e", "us-east-1f",
}

// ListSpotRequests returns all spot instance requests. A bid price that
// fails numeric parsing becomes 0.0; absent status fields become empty.
func (a *Adapter) ListSpotRequests(ctx context.Context) ([]types.SpotRequest, error) {
	output, err := a.ec2Client.DescribeSpotInstanceRequests(ctx, &ec2.DescribeSpotInstanceRequestsInput{})
	if err != nil {
		return nil, fmt.Errorf("describe spot instance requests: %w", err)
	}

	var requests []types.SpotRequest
	for _, req := range output.SpotInstanceRequests {
		if req.SpotInstanceRequestId == nil {
			continue
		}

		price := 0.0
		if req.SpotPrice != nil {
			if parsed, perr := strconv.ParseFloat(awssdk.ToString(req.SpotPrice), 64); perr == nil {
				price = parsed
			}
		}

		var status string
		if req.Status != nil {
			status = awssdk.ToString(req.Status.Code)
		}

		var imageID string
		if req.LaunchSpecification != nil {
			imageID = awssdk.ToString(req.LaunchSpecification.ImageId)
		}

		var instanceType string
		if req.LaunchSpecification != nil {
			instanceType = string(req.LaunchSpecification.InstanceType)
		}

		requests = append(requests, types.SpotRequest{
			ID:          awssdk.ToString(req.SpotInstanceRequestId),
			Price:       price,
			ImageID:     imageID,
			Type:        instanceType,
			RequestType: string(req.Type),
			Status:      status,
			InstanceID:  awssdk.ToString(req.InstanceId),
		})
	}
	return requests, nil
}

// SpotPriceHistory returns the last observed Linux/UNIX spot price per
// instance type across us-east-1a..f within the lookback window.
func (a *Adapter) SpotPriceHistory(ctx context.Context, instanceTypes []string) (map[string]float64, error) {
	if len(instanceTypes) == 0 {
		return map[string]float64{}, nil
	}

	sdkTypes := make([]ec2types.InstanceType, 0, len(instanceTypes))
	for _, t := range instanceTypes {
		sdkTypes = append(sdkTypes, ec2types.InstanceType(t))
	}

	prices := make(map[string]float64)
	var nextToken *string
	start := time.Now().Add(-spotPriceLookback)

	for {
		output, err := a.ec2Client.DescribeSpotPriceHistory(ctx, &ec2.DescribeSpotPriceHistoryInput{
			InstanceTypes:       sdkTypes,
			ProductDescriptions: []string{"Linux/UNIX"},
			StartTime:           awssdk.Time(start),
			Filters: []ec2types.Filter{{
				Name:   awssdk.String("availability-zone"),
				Values: spotPriceZones,
			}},
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("describe spot price history: %w", err)
		}

		for _, entry := range output.SpotPriceHistory {
			if entry.SpotPrice == nil {
				continue
			}
			price, perr := strconv.ParseFloat(awssdk.ToString(entry.SpotPrice), 64)
			if perr != nil {
				price = 0.0
			}
			prices[string(entry.InstanceType)] = price
		}

		if output.NextToken == nil || awssdk.ToString(output.NextToken) == "" {
			break
		}
		nextToken = output.NextToken
	}

	return prices, nil
}

// RequestSpotInstances places a spot bid and returns the request ids.
func (a *Adapter) RequestSpotInstances(ctx context.Context, req types.SpotLaunchRequest) ([]string, error) {
	input := &ec2.RequestSpotInstancesInput{
		SpotPrice: awssdk.String(strconv.FormatFloat(req.Price, 'f', -1, 64)),
		LaunchSpecification: &ec2types.RequestSpotLaunchSpecification{
			ImageId:      awssdk.String(req.AMI),
			InstanceType: ec2types.InstanceType(req.InstanceType),
		},
	}
	if req.KeyName != "" {
		input.LaunchSpecification.KeyName = awssdk.String(req.KeyName)
	}
	if req.SecurityGroup != "" {
		input.LaunchSpecification.SecurityGroupIds = []string{req.SecurityGroup}
	}
	if req.UserData != "" {
		input.LaunchSpecification.UserData = awssdk.String(req.UserData)
	}

	output, err := a.ec2Client.RequestSpotInstances(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("request spot instances: %w", err)
	}

	var ids []string
	for _, r := range output.SpotInstanceRequests {
		if r.SpotInstanceRequestId != nil {
			ids = append(ids, awssdk.ToString(r.SpotInstanceRequestId))
		}
	}
	return ids, nil
}

// CancelSpotRequests cancels the given spot request ids.
func (a *Adapter) CancelSpotRequests(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := a.ec2Client.CancelSpotInstanceRequests(ctx, &ec2.CancelSpotInstanceRequestsInput{
		SpotInstanceRequestIds: ids,
	})
	if err != nil {
		return fmt.Errorf("cancel spot instance requests: %w", err)
	}
	return nil
}

// RunInstance launches a single on-demand instance and returns its id.
func (a *Adapter) RunInstance(ctx context.Context, req types.RunRequest) (string, error) {
	input := &ec2.RunInstancesInput{
		ImageId:      awssdk.String(req.AMI),
		InstanceType: ec2types.InstanceType(req.InstanceType),
		MinCount:     awssdk.Int32(1),
		MaxCount:     awssdk.Int32(1),
	}
	if req.KeyName != "" {
		input.KeyName = awssdk.String(req.KeyName)
	}
	if req.SecurityGroup != "" {
		input.SecurityGroupIds = []string{req.SecurityGroup}
	}
	if req.UserData != "" {
		input.UserData = awssdk.String(req.UserData)
	}
	if len(req.Tags) > 0 {
		input.TagSpecifications = []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags:         toEC2Tags(req.Tags),
		}}
	}

	output, err := a.ec2Client.RunInstances(ctx, input)
	if err != nil {
		return "", fmt.Errorf("run instances: %w", err)
	}
	if len(output.Instances) == 0 || output.Instances[0].InstanceId == nil {
		return "", fmt.Errorf("run instances: provider returned no instance")
	}
	return awssdk.ToString(output.Instances[0].InstanceId), nil
}
