package aws

import (
	"context"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEC2Client struct {
	EC2API
	DescribeInstancesFunc         func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeReservedInstancesFunc func(ctx context.Context, params *ec2.DescribeReservedInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeReservedInstancesOutput, error)
	DescribeSpotFunc              func(ctx context.Context, params *ec2.DescribeSpotInstanceRequestsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSpotInstanceRequestsOutput, error)
	DescribeImagesFunc            func(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	DescribeSnapshotsFunc         func(ctx context.Context, params *ec2.DescribeSnapshotsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error)
	TerminateInstancesFunc        func(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

func (m *mockEC2Client) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return m.DescribeInstancesFunc(ctx, params, optFns...)
}

func (m *mockEC2Client) DescribeReservedInstances(ctx context.Context, params *ec2.DescribeReservedInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeReservedInstancesOutput, error) {
	return m.DescribeReservedInstancesFunc(ctx, params, optFns...)
}

func (m *mockEC2Client) DescribeSpotInstanceRequests(ctx context.Context, params *ec2.DescribeSpotInstanceRequestsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSpotInstanceRequestsOutput, error) {
	return m.DescribeSpotFunc(ctx, params, optFns...)
}

func (m *mockEC2Client) DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	return m.DescribeImagesFunc(ctx, params, optFns...)
}

func (m *mockEC2Client) DescribeSnapshots(ctx context.Context, params *ec2.DescribeSnapshotsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	return m.DescribeSnapshotsFunc(ctx, params, optFns...)
}

func (m *mockEC2Client) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	return m.TerminateInstancesFunc(ctx, params, optFns...)
}

func adapterWithEC2(ec2c EC2API, ownerID string) *Adapter {
	return NewWithClients(ec2c, nil, nil, nil, nil, nil, nil, "us-east-1", ownerID)
}

func goodInstance(id string) ec2types.Instance {
	launch := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	return ec2types.Instance{
		InstanceId:    awssdk.String(id),
		PublicDnsName: awssdk.String(id + ".example.com"),
		State:         &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		InstanceType:  ec2types.InstanceTypeT3Micro,
		LaunchTime:    awssdk.Time(launch),
		Placement:     &ec2types.Placement{AvailabilityZone: awssdk.String("us-east-1a")},
		Tags: []ec2types.Tag{
			{Key: awssdk.String("Name"), Value: awssdk.String("web")},
		},
	}
}

func TestListInstancesDropsIncompleteRecords(t *testing.T) {
	broken := goodInstance("i-broken")
	broken.Placement = nil

	mock := &mockEC2Client{
		DescribeInstancesFunc: func(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			return &ec2.DescribeInstancesOutput{
				Reservations: []ec2types.Reservation{
					{Instances: []ec2types.Instance{goodInstance("i-1"), broken}},
				},
			}, nil
		},
	}

	instances, err := adapterWithEC2(mock, "").ListInstances(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "i-1", instances[0].ID)
	assert.Equal(t, "web", instances[0].Name())
	assert.Equal(t, "us-east-1a", instances[0].AZ)
}

func TestListInstancesFollowsPagination(t *testing.T) {
	calls := 0
	mock := &mockEC2Client{
		DescribeInstancesFunc: func(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			calls++
			if params.NextToken == nil {
				return &ec2.DescribeInstancesOutput{
					Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{goodInstance("i-1")}}},
					NextToken:    awssdk.String("page2"),
				}, nil
			}
			return &ec2.DescribeInstancesOutput{
				Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{goodInstance("i-2")}}},
			}, nil
		},
	}

	instances, err := adapterWithEC2(mock, "").ListInstances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, instances, 2)
}

func TestListReservedFiltersRetired(t *testing.T) {
	mock := &mockEC2Client{
		DescribeReservedInstancesFunc: func(_ context.Context, _ *ec2.DescribeReservedInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeReservedInstancesOutput, error) {
			return &ec2.DescribeReservedInstancesOutput{
				ReservedInstances: []ec2types.ReservedInstances{
					{
						ReservedInstancesId: awssdk.String("r-active"),
						InstanceType:        ec2types.InstanceTypeM5Large,
						State:               ec2types.ReservedInstanceStateActive,
						FixedPrice:          awssdk.Float32(420.0),
					},
					{
						ReservedInstancesId: awssdk.String("r-retired"),
						InstanceType:        ec2types.InstanceTypeM5Large,
						State:               ec2types.ReservedInstanceStateRetired,
					},
				},
			}, nil
		},
	}

	reserved, err := adapterWithEC2(mock, "").ListReserved(context.Background())
	require.NoError(t, err)
	require.Len(t, reserved, 1)
	assert.Equal(t, "r-active", reserved[0].ID)
}

func TestListSpotRequestsBadPriceBecomesZero(t *testing.T) {
	mock := &mockEC2Client{
		DescribeSpotFunc: func(_ context.Context, _ *ec2.DescribeSpotInstanceRequestsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSpotInstanceRequestsOutput, error) {
			return &ec2.DescribeSpotInstanceRequestsOutput{
				SpotInstanceRequests: []ec2types.SpotInstanceRequest{
					{
						SpotInstanceRequestId: awssdk.String("sir-1"),
						SpotPrice:             awssdk.String("not-a-number"),
					},
					{
						SpotInstanceRequestId: awssdk.String("sir-2"),
						SpotPrice:             awssdk.String("0.042"),
						Status:                &ec2types.SpotInstanceStatus{Code: awssdk.String("fulfilled")},
						InstanceId:            awssdk.String("i-9"),
					},
				},
			}, nil
		},
	}

	requests, err := adapterWithEC2(mock, "").ListSpotRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, 0.0, requests[0].Price)
	assert.Empty(t, requests[0].Status)
	assert.Equal(t, 0.042, requests[1].Price)
	assert.Equal(t, "fulfilled", requests[1].Status)
	assert.Equal(t, "i-9", requests[1].InstanceID)
}

func TestLatestUbuntuImageSortedAscendingByName(t *testing.T) {
	var gotOwners []string
	mock := &mockEC2Client{
		DescribeImagesFunc: func(_ context.Context, params *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
			gotOwners = params.Owners
			return &ec2.DescribeImagesOutput{
				Images: []ec2types.Image{
					{ImageId: awssdk.String("ami-2"), Name: awssdk.String("ubuntu-bionic-20260301")},
					{ImageId: awssdk.String("ami-1"), Name: awssdk.String("ubuntu-bionic-20260101")},
				},
			}, nil
		},
	}

	images, err := adapterWithEC2(mock, "").LatestUbuntuImage(context.Background(), "bionic-18.04")
	require.NoError(t, err)
	assert.Equal(t, []string{"099720109477"}, gotOwners)
	require.Len(t, images, 2)
	assert.Equal(t, "ami-1", images[0].ID)
	assert.Equal(t, "ami-2", images[1].ID)
}

func TestListSnapshotsWithoutOwnerIDIsEmpty(t *testing.T) {
	mock := &mockEC2Client{
		DescribeSnapshotsFunc: func(_ context.Context, _ *ec2.DescribeSnapshotsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
			t.Fatal("must not call the provider without an owner id")
			return nil, nil
		},
	}

	snapshots, err := adapterWithEC2(mock, "").ListSnapshots(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}

type mockS3Client struct {
	S3API
	ListObjectsFunc func(ctx context.Context, params *s3.ListObjectsInput, optFns ...func(*s3.Options)) (*s3.ListObjectsOutput, error)
}

func (m *mockS3Client) ListObjects(ctx context.Context, params *s3.ListObjectsInput, optFns ...func(*s3.Options)) (*s3.ListObjectsOutput, error) {
	return m.ListObjectsFunc(ctx, params, optFns...)
}

func TestListKeysFollowsMarkerPagination(t *testing.T) {
	mock := &mockS3Client{
		ListObjectsFunc: func(_ context.Context, params *s3.ListObjectsInput, _ ...func(*s3.Options)) (*s3.ListObjectsOutput, error) {
			if params.Marker == nil {
				return &s3.ListObjectsOutput{
					Contents: []s3types.Object{
						{Key: awssdk.String("inbound-email/a")},
						{Key: awssdk.String("inbound-email/b")},
					},
					IsTruncated: awssdk.Bool(true),
				}, nil
			}
			assert.Equal(t, "inbound-email/b", awssdk.ToString(params.Marker))
			return &s3.ListObjectsOutput{
				Contents:    []s3types.Object{{Key: awssdk.String("inbound-email/c")}},
				IsTruncated: awssdk.Bool(false),
			}, nil
		},
	}

	adapter := NewWithClients(nil, nil, nil, nil, mock, nil, nil, "us-east-1", "")
	keys, err := adapter.ListKeys(context.Background(), "bucket", "inbound-email/")
	require.NoError(t, err)
	assert.Equal(t, []string{"inbound-email/a", "inbound-email/b", "inbound-email/c"}, keys)
}
