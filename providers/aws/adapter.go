// Package aws is the normalising façade over the provider SDK. Each
// listing paginates when the provider indicates truncation, drops records
// missing required fields, and returns the typed model from
// stratus/types. Transport failures are surfaced unchanged; callers wrap
// with the retry driver when they want one.
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Adapter holds the per-service clients plus the tenant scoping knobs.
type Adapter struct {
	ec2Client     EC2API
	ecrClient     ECRAPI
	iamClient     IAMAPI
	route53Client Route53API
	s3Client      S3API
	pricingClient PricingAPI
	stsClient     STSAPI

	region string
	// ownerID scopes AMI and snapshot listings; empty disables them.
	ownerID string
}

// Config holds adapter construction parameters.
type Config struct {
	Region  string
	OwnerID string
}

// New constructs an adapter from the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Adapter{
		ec2Client:     ec2.NewFromConfig(awsCfg),
		ecrClient:     ecr.NewFromConfig(awsCfg),
		iamClient:     iam.NewFromConfig(awsCfg),
		route53Client: route53.NewFromConfig(awsCfg),
		s3Client:      s3.NewFromConfig(awsCfg),
		pricingClient: pricing.NewFromConfig(awsCfg),
		stsClient:     sts.NewFromConfig(awsCfg),
		region:        cfg.Region,
		ownerID:       cfg.OwnerID,
	}, nil
}

// NewWithClients wires explicit clients; used by tests.
func NewWithClients(ec2c EC2API, ecrc ECRAPI, iamc IAMAPI, r53 Route53API, s3c S3API, pr PricingAPI, stsc STSAPI, region, ownerID string) *Adapter {
	return &Adapter{
		ec2Client:     ec2c,
		ecrClient:     ecrc,
		iamClient:     iamc,
		route53Client: r53,
		s3Client:      s3c,
		pricingClient: pr,
		stsClient:     stsc,
		region:        region,
		ownerID:       ownerID,
	}
}

// Region returns the configured region.
func (a *Adapter) Region() string {
	return a.region
}

// CallerIdentity returns the account id and ARN of the active credentials.
func (a *Adapter) CallerIdentity(ctx context.Context) (account, arn string, err error) {
	out, err := a.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", "", fmt.Errorf("get caller identity: %w", err)
	}
	return awssdk.ToString(out.Account), awssdk.ToString(out.Arn), nil
}
