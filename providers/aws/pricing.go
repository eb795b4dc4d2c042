package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"
)

// GetProducts returns the raw JSON price-list blobs for one EC2 instance
// type in US East (N. Virginia), following next-token pagination
// exhaustively. Parsing is the pricing scraper's job.
func (a *Adapter) GetProducts(ctx context.Context, instanceType string) ([]string, error) {
	filters := []pricingtypes.Filter{
		pricingFilter("operatingSystem", "Linux"),
		pricingFilter("instanceType", instanceType),
		pricingFilter("location", "US East (N. Virginia)"),
		pricingFilter("offeringClass", "standard"),
		pricingFilter("locationType", "AWS Region"),
	}

	var blobs []string
	var nextToken *string

	for {
		output, err := a.pricingClient.GetProducts(ctx, &pricing.GetProductsInput{
			ServiceCode: awssdk.String("AmazonEC2"),
			Filters:     filters,
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("get products for %s: %w", instanceType, err)
		}

		blobs = append(blobs, output.PriceList...)

		if output.NextToken == nil || awssdk.ToString(output.NextToken) == "" {
			break
		}
		nextToken = output.NextToken
	}

	return blobs, nil
}

// ListPricingServices returns the service codes known to the pricing API.
func (a *Adapter) ListPricingServices(ctx context.Context) ([]string, error) {
	var codes []string
	var nextToken *string

	for {
		output, err := a.pricingClient.DescribeServices(ctx, &pricing.DescribeServicesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe pricing services: %w", err)
		}
		for _, svc := range output.Services {
			if svc.ServiceCode != nil {
				codes = append(codes, awssdk.ToString(svc.ServiceCode))
			}
		}
		if output.NextToken == nil || awssdk.ToString(output.NextToken) == "" {
			break
		}
		nextToken = output.NextToken
	}

	return codes, nil
}

// ListAttributeValues returns the values of one pricing attribute for
// AmazonEC2, e.g. every known instanceType.
func (a *Adapter) ListAttributeValues(ctx context.Context, attribute string) ([]string, error) {
	var values []string
	var nextToken *string

	for {
		output, err := a.pricingClient.GetAttributeValues(ctx, &pricing.GetAttributeValuesInput{
			ServiceCode:   awssdk.String("AmazonEC2"),
			AttributeName: awssdk.String(attribute),
			NextToken:     nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("get attribute values for %s: %w", attribute, err)
		}
		for _, v := range output.AttributeValues {
			if v.Value != nil {
				values = append(values, awssdk.ToString(v.Value))
			}
		}
		if output.NextToken == nil || awssdk.ToString(output.NextToken) == "" {
			break
		}
		nextToken = output.NextToken
	}

	return values, nil
}

func pricingFilter(field, value string) pricingtypes.Filter {
	return pricingtypes.Filter{
		Type:  pricingtypes.FilterTypeTermMatch,
		Field: awssdk.String(field),
		Value: awssdk.String(value),
	}
}
