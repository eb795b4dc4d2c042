package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/stratus-ops/stratus/types"
)

// ListDNSRecords returns all A records across the account's hosted zones.
// Non-A records are not retained.
func (a *Adapter) ListDNSRecords(ctx context.Context) ([]types.DNSRecord, error) {
	zones, err := a.route53Client.ListHostedZones(ctx, &route53.ListHostedZonesInput{})
	if err != nil {
		return nil, fmt.Errorf("list hosted zones: %w", err)
	}

	var records []types.DNSRecord
	for _, zone := range zones.HostedZones {
		if zone.Id == nil {
			continue
		}
		zoneRecords, err := a.listZoneARecords(ctx, awssdk.ToString(zone.Id))
		if err != nil {
			return nil, err
		}
		records = append(records, zoneRecords...)
	}
	return records, nil
}

func (a *Adapter) listZoneARecords(ctx context.Context, zoneID string) ([]types.DNSRecord, error) {
	output, err := a.route53Client.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId: awssdk.String(zoneID),
	})
	if err != nil {
		return nil, fmt.Errorf("list record sets for zone %s: %w", zoneID, err)
	}

	var records []types.DNSRecord
	for _, set := range output.ResourceRecordSets {
		if set.Type != r53types.RRTypeA || set.Name == nil {
			continue
		}
		for _, rr := range set.ResourceRecords {
			if rr.Value == nil {
				continue
			}
			records = append(records, types.DNSRecord{
				ZoneID: zoneID,
				Name:   awssdk.ToString(set.Name),
				IP:     awssdk.ToString(rr.Value),
			})
		}
	}
	return records, nil
}

// UpsertARecord issues a single UPSERT change batch replacing the value
// of an A record, with a human-readable comment.
func (a *Adapter) UpsertARecord(ctx context.Context, zoneID, name, ip, comment string) error {
	_, err := a.route53Client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: awssdk.String(zoneID),
		ChangeBatch: &r53types.ChangeBatch{
			Comment: awssdk.String(comment),
			Changes: []r53types.Change{{
				Action: r53types.ChangeActionUpsert,
				ResourceRecordSet: &r53types.ResourceRecordSet{
					Name:            awssdk.String(name),
					Type:            r53types.RRTypeA,
					TTL:             awssdk.Int64(300),
					ResourceRecords: []r53types.ResourceRecord{{Value: awssdk.String(ip)}},
				},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("change record sets for zone %s: %w", zoneID, err)
	}
	return nil
}
