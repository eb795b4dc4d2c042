package mailroom

import (
	"encoding/xml"
	"fmt"

	"github.com/stratus-ops/stratus/catalog"
)

type aggregateReport struct {
	ReportMetadata struct {
		OrgName   string `xml:"org_name"`
		Email     string `xml:"email"`
		ReportID  string `xml:"report_id"`
		DateRange struct {
			Begin int64 `xml:"begin"`
			End   int64 `xml:"end"`
		} `xml:"date_range"`
	} `xml:"report_metadata"`
	PolicyPublished struct {
		Domain string `xml:"domain"`
	} `xml:"policy_published"`
	Records []struct {
		Row struct {
			SourceIP string `xml:"source_ip"`
			Count    int    `xml:"count"`
		} `xml:"row"`
		AuthResults struct {
			DKIM []authResult `xml:"dkim"`
			SPF  []authResult `xml:"spf"`
		} `xml:"auth_results"`
	} `xml:"record"`
}

type authResult struct {
	Domain string `xml:"domain"`
	Result string `xml:"result"`
}

// ParseAggregateReport flattens one DMARC aggregate report into catalog
// rows: one row per dkim or spf child of each record's auth_results,
// each inheriting the report metadata.
func ParseAggregateReport(data []byte, sourceKey string) ([]catalog.DmarcRecord, error) {
	var report aggregateReport
	if err := xml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal aggregate report: %w", err)
	}

	template := catalog.DmarcRecord{
		SourceKey:    sourceKey,
		OrgName:      report.ReportMetadata.OrgName,
		Email:        report.ReportMetadata.Email,
		ReportID:     report.ReportMetadata.ReportID,
		RangeBegin:   report.ReportMetadata.DateRange.Begin,
		RangeEnd:     report.ReportMetadata.DateRange.End,
		PolicyDomain: report.PolicyPublished.Domain,
	}

	var records []catalog.DmarcRecord
	emit := func(rec catalog.DmarcRecord, kind string, results []authResult) {
		for _, r := range results {
			rec.AuthResultType = kind
			rec.AuthResultDomain = r.Domain
			rec.AuthResultResult = r.Result
			records = append(records, rec)
		}
	}
	for _, node := range report.Records {
		rec := template
		rec.SourceIP = node.Row.SourceIP
		rec.Count = node.Row.Count
		emit(rec, "dkim", node.AuthResults.DKIM)
		emit(rec, "spf", node.AuthResults.SPF)
	}
	return records, nil
}
