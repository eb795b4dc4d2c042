// Package catalog is the relational persistence layer: instance-type
// taxonomy, pricing observations, authorized operators, the inbound-mail
// index and parsed DMARC reports.
package catalog

import "time"

// Price kinds stored in instance_pricing.
const (
	PriceOnDemand = "ondemand"
	PriceReserved = "reserved"
	PriceSpot     = "spot"
)

// Instance generations stored in instance_list.
const (
	GenerationHVM = "hvm"
	GenerationPV  = "pv"
)

// InstanceFamily is one row of instance_family, keyed by FamilyName.
type InstanceFamily struct {
	FamilyName string
	FamilyType string
	DataURL    string
	UseForSpot bool
}

// InstanceType is one row of instance_list, keyed by InstanceType.
type InstanceType struct {
	InstanceType string
	FamilyName   string
	NCPU         int
	MemoryGiB    float64
	Generation   string
}

// PriceObservation is one row of instance_pricing; at most one row exists
// per (InstanceType, PriceType).
type PriceObservation struct {
	ID           int64
	InstanceType string
	Price        float64
	PriceType    string
	Timestamp    time.Time
}

// AuthorizedUser is an operator allowed to use the console. Deletion is
// soft: DeletedAt is set, the row stays.
type AuthorizedUser struct {
	Email      string
	TelegramID *int64
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// InboundEmail is the parsed index entry of one stored message.
type InboundEmail struct {
	ID       int64
	S3Bucket string
	S3Key    string
	From     string
	To       string
	Subject  string
	Date     time.Time
	TextBody string
	HTMLBody string
	RawBody  []byte
}

// EmailKey is the (row id, object key) pair used during reconciliation.
type EmailKey struct {
	ID  int64
	Key string
}

// DmarcRecord is one authentication result row from an aggregate report.
// SourceKey is the object key the report came from; it doubles as the
// idempotence token.
type DmarcRecord struct {
	ID               int64
	SourceKey        string
	OrgName          string
	Email            string
	ReportID         string
	RangeBegin       int64
	RangeEnd         int64
	PolicyDomain     string
	SourceIP         string
	Count            int
	AuthResultType   string // dkim or spf
	AuthResultDomain string
	AuthResultResult string
	CreatedAt        time.Time
}
