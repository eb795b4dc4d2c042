package catalog

import (
	"context"
	"time"
)

// TypeStore is the taxonomy surface used by the scraper and the price
// queries.
type TypeStore interface {
	UpsertFamily(ctx context.Context, family InstanceFamily) error
	UpsertInstanceType(ctx context.Context, it InstanceType) error
	ListFamilies(ctx context.Context) ([]InstanceFamily, error)
	ListInstanceTypes(ctx context.Context) ([]InstanceType, error)
}

// PriceStore is the pricing surface used by the pricing scraper and the
// price queries.
type PriceStore interface {
	UpsertPrice(ctx context.Context, instanceType, priceType string, price float64, ts time.Time) error
	ListPrices(ctx context.Context) ([]PriceObservation, error)
}

// MailStore is the surface used by the inbound-email pipeline.
type MailStore interface {
	ListInboundEmailKeys(ctx context.Context) ([]EmailKey, error)
	InsertInboundEmail(ctx context.Context, email InboundEmail) (int64, error)
	DeleteInboundEmail(ctx context.Context, id int64) error
	GetInboundEmail(ctx context.Context, id int64) (*InboundEmail, error)
	ListInboundEmails(ctx context.Context) ([]InboundEmail, error)
	ListDmarcSourceKeys(ctx context.Context) (map[string]struct{}, error)
	InsertDmarcRecords(ctx context.Context, records []DmarcRecord) error
}

// UserStore manages authorized operators.
type UserStore interface {
	UpsertAuthorizedUser(ctx context.Context, email string, telegramID *int64) error
	SoftDeleteAuthorizedUser(ctx context.Context, email string) error
	ListAuthorizedUsers(ctx context.Context) ([]AuthorizedUser, error)
}
