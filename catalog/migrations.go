package catalog

import (
	"context"
	"fmt"
)

// migrations run in order at startup; each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS instance_family (
		family_name TEXT PRIMARY KEY,
		family_type TEXT NOT NULL,
		data_url TEXT,
		use_for_spot BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS instance_list (
		instance_type TEXT PRIMARY KEY,
		family_name TEXT NOT NULL REFERENCES instance_family (family_name),
		n_cpu INTEGER NOT NULL,
		memory_gib DOUBLE PRECISION NOT NULL,
		generation TEXT NOT NULL CHECK (generation IN ('hvm', 'pv'))
	)`,
	`CREATE TABLE IF NOT EXISTS instance_pricing (
		id BIGSERIAL PRIMARY KEY,
		instance_type TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		price_type TEXT NOT NULL CHECK (price_type IN ('ondemand', 'reserved', 'spot')),
		price_timestamp TIMESTAMPTZ NOT NULL,
		UNIQUE (instance_type, price_type)
	)`,
	`CREATE TABLE IF NOT EXISTS authorized_users (
		email TEXT PRIMARY KEY,
		telegram_id BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS inbound_email (
		id BIGSERIAL PRIMARY KEY,
		s3_bucket TEXT NOT NULL,
		s3_key TEXT NOT NULL,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		subject TEXT NOT NULL,
		date TIMESTAMPTZ NOT NULL,
		text_body TEXT NOT NULL DEFAULT '',
		html_body TEXT NOT NULL DEFAULT '',
		raw_body BYTEA NOT NULL,
		UNIQUE (s3_bucket, s3_key)
	)`,
	`CREATE TABLE IF NOT EXISTS dmarc_records (
		id BIGSERIAL PRIMARY KEY,
		s3_key TEXT,
		org_name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		report_id TEXT NOT NULL,
		range_begin BIGINT NOT NULL,
		range_end BIGINT NOT NULL,
		policy_domain TEXT NOT NULL DEFAULT '',
		source_ip TEXT NOT NULL,
		count INTEGER NOT NULL,
		auth_result_type TEXT NOT NULL CHECK (auth_result_type IN ('dkim', 'spf')),
		auth_result_domain TEXT NOT NULL DEFAULT '',
		auth_result_result TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS dmarc_records_s3_key_idx ON dmarc_records (s3_key)`,
}

// Migrate applies the schema. Safe to run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}
