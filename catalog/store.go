package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the pgx-backed implementation of the catalog interfaces.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pool to the configured DSN and applies migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// UpsertFamily inserts or updates one instance_family row in place.
func (s *Store) UpsertFamily(ctx context.Context, family InstanceFamily) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO instance_family (family_name, family_type, data_url, use_for_spot)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (family_name) DO UPDATE SET
			family_type = EXCLUDED.family_type,
			data_url = COALESCE(EXCLUDED.data_url, instance_family.data_url)`,
		family.FamilyName, family.FamilyType, family.DataURL, family.UseForSpot)
	if err != nil {
		return fmt.Errorf("upsert family %s: %w", family.FamilyName, err)
	}
	return nil
}

// UpsertInstanceType inserts or updates one instance_list row in place.
func (s *Store) UpsertInstanceType(ctx context.Context, it InstanceType) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO instance_list (instance_type, family_name, n_cpu, memory_gib, generation)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instance_type) DO UPDATE SET
			family_name = EXCLUDED.family_name,
			n_cpu = EXCLUDED.n_cpu,
			memory_gib = EXCLUDED.memory_gib,
			generation = EXCLUDED.generation`,
		it.InstanceType, it.FamilyName, it.NCPU, it.MemoryGiB, it.Generation)
	if err != nil {
		return fmt.Errorf("upsert instance type %s: %w", it.InstanceType, err)
	}
	return nil
}

// ListFamilies streams all instance_family rows.
func (s *Store) ListFamilies(ctx context.Context) ([]InstanceFamily, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT family_name, family_type, COALESCE(data_url, ''), use_for_spot
		FROM instance_family ORDER BY family_name`)
	if err != nil {
		return nil, fmt.Errorf("query families: %w", err)
	}
	defer rows.Close()

	var families []InstanceFamily
	for rows.Next() {
		var f InstanceFamily
		if err := rows.Scan(&f.FamilyName, &f.FamilyType, &f.DataURL, &f.UseForSpot); err != nil {
			return nil, fmt.Errorf("scan family: %w", err)
		}
		families = append(families, f)
	}
	return families, rows.Err()
}

// ListInstanceTypes streams all instance_list rows.
func (s *Store) ListInstanceTypes(ctx context.Context) ([]InstanceType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT instance_type, family_name, n_cpu, memory_gib, generation
		FROM instance_list ORDER BY instance_type`)
	if err != nil {
		return nil, fmt.Errorf("query instance types: %w", err)
	}
	defer rows.Close()

	var instanceTypes []InstanceType
	for rows.Next() {
		var it InstanceType
		if err := rows.Scan(&it.InstanceType, &it.FamilyName, &it.NCPU, &it.MemoryGiB, &it.Generation); err != nil {
			return nil, fmt.Errorf("scan instance type: %w", err)
		}
		instanceTypes = append(instanceTypes, it)
	}
	return instanceTypes, rows.Err()
}

// UpsertPrice writes one price observation, keeping the newest timestamp
// when a row already exists for (instance_type, price_type).
func (s *Store) UpsertPrice(ctx context.Context, instanceType, priceType string, price float64, ts time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO instance_pricing (instance_type, price, price_type, price_timestamp)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instance_type, price_type) DO UPDATE SET
			price = EXCLUDED.price,
			price_timestamp = EXCLUDED.price_timestamp
		WHERE instance_pricing.price_timestamp <= EXCLUDED.price_timestamp`,
		instanceType, price, priceType, ts)
	if err != nil {
		return fmt.Errorf("upsert price %s/%s: %w", instanceType, priceType, err)
	}
	return nil
}

// ListPrices streams all pricing rows.
func (s *Store) ListPrices(ctx context.Context) ([]PriceObservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, instance_type, price, price_type, price_timestamp
		FROM instance_pricing ORDER BY instance_type, price_type`)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var prices []PriceObservation
	for rows.Next() {
		var p PriceObservation
		if err := rows.Scan(&p.ID, &p.InstanceType, &p.Price, &p.PriceType, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// UpsertAuthorizedUser adds an operator, reviving a soft-deleted row.
func (s *Store) UpsertAuthorizedUser(ctx context.Context, email string, telegramID *int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO authorized_users (email, telegram_id)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET
			telegram_id = EXCLUDED.telegram_id,
			deleted_at = NULL`,
		email, telegramID)
	if err != nil {
		return fmt.Errorf("upsert authorized user %s: %w", email, err)
	}
	return nil
}

// SoftDeleteAuthorizedUser marks an operator as removed without losing
// the row.
func (s *Store) SoftDeleteAuthorizedUser(ctx context.Context, email string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE authorized_users SET deleted_at = NOW() WHERE email = $1 AND deleted_at IS NULL`,
		email)
	if err != nil {
		return fmt.Errorf("soft delete authorized user %s: %w", email, err)
	}
	return nil
}

// ListAuthorizedUsers returns active operators only.
func (s *Store) ListAuthorizedUsers(ctx context.Context) ([]AuthorizedUser, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT email, telegram_id, created_at, deleted_at
		FROM authorized_users WHERE deleted_at IS NULL ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("query authorized users: %w", err)
	}
	defer rows.Close()

	var users []AuthorizedUser
	for rows.Next() {
		var u AuthorizedUser
		if err := rows.Scan(&u.Email, &u.TelegramID, &u.CreatedAt, &u.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan authorized user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListInboundEmailKeys returns the (id, s3_key) pairs currently indexed.
func (s *Store) ListInboundEmailKeys(ctx context.Context) ([]EmailKey, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, s3_key FROM inbound_email ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query inbound email keys: %w", err)
	}
	defer rows.Close()

	var keys []EmailKey
	for rows.Next() {
		var k EmailKey
		if err := rows.Scan(&k.ID, &k.Key); err != nil {
			return nil, fmt.Errorf("scan email key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// InsertInboundEmail indexes one parsed message and returns the row id.
func (s *Store) InsertInboundEmail(ctx context.Context, email InboundEmail) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO inbound_email
			(s3_bucket, s3_key, from_address, to_address, subject, date, text_body, html_body, raw_body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		email.S3Bucket, email.S3Key, email.From, email.To, email.Subject,
		email.Date, email.TextBody, email.HTMLBody, email.RawBody).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert inbound email %s: %w", email.S3Key, err)
	}
	return id, nil
}

// DeleteInboundEmail removes a row whose object key vanished.
func (s *Store) DeleteInboundEmail(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM inbound_email WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete inbound email %d: %w", id, err)
	}
	return nil
}

// GetInboundEmail fetches one indexed message, nil when absent.
func (s *Store) GetInboundEmail(ctx context.Context, id int64) (*InboundEmail, error) {
	var e InboundEmail
	err := s.pool.QueryRow(ctx, `
		SELECT id, s3_bucket, s3_key, from_address, to_address, subject, date, text_body, html_body, raw_body
		FROM inbound_email WHERE id = $1`, id).
		Scan(&e.ID, &e.S3Bucket, &e.S3Key, &e.From, &e.To, &e.Subject, &e.Date, &e.TextBody, &e.HTMLBody, &e.RawBody)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get inbound email %d: %w", id, err)
	}
	return &e, nil
}

// ListInboundEmails streams every indexed message.
func (s *Store) ListInboundEmails(ctx context.Context) ([]InboundEmail, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, s3_bucket, s3_key, from_address, to_address, subject, date, text_body, html_body, raw_body
		FROM inbound_email ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("query inbound emails: %w", err)
	}
	defer rows.Close()

	var emails []InboundEmail
	for rows.Next() {
		var e InboundEmail
		if err := rows.Scan(&e.ID, &e.S3Bucket, &e.S3Key, &e.From, &e.To, &e.Subject, &e.Date, &e.TextBody, &e.HTMLBody, &e.RawBody); err != nil {
			return nil, fmt.Errorf("scan inbound email: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

// ListDmarcSourceKeys returns the distinct set of already-processed
// report keys.
func (s *Store) ListDmarcSourceKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT s3_key FROM dmarc_records WHERE s3_key IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query dmarc source keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan dmarc source key: %w", err)
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

// InsertDmarcRecords writes the rows of one parsed report in a single
// transaction so a report is never half-ingested.
func (s *Store) InsertDmarcRecords(ctx context.Context, records []DmarcRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin dmarc insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range records {
		_, err := tx.Exec(ctx, `
			INSERT INTO dmarc_records
				(s3_key, org_name, email, report_id, range_begin, range_end,
				 policy_domain, source_ip, count,
				 auth_result_type, auth_result_domain, auth_result_result)
			VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			r.SourceKey, r.OrgName, r.Email, r.ReportID, r.RangeBegin, r.RangeEnd,
			r.PolicyDomain, r.SourceIP, r.Count,
			r.AuthResultType, r.AuthResultDomain, r.AuthResultResult)
		if err != nil {
			return fmt.Errorf("insert dmarc row for %s: %w", r.ReportID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dmarc insert: %w", err)
	}
	return nil
}
