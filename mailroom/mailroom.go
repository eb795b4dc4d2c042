// Package mailroom keeps the inbound_email table in step with the mail
// bucket and extracts attachments and DMARC aggregate reports.
package mailroom

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jhillyerd/enmime/v2"

	"github.com/stratus-ops/stratus/catalog"
	"github.com/stratus-ops/stratus/telemetry"
)

const (
	emailPrefix      = "inbound-email/"
	attachmentPrefix = "attachments/"
)

// ObjectStore is the slice of the cloud adapter the mailroom needs.
type ObjectStore interface {
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutFile(ctx context.Context, bucket, key, path string) error
}

// Mailroom reconciles stored emails against the bucket and pushes
// attachments back under attachments/.
type Mailroom struct {
	store   catalog.MailStore
	objects ObjectStore
	bucket  string
	logger  *telemetry.Logger
	now     func() time.Time
}

func New(store catalog.MailStore, objects ObjectStore, bucket string) *Mailroom {
	return &Mailroom{
		store:   store,
		objects: objects,
		bucket:  bucket,
		logger:  telemetry.NewLogger("mailroom"),
		now:     time.Now,
	}
}

// SyncDB runs both passes: key reconciliation with parse-and-insert,
// then attachment extraction for every email on record. Both passes are
// idempotent, so a crashed run is repaired by the next one.
func (m *Mailroom) SyncDB(ctx context.Context) error {
	known, err := m.store.ListInboundEmailKeys(ctx)
	if err != nil {
		return fmt.Errorf("list email keys: %w", err)
	}

	remote, err := m.objects.ListKeys(ctx, m.bucket, emailPrefix)
	if err != nil {
		return fmt.Errorf("list bucket keys: %w", err)
	}
	remoteSet := make(map[string]struct{}, len(remote))
	for _, key := range remote {
		remoteSet[key] = struct{}{}
	}

	knownSet := make(map[string]struct{}, len(known))
	for _, ek := range known {
		knownSet[ek.Key] = struct{}{}
		if _, ok := remoteSet[ek.Key]; !ok {
			if err := m.store.DeleteInboundEmail(ctx, ek.ID); err != nil {
				return fmt.Errorf("delete vanished email %d: %w", ek.ID, err)
			}
			telemetry.Count(ctx, telemetry.MailSyncDeletes, 1)
			m.logger.Info().Str("key", ek.Key).Msg("email removed from bucket, row deleted")
		}
	}

	for _, key := range remote {
		if _, ok := knownSet[key]; ok {
			continue
		}
		raw, err := m.objects.GetObject(ctx, m.bucket, key)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", key, err)
		}
		email, err := m.parseEmail(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		email.S3Bucket = m.bucket
		email.S3Key = key
		if _, err := m.store.InsertInboundEmail(ctx, *email); err != nil {
			return fmt.Errorf("insert %s: %w", key, err)
		}
		telemetry.Count(ctx, telemetry.MailSyncEmails, 1)
		m.logger.Info().Str("key", key).Str("from", email.From).Msg("email indexed")
	}

	emails, err := m.store.ListInboundEmails(ctx)
	if err != nil {
		return fmt.Errorf("list emails: %w", err)
	}
	for _, email := range emails {
		if err := m.extractAttachments(ctx, email); err != nil {
			return fmt.Errorf("attachments for %s: %w", email.S3Key, err)
		}
	}
	return nil
}

// parseEmail maps a raw RFC822 message onto a catalog row. From, To and
// Subject are mandatory; a missing or out-of-range Date falls back to now.
func (m *Mailroom) parseEmail(raw []byte) (*catalog.InboundEmail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read envelope: %w", err)
	}

	from := env.GetHeader("From")
	to := env.GetHeader("To")
	subject := env.GetHeader("Subject")
	if from == "" || to == "" {
		return nil, fmt.Errorf("missing From or To header")
	}
	if subject == "" {
		return nil, fmt.Errorf("missing Subject header")
	}

	date := m.now()
	if parsed, err := mail.ParseDate(env.GetHeader("Date")); err == nil && parsed.Year() >= 1970 {
		date = parsed
	}

	var texts, htmls []string
	if env.Root != nil {
		for _, p := range env.Root.DepthMatchAll(func(p *enmime.Part) bool {
			return p.ContentType == "text/plain" && p.Disposition != "attachment"
		}) {
			texts = append(texts, string(p.Content))
		}
		for _, p := range env.Root.DepthMatchAll(func(p *enmime.Part) bool {
			return p.ContentType == "text/html" && p.Disposition != "attachment"
		}) {
			htmls = append(htmls, string(p.Content))
		}
	}

	return &catalog.InboundEmail{
		From:     from,
		To:       to,
		Subject:  subject,
		Date:     date,
		TextBody: strings.Join(texts, "\n"),
		HTMLBody: strings.Join(htmls, "\r\n"),
		RawBody:  raw,
	}, nil
}

// extractAttachments uploads every named attachment of one email that is
// not already present under attachments/.
func (m *Mailroom) extractAttachments(ctx context.Context, email catalog.InboundEmail) error {
	existing, err := m.objects.ListKeys(ctx, m.bucket, attachmentPrefix)
	if err != nil {
		return fmt.Errorf("list attachment keys: %w", err)
	}
	present := make(map[string]struct{}, len(existing))
	for _, key := range existing {
		present[key] = struct{}{}
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(email.RawBody))
	if err != nil {
		return fmt.Errorf("reparse email: %w", err)
	}

	parts := append([]*enmime.Part{}, env.Attachments...)
	parts = append(parts, env.Inlines...)
	parts = append(parts, env.OtherParts...)
	for _, p := range parts {
		if p.FileName == "" {
			continue
		}
		key := attachmentPrefix + path.Base(p.FileName)
		if _, ok := present[key]; ok {
			continue
		}

		tmp, err := os.CreateTemp("", "attachment-*")
		if err != nil {
			return fmt.Errorf("temp file: %w", err)
		}
		_, writeErr := tmp.Write(p.Content)
		if closeErr := tmp.Close(); writeErr == nil {
			writeErr = closeErr
		}
		if writeErr != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("write attachment %s: %w", p.FileName, writeErr)
		}

		err = m.objects.PutFile(ctx, m.bucket, key, tmp.Name())
		os.Remove(tmp.Name())
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		present[key] = struct{}{}
		m.logger.Info().Str("key", key).Int64("email_id", email.ID).Msg("attachment uploaded")
	}
	return nil
}
