package mailroom

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/stratus-ops/stratus/telemetry"
)

const unzipBinary = "/usr/bin/unzip"

// ProcessDmarc ingests every attachment not yet recorded in
// dmarc_records. Reports arrive as plain XML, gzip or zip; zip archives
// are unpacked with the system unzip binary.
func (m *Mailroom) ProcessDmarc(ctx context.Context) error {
	processed, err := m.store.ListDmarcSourceKeys(ctx)
	if err != nil {
		return fmt.Errorf("list processed keys: %w", err)
	}

	keys, err := m.objects.ListKeys(ctx, m.bucket, attachmentPrefix)
	if err != nil {
		return fmt.Errorf("list attachment keys: %w", err)
	}

	for _, key := range keys {
		if _, ok := processed[key]; ok {
			continue
		}

		data, err := m.objects.GetObject(ctx, m.bucket, key)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", key, err)
		}

		reports, err := extractReports(data)
		if err != nil {
			return fmt.Errorf("extract %s: %w", key, err)
		}

		var inserted int
		for _, report := range reports {
			records, err := ParseAggregateReport(report, key)
			if err != nil {
				return fmt.Errorf("parse report in %s: %w", key, err)
			}
			if err := m.store.InsertDmarcRecords(ctx, records); err != nil {
				return fmt.Errorf("insert rows for %s: %w", key, err)
			}
			inserted += len(records)
		}
		telemetry.Count(ctx, telemetry.DmarcRowsInserted, int64(inserted))
		m.logger.Info().Str("key", key).Int("rows", inserted).Msg("dmarc report ingested")
	}
	return nil
}

// extractReports turns one attachment blob into zero or more XML buffers
// depending on its sniffed media type. Unrecognised types are skipped.
func extractReports(data []byte) ([][]byte, error) {
	kind := mimetype.Detect(data)
	switch {
	case kind.Is("text/xml"):
		return [][]byte{data}, nil
	case kind.Is("application/gzip"):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		buf, err := io.ReadAll(gz)
		if err != nil {
			return nil, fmt.Errorf("decompress gzip: %w", err)
		}
		return [][]byte{buf}, nil
	case kind.Is("application/zip"):
		return extractZip(data)
	default:
		return nil, nil
	}
}

func extractZip(data []byte) ([][]byte, error) {
	if _, err := os.Stat(unzipBinary); err != nil {
		return nil, fmt.Errorf("unzip binary unavailable: %w", err)
	}

	archive, err := os.CreateTemp("", "dmarc-*.zip")
	if err != nil {
		return nil, fmt.Errorf("temp archive: %w", err)
	}
	defer os.Remove(archive.Name())
	if _, err := archive.Write(data); err != nil {
		archive.Close()
		return nil, fmt.Errorf("write archive: %w", err)
	}
	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	dir, err := os.MkdirTemp("", "dmarc-extract-")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cmd := exec.Command(unzipBinary, "-o", archive.Name(), "-d", dir)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("unzip: %w: %s", err, output)
	}

	var reports [][]byte
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		buf, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		reports = append(reports, buf)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read extracted files: %w", err)
	}
	return reports, nil
}
