package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

// ReportArchive stores raw SP-API report documents in a GCS bucket so a parse can be replayed.
type ReportArchive struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
	prefix string
}

// NewReportArchive returns nil, nil when REPORT_ARCHIVE_BUCKET is unset.
// STORAGE_EMULATOR_HOST switches to an unauthenticated emulator client.
func NewReportArchive(ctx context.Context, log *logger.Logger) (*ReportArchive, error) {
	bucket := strings.TrimSpace(os.Getenv("REPORT_ARCHIVE_BUCKET"))
	if bucket == "" {
		return nil, nil
	}
	var opts []option.ClientOption
	if emu := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")); emu != "" {
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	prefix := strings.Trim(strings.TrimSpace(os.Getenv("REPORT_ARCHIVE_PREFIX")), "/")
	if prefix == "" {
		prefix = "sp-api-reports"
	}
	a := &ReportArchive{
		log:    log.With("service", "ReportArchive"),
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
	a.log.Info("Report archive initialized", "bucket", bucket, "prefix", prefix)
	return a, nil
}

// ObjectKey is <prefix>/<reportType>/<yyyy>/<mm>/<reportID>.<ext>.
func (a *ReportArchive) ObjectKey(reportType, reportID, ext string, at time.Time) string {
	at = at.UTC()
	name := reportID
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}
	return path.Join(a.prefix, strings.ToLower(reportType), at.Format("2006"), at.Format("01"), name)
}

func (a *ReportArchive) Archive(ctx context.Context, key, contentType string, data []byte) error {
	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("archive %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	a.log.Debug("Archived report document", "key", key, "bytes", len(data))
	return nil
}

func (a *ReportArchive) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}
