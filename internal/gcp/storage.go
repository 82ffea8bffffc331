package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/paperscraper/internal/models"
)

// GCSManifestWriter mirrors the manifest file into a bucket.
type GCSManifestWriter struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSManifestWriter creates a storage client for bucket. Objects are written under prefix.
func NewGCSManifestWriter(ctx context.Context, bucket, prefix string) (*GCSManifestWriter, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket must be provided to create a manifest writer")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return &GCSManifestWriter{client: client, bucket: bucket, prefix: prefix}, nil
}

// Name implements services.ManifestSink.
func (w *GCSManifestWriter) Name() string { return "gcs" }

// WriteManifest uploads the rendered manifest as <prefix>/<name>, replacing the previous generation.
func (w *GCSManifestWriter) WriteManifest(ctx context.Context, name string, records []models.ManifestRecord) error {
	content, err := models.MarshalManifest(records)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	objectName := path.Join(w.prefix, name)
	logCtx := slog.With("gcsBucket", w.bucket, "gcsObject", objectName)

	writer := w.client.Bucket(w.bucket).Object(objectName).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		logCtx.Error("Failed to copy manifest to GCS", "error", err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		if StatusCode(err) == 403 {
			return fmt.Errorf("no write access to gs://%s/%s: %w", w.bucket, objectName, err)
		}
		logCtx.Error("Failed to close GCS writer", "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	logCtx.Info("Manifest mirrored to GCS.", "records", len(records))
	return nil
}

// Close releases the storage client.
func (w *GCSManifestWriter) Close() error {
	return w.client.Close()
}
