package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/paperscraper/internal/models"
)

// ManifestSink is a destination for the finished manifest.
type ManifestSink interface {
	Name() string
	WriteManifest(ctx context.Context, name string, records []models.ManifestRecord) error
}

// FileSink writes the manifest to a local JSON file, replacing any previous one.
type FileSink struct {
	Dir string
}

func (s FileSink) Name() string { return "file" }

func (s FileSink) WriteManifest(_ context.Context, name string, records []models.ManifestRecord) error {
	data, err := models.MarshalManifest(records)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := filepath.Join(s.Dir, name)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create manifest folder: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}
