package services

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/paperscraper/internal/models"
	"github.com/mholt/archives"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// InventoryItem describes one downloaded file for a dry run.
type InventoryItem struct {
	Variant string
	Kind    models.Kind
	Path    string
	Bytes   int64
	// Pages is set for PDFs, Entries for ZIP archives.
	Pages   int
	Entries int
	Err     error
}

// Inspector reports what was downloaded without publishing anything.
type Inspector struct {
	logger *slog.Logger
}

func NewInspector(logger *slog.Logger) *Inspector {
	return &Inspector{logger: logger}
}

// Inspect opens every artifact. Unreadable files are reported on their item, not returned.
func (i *Inspector) Inspect(ctx context.Context, artifacts []models.LocalArtifact) []InventoryItem {
	items := make([]InventoryItem, 0, len(artifacts))
	for _, a := range artifacts {
		item := InventoryItem{Variant: a.Variant, Kind: a.Kind, Path: a.Path}
		logCtx := i.logger.With("variant", a.Variant, "kind", a.Kind, "path", a.Path)

		info, err := os.Stat(a.Path)
		if err != nil {
			item.Err = err
			logCtx.Warn("Artifact missing.", "error", err)
			items = append(items, item)
			continue
		}
		item.Bytes = info.Size()

		switch strings.ToLower(filepath.Ext(a.Path)) {
		case ".pdf":
			item.Pages, item.Err = api.PageCountFile(a.Path)
		case ".zip":
			item.Entries, item.Err = countEntries(ctx, a.Path)
		}
		if item.Err != nil {
			logCtx.Warn("Artifact could not be inspected.", "bytes", item.Bytes, "error", item.Err)
		} else {
			logCtx.Info("Artifact inspected.", "bytes", item.Bytes, "pages", item.Pages, "entries", item.Entries)
		}
		items = append(items, item)
	}
	return items
}

func countEntries(ctx context.Context, path string) (int, error) {
	fsys, err := archives.FileSystem(ctx, path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	n := 0
	err = fs.WalkDir(fsys, ".", func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read archive: %w", err)
	}
	return n, nil
}
