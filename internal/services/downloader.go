package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lllllllleong/paperscraper/internal/models"
)

// DownloaderConfig controls where files land and how downloads are paced.
type DownloaderConfig struct {
	FolderPrefix string
	Pause        Delay
}

// DownloadSummary reports what a download pass produced.
type DownloadSummary struct {
	Artifacts []models.LocalArtifact
	Failed    int
}

// Downloader copies every file of a PaperGroup into a local tree, one at a time.
type Downloader struct {
	config  DownloaderConfig
	fetcher *Fetcher
	retrier *Retrier
	logger  *slog.Logger
	// sleep and rand pace successive downloads. Tests replace them.
	sleep func(context.Context, time.Duration) error
	rand  func() float64
}

func NewDownloader(config DownloaderConfig, fetcher *Fetcher, retrier *Retrier, logger *slog.Logger) *Downloader {
	if config.FolderPrefix == "" {
		config.FolderPrefix = "Paper"
	}
	return &Downloader{
		config:  config,
		fetcher: fetcher,
		retrier: retrier,
		logger:  logger,
		sleep:   SleepContext,
		rand:    rand.Float64,
	}
}

// FolderName is the local and remote folder name of a variant.
func (d *Downloader) FolderName(variant string) string {
	return d.config.FolderPrefix + variant
}

// ArtifactPath returns <root>/<prefix><variant>/<kind><variant>.<ext>.
func (d *Downloader) ArtifactPath(root, variant string, kind models.Kind, sourceURL string) string {
	return filepath.Join(root, d.FolderName(variant), string(kind)+variant+"."+artifactExt(kind, sourceURL))
}

// artifactExt is pdf, except for supplementary files whose source URL ends in .zip.
func artifactExt(kind models.Kind, sourceURL string) string {
	if kind == models.KindSupplementary && strings.HasSuffix(strings.ToLower(fileName(sourceURL)), ".zip") {
		return "zip"
	}
	return "pdf"
}

// Download fetches every (variant, kind) of group into root. A failed file is logged
// and counted; it never stops the pass. Only context cancellation ends it early.
func (d *Downloader) Download(ctx context.Context, group models.PaperGroup, root string) (DownloadSummary, error) {
	var summary DownloadSummary

	for _, variant := range group.Variants() {
		files := group[variant]
		for _, kind := range models.Kinds {
			sourceURL, ok := files[kind]
			if !ok {
				continue
			}
			logCtx := d.logger.With("variant", variant, "kind", kind, "url", sourceURL)
			dest := d.ArtifactPath(root, variant, kind, sourceURL)

			if err := d.downloadOne(ctx, sourceURL, dest); err != nil {
				if ctx.Err() != nil {
					return summary, ctx.Err()
				}
				summary.Failed++
				logCtx.Error("Failed to download file.", "error", err)
				continue
			}
			summary.Artifacts = append(summary.Artifacts, models.LocalArtifact{Variant: variant, Kind: kind, Path: dest})
			logCtx.Info("Downloaded file.", "path", dest)

			if err := d.sleep(ctx, d.config.Pause.Jitter(d.rand)); err != nil {
				return summary, err
			}
		}
	}
	return summary, nil
}

func (d *Downloader) downloadOne(ctx context.Context, sourceURL, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create folder for %s: %w", dest, err)
	}

	var body []byte
	err := d.retrier.Do(ctx, func(ctx context.Context) error {
		b, err := d.fetcher.Get(ctx, sourceURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}
