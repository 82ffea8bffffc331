package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/paperscraper/internal/models"
	"golang.org/x/sync/errgroup"
)

// RemoteStore is the file host papers are published to.
type RemoteStore interface {
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	FindFolder(ctx context.Context, name, parentID string) (string, bool, error)
	UploadFile(ctx context.Context, localPath, parentID, mimeType string) (string, error)
	ShareFile(ctx context.Context, fileID string) error
}

// PublisherConfig shapes the remote folder tree.
type PublisherConfig struct {
	FolderPrefix string
	// SessionFolder, when set, is created under the parent and holds every variant folder.
	SessionFolder string
	ReuseFolders  bool
	Concurrency   int
}

// Publisher uploads a local paper tree and collects public links.
type Publisher struct {
	config PublisherConfig
	store  RemoteStore
	logger *slog.Logger
}

func NewPublisher(config PublisherConfig, store RemoteStore, logger *slog.Logger) *Publisher {
	if config.FolderPrefix == "" {
		config.FolderPrefix = "Paper"
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &Publisher{config: config, store: store, logger: logger}
}

// MimeTypeFor infers an upload MIME type from a file extension.
func MimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// PublicURL is the shareable viewer link of a Drive file.
func PublicURL(fileID string) string {
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view?usp=sharing", fileID)
}

type variantResult struct {
	variant string
	links   map[models.Kind]string
}

// Publish uploads every variant of group that has a local folder under localRoot.
// Per-file failures leave an empty link and are logged; only a failed session folder
// or a cancelled context is returned as an error.
func (p *Publisher) Publish(ctx context.Context, group models.PaperGroup, localRoot, parentID string) (models.UploadedLinks, error) {
	if p.config.SessionFolder != "" {
		id, err := p.folder(ctx, p.config.SessionFolder, parentID)
		if err != nil {
			return nil, &UploadError{Op: "create session folder", Path: p.config.SessionFolder, Err: err}
		}
		p.logger.Info("Using session folder.", "folderName", p.config.SessionFolder, "folderId", id)
		parentID = id
	}

	var variants []string
	for _, v := range group.Variants() {
		if info, err := os.Stat(filepath.Join(localRoot, p.config.FolderPrefix+v)); err == nil && info.IsDir() {
			variants = append(variants, v)
		}
	}

	results := make([]variantResult, len(variants))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.config.Concurrency)
	for i, v := range variants {
		eg.Go(func() error {
			results[i] = variantResult{variant: v, links: p.publishVariant(gctx, v, localRoot, parentID)}
			return gctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	links := make(models.UploadedLinks, len(results))
	for _, r := range results {
		links[r.variant] = r.links
	}
	return links, nil
}

func (p *Publisher) publishVariant(ctx context.Context, variant, localRoot, parentID string) map[models.Kind]string {
	folderName := p.config.FolderPrefix + variant
	logCtx := p.logger.With("variant", variant, "folderName", folderName)
	links := map[models.Kind]string{
		models.KindQuestionPaper: "",
		models.KindMarkScheme:    "",
		models.KindSupplementary: "",
	}

	folderID, err := p.folder(ctx, folderName, parentID)
	if err != nil {
		logCtx.Error("Failed to create variant folder.", "error", &UploadError{Op: "create folder", Path: folderName, Err: err})
		return links
	}
	logCtx = logCtx.With("folderId", folderID)

	for _, kind := range models.Kinds {
		path, ok := localFile(filepath.Join(localRoot, folderName), kind, variant)
		if !ok {
			continue
		}
		url, err := p.publishFile(ctx, path, folderID)
		if err != nil {
			logCtx.Error("Failed to publish file.", "kind", kind, "error", err)
			continue
		}
		links[kind] = url
		logCtx.Info("Published file.", "kind", kind, "url", url)
	}
	return links
}

func (p *Publisher) publishFile(ctx context.Context, path, folderID string) (string, error) {
	fileID, err := p.store.UploadFile(ctx, path, folderID, MimeTypeFor(path))
	if err != nil {
		return "", &UploadError{Op: "upload", Path: path, Err: err}
	}
	if err := p.store.ShareFile(ctx, fileID); err != nil {
		return "", &UploadError{Op: "share", Path: path, Err: err}
	}
	return PublicURL(fileID), nil
}

// folder returns the id of a folder named name under parentID, creating it unless
// reuse is enabled and one already exists.
func (p *Publisher) folder(ctx context.Context, name, parentID string) (string, error) {
	if p.config.ReuseFolders {
		id, found, err := p.store.FindFolder(ctx, name, parentID)
		if err != nil {
			return "", err
		}
		if found {
			return id, nil
		}
	}
	return p.store.CreateFolder(ctx, name, parentID)
}

// localFile finds the downloaded file of kind in dir. Supplementary files may be ZIP or PDF.
func localFile(dir string, kind models.Kind, variant string) (string, bool) {
	exts := []string{"pdf"}
	if kind == models.KindSupplementary {
		exts = []string{"zip", "pdf"}
	}
	for _, ext := range exts {
		path := filepath.Join(dir, string(kind)+variant+"."+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}
