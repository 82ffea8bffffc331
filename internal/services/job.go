package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Lllllllleong/paperscraper/internal/config"
	"github.com/Lllllllleong/paperscraper/internal/models"
)

// SourcePlan is one archive site to harvest, with its candidate listing URLs.
type SourcePlan struct {
	Name        string
	Harvester   *Harvester
	ListingURLs []string
}

// ConnectFunc opens the remote store. It is only called once files are on disk.
type ConnectFunc func(ctx context.Context) (RemoteStore, error)

// Job runs one (subject, session) scrape from listing to manifest.
type Job struct {
	Sources     []SourcePlan
	Downloader  *Downloader
	Inspector   *Inspector
	Connect     ConnectFunc
	Publisher   PublisherConfig
	Builder     ManifestBuilder
	Sinks       []ManifestSink
	DownloadDir string
	ParentID    string
	DryRun      bool
	// ManifestName returns the manifest file name for the source that produced the papers.
	ManifestName func(source string) string
	Logger       *slog.Logger
}

// RunResult summarises a finished run.
type RunResult struct {
	Source    string
	Group     models.PaperGroup
	Downloads DownloadSummary
	Inventory []InventoryItem
	Links     models.UploadedLinks
	Records   []models.ManifestRecord
}

// NewJob wires a job from configuration. connect and sinks may be nil for a dry run.
func NewJob(cfg *config.Config, connect ConnectFunc, sinks []ManifestSink, logger *slog.Logger) (*Job, error) {
	fetcher := NewFetcher(FetcherConfig{
		Timeout:            cfg.HTTP.Timeout,
		InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
		UserAgents:         cfg.HTTP.UserAgents,
	}, logger)
	first := Delay(cfg.HTTP.FirstDelay)
	retry := Delay(cfg.HTTP.RetryDelay)

	var plans []SourcePlan
	for _, name := range []string{cfg.Source, cfg.FallbackSource} {
		if name == "" {
			continue
		}
		src, ok := cfg.Sources[name]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		classifier, err := NewClassifier(src.Rules)
		if err != nil {
			return nil, fmt.Errorf("failed to configure source %s: %w", name, err)
		}
		harvester := NewHarvester(Source{
			Name:          name,
			BaseURL:       src.BaseURL,
			BasePath:      src.BasePath,
			ViewerMarkers: src.ViewerMarkers,
			UnwrapMarker:  src.UnwrapMarker,
			Classifier:    classifier,
		}, fetcher, NewRetrier(cfg.HTTP.ListingAttempts, first, retry, logger), logger)
		plans = append(plans, SourcePlan{Name: name, Harvester: harvester, ListingURLs: cfg.ListingURLs(name)})
	}

	sessionFolder := ""
	if cfg.Drive.SessionFolder {
		sessionFolder = cfg.Session
	}

	return &Job{
		Sources: plans,
		Downloader: NewDownloader(DownloaderConfig{
			FolderPrefix: cfg.Drive.FolderPrefix,
			Pause:        Delay(cfg.HTTP.DownloadPause),
		}, fetcher, NewRetrier(cfg.HTTP.DownloadAttempts, first, retry, logger), logger),
		Inspector: NewInspector(logger),
		Connect:   connect,
		Publisher: PublisherConfig{
			FolderPrefix:  cfg.Drive.FolderPrefix,
			SessionFolder: sessionFolder,
			ReuseFolders:  cfg.Drive.ReuseFolders,
			Concurrency:   cfg.Drive.PublishConcurrency,
		},
		Builder:      ManifestBuilder{Session: cfg.Session, SizeHint: cfg.Output.SizeHint},
		Sinks:        sinks,
		DownloadDir:  cfg.DownloadDir,
		ParentID:     cfg.DriveParentFolderID,
		DryRun:       cfg.DryRun,
		ManifestName: cfg.OutputPath,
		Logger:       logger,
	}, nil
}

// Run executes the job. The download directory is removed before Run returns,
// whatever the outcome.
func (j *Job) Run(ctx context.Context) (*RunResult, error) {
	defer func() {
		if err := os.RemoveAll(j.DownloadDir); err != nil {
			j.Logger.Error("Failed to remove download directory.", "path", j.DownloadDir, "error", err)
		}
	}()

	result := &RunResult{}
	source, group, err := j.harvest(ctx)
	if err != nil {
		return result, err
	}
	result.Source, result.Group = source, group

	if err := os.MkdirAll(j.DownloadDir, 0o755); err != nil {
		return result, fmt.Errorf("failed to create download directory: %w", err)
	}
	j.Logger.Info("Downloading papers.", "source", source, "variants", group.Variants(), "files", group.Count())
	result.Downloads, err = j.Downloader.Download(ctx, group, j.DownloadDir)
	if err != nil {
		return result, fmt.Errorf("failed to download papers: %w", err)
	}
	j.Logger.Info("Downloads finished.", "downloaded", len(result.Downloads.Artifacts), "failed", result.Downloads.Failed)

	if j.DryRun {
		result.Inventory = j.Inspector.Inspect(ctx, result.Downloads.Artifacts)
		j.Logger.Info("Dry run complete; nothing was published.")
		return result, nil
	}

	if j.Connect == nil {
		return result, errors.New("no remote store configured")
	}
	store, err := j.Connect(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to connect to remote store: %w", err)
	}

	publisher := NewPublisher(j.Publisher, store, j.Logger)
	result.Links, err = publisher.Publish(ctx, group, j.DownloadDir, j.ParentID)
	if err != nil {
		return result, fmt.Errorf("failed to publish papers: %w", err)
	}

	result.Records = j.Builder.Build(group, result.Links)
	if err := j.writeManifest(ctx, j.ManifestName(source), result.Records); err != nil {
		return result, err
	}
	return result, nil
}

// harvest tries each source in order and returns the first non-empty group.
func (j *Job) harvest(ctx context.Context) (string, models.PaperGroup, error) {
	for i, plan := range j.Sources {
		if i > 0 {
			j.Logger.Warn("Primary source yielded nothing, trying fallback.", "source", plan.Name)
		}
		group, err := plan.Harvester.HarvestFirst(ctx, plan.ListingURLs)
		if err != nil {
			return "", nil, fmt.Errorf("failed to harvest %s: %w", plan.Name, err)
		}
		if len(group) > 0 {
			return plan.Name, group, nil
		}
	}
	return "", nil, ErrNoPapers
}

func (j *Job) writeManifest(ctx context.Context, name string, records []models.ManifestRecord) error {
	var errs []error
	for _, sink := range j.Sinks {
		if err := sink.WriteManifest(ctx, name, records); err != nil {
			j.Logger.Error("Failed to write manifest.", "sink", sink.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s sink: %w", sink.Name(), err))
			continue
		}
		j.Logger.Info("Manifest written.", "sink", sink.Name(), "name", name, "records", len(records))
	}
	return errors.Join(errs...)
}
