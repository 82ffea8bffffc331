package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/Lllllllleong/paperscraper/internal/auth"
	"github.com/Lllllllleong/paperscraper/internal/config"
	"github.com/Lllllllleong/paperscraper/internal/gcp"
	"github.com/Lllllllleong/paperscraper/internal/logger"
	"github.com/Lllllllleong/paperscraper/internal/services"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type runFlags struct {
	subject        string
	session        string
	source         string
	fallbackSource string
	parentFolder   string
	downloadDir    string
	output         string
	dryRun         bool
	sessionFolder  bool
	reuseFolders   bool
	concurrency    int
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape, download, publish and write the manifest for one session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, flags)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runJob(cmd.Context(), cfg, openSinks)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.subject, "subject", "", "archive path of the subject, e.g. IGCSE/Computer-Science-0478/2024-May-June")
	f.StringVar(&flags.session, "session", "", "session label used in manifest names, e.g. \"June 2024\"")
	f.StringVar(&flags.source, "source", "", "primary source (see the sources command)")
	f.StringVar(&flags.fallbackSource, "fallback-source", "", "source tried when the primary lists nothing")
	f.StringVar(&flags.parentFolder, "parent-folder", "", "Drive folder id the paper folders are created under")
	f.StringVar(&flags.downloadDir, "download-dir", "", "scratch directory, removed when the run ends")
	f.StringVar(&flags.output, "output", "", "manifest file name")
	f.BoolVar(&flags.dryRun, "dry-run", false, "download and inspect only; no Drive access and no manifest")
	f.BoolVar(&flags.sessionFolder, "session-folder", false, "group paper folders under a folder named after the session")
	f.BoolVar(&flags.reuseFolders, "reuse-folders", false, "reuse existing Drive folders with the same name")
	f.IntVar(&flags.concurrency, "publish-concurrency", 0, "number of paper folders published at once")
	return cmd
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags *runFlags) {
	set := cmd.Flags().Changed
	if set("subject") {
		cfg.Subject = flags.subject
	}
	if set("session") {
		cfg.Session = flags.session
	}
	if set("source") {
		cfg.Source = flags.source
	}
	if set("fallback-source") {
		cfg.FallbackSource = flags.fallbackSource
	}
	if set("parent-folder") {
		cfg.DriveParentFolderID = flags.parentFolder
	}
	if set("download-dir") {
		cfg.DownloadDir = flags.downloadDir
	}
	if set("output") {
		cfg.Output.File = flags.output
	}
	if set("dry-run") {
		cfg.DryRun = flags.dryRun
	}
	if set("session-folder") {
		cfg.Drive.SessionFolder = flags.sessionFolder
	}
	if set("reuse-folders") {
		cfg.Drive.ReuseFolders = flags.reuseFolders
	}
	if set("publish-concurrency") {
		cfg.Drive.PublishConcurrency = flags.concurrency
	}
}

// sinkOpener returns the manifest sinks of a run and the functions that close them.
type sinkOpener func(ctx context.Context, cfg *config.Config) ([]services.ManifestSink, []func() error, error)

// runJob owns cfg.DownloadDir for its whole duration, including setup failures before the job starts.
func runJob(ctx context.Context, cfg *config.Config, open sinkOpener) error {
	log := slog.Default().With("runId", uuid.NewString(), "subject", cfg.Subject, "session", cfg.Session)
	log.Info("Starting paper scrape.", "source", cfg.Source, "fallbackSource", cfg.FallbackSource, "dryRun", cfg.DryRun)
	defer func() {
		if err := os.RemoveAll(cfg.DownloadDir); err != nil {
			log.Error("Failed to remove download directory.", "path", cfg.DownloadDir, "error", err)
		}
	}()

	var sinks []services.ManifestSink
	if !cfg.DryRun {
		var closers []func() error
		var err error
		sinks, closers, err = open(ctx, cfg)
		defer func() {
			for _, c := range closers {
				if cerr := c(); cerr != nil {
					log.Warn("Failed to close manifest sink.", "error", cerr)
				}
			}
		}()
		if err != nil {
			return err
		}
	}

	connect := func(ctx context.Context) (services.RemoteStore, error) {
		a, err := newAuthenticator(cfg, log)
		if err != nil {
			return nil, err
		}
		ts, err := a.TokenSource(ctx)
		if err != nil {
			return nil, err
		}
		return gcp.NewDriveStore(ctx, ts, cfg.Drive.Timeout)
	}

	job, err := services.NewJob(cfg, connect, sinks, log)
	if err != nil {
		return err
	}

	result, err := job.Run(ctx)
	if errors.Is(err, services.ErrNoPapers) {
		log.Warn("No papers found; nothing was downloaded and no manifest was written.")
		return nil
	}
	if err != nil {
		log.Error("Run failed.", "error", err)
		return err
	}

	log.Info("Run complete.",
		"source", result.Source,
		"variants", len(result.Group),
		"downloaded", len(result.Downloads.Artifacts),
		"downloadFailures", result.Downloads.Failed,
		"records", len(result.Records),
	)
	return nil
}

// openSinks returns the local file sink plus any configured cloud sinks.
func openSinks(ctx context.Context, cfg *config.Config) ([]services.ManifestSink, []func() error, error) {
	sinks := []services.ManifestSink{services.FileSink{}}
	var closers []func() error

	if cfg.Output.Bucket != "" {
		w, err := gcp.NewGCSManifestWriter(ctx, cfg.Output.Bucket, cfg.Output.BucketPrefix)
		if err != nil {
			return nil, closers, err
		}
		sinks = append(sinks, w)
		closers = append(closers, w.Close)
	}
	if cfg.Output.FirestoreProject != "" {
		w, err := gcp.NewFirestoreManifestWriter(ctx, cfg.Output.FirestoreProject, cfg.Output.FirestoreCollection)
		if err != nil {
			return nil, closers, err
		}
		sinks = append(sinks, w)
		closers = append(closers, w.Close)
	}
	return sinks, closers, nil
}

func newAuthenticator(cfg *config.Config, log *slog.Logger) (*auth.Authenticator, error) {
	return auth.NewAuthenticator(auth.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURL:  cfg.OAuth.RedirectURL,
		Scopes:       []string{gcp.DriveScope},
	}, auth.NewFileStore(cfg.OAuth.TokenFile), auth.LocalServerFlow(os.Stderr), log)
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
