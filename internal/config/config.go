// Package config holds the runtime configuration of a scrape run. Values come from an
// optional YAML file, then the environment (a .env file is loaded first when present),
// then CLI flags, and are validated once before the run starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Lllllllleong/paperscraper/internal/gcp"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full configuration of one (subject, session) run.
type Config struct {
	// Subject is the archive path of the subject, e.g. "IGCSE/Computer-Science-0478/2024-May-June".
	Subject string `yaml:"subject"`
	// Session is the display label used in manifest names and ids, e.g. "June 2024".
	Session string `yaml:"session"`

	Source         string `yaml:"source"`
	FallbackSource string `yaml:"fallback_source"`

	DriveParentFolderID string `yaml:"drive_parent_folder_id"`
	DownloadDir         string `yaml:"download_dir"`
	DryRun              bool   `yaml:"dry_run"`

	Drive   DriveConfig             `yaml:"drive"`
	Output  OutputConfig            `yaml:"output"`
	HTTP    HTTPConfig              `yaml:"http"`
	OAuth   OAuthConfig             `yaml:"oauth"`
	Log     LogConfig               `yaml:"log"`
	Sources map[string]SourceConfig `yaml:"sources"`
}

// DriveConfig shapes the remote folder tree.
type DriveConfig struct {
	FolderPrefix       string        `yaml:"folder_prefix"`
	SessionFolder      bool          `yaml:"session_folder"`
	ReuseFolders       bool          `yaml:"reuse_folders"`
	PublishConcurrency int           `yaml:"publish_concurrency"`
	Timeout            time.Duration `yaml:"timeout"`
}

// OutputConfig controls where the manifest goes.
type OutputConfig struct {
	File                string `yaml:"file"`
	SuffixSource        bool   `yaml:"suffix_source"`
	SizeHint            string `yaml:"size_hint"`
	Bucket              string `yaml:"bucket"`
	BucketPrefix        string `yaml:"bucket_prefix"`
	FirestoreProject    string `yaml:"firestore_project"`
	FirestoreCollection string `yaml:"firestore_collection"`
}

// Range is a closed interval a jittered delay is drawn from.
type Range struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// HTTPConfig tunes scraping traffic.
type HTTPConfig struct {
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	UserAgents         []string      `yaml:"user_agents"`
	ListingAttempts    int           `yaml:"listing_attempts"`
	DownloadAttempts   int           `yaml:"download_attempts"`
	FirstDelay         Range         `yaml:"first_delay"`
	RetryDelay         Range         `yaml:"retry_delay"`
	DownloadPause      Range         `yaml:"download_pause"`
}

// OAuthConfig identifies the Drive OAuth client and where its token lives.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	TokenFile    string `yaml:"token_file"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SourceConfig describes one archive site. Listing URLs may contain {subject}.
type SourceConfig struct {
	BaseURL       string   `yaml:"base_url"`
	BasePath      string   `yaml:"base_path"`
	Subject       string   `yaml:"subject"`
	ListingURLs   []string `yaml:"listing_urls"`
	ViewerMarkers []string `yaml:"viewer_markers"`
	UnwrapMarker  string   `yaml:"unwrap_marker"`
	Rules         string   `yaml:"rules"`
}

// Default returns a Config with every optional field filled in.
func Default() *Config {
	return &Config{
		Source:      "pastpapers",
		DownloadDir: "downloads",
		Drive: DriveConfig{
			FolderPrefix:       "Paper",
			PublishConcurrency: 1,
			Timeout:            300 * time.Second,
		},
		Output: OutputConfig{
			File:                "metadata.json",
			SizeHint:            "3",
			BucketPrefix:        "manifests",
			FirestoreCollection: "papers",
		},
		HTTP: HTTPConfig{
			Timeout:          30 * time.Second,
			UserAgents:       append([]string(nil), DefaultUserAgents...),
			ListingAttempts:  3,
			DownloadAttempts: 2,
			FirstDelay:       Range{Min: time.Second, Max: 3 * time.Second},
			RetryDelay:       Range{Min: 2 * time.Second, Max: 5 * time.Second},
			DownloadPause:    Range{Min: time.Second, Max: 3 * time.Second},
		},
		OAuth: OAuthConfig{TokenFile: "token.json"},
		Log:   LogConfig{Level: "info", Format: "json"},
		Sources: map[string]SourceConfig{
			"pastpapers":    PastPapers(),
			"papacambridge": PapaCambridge(),
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (if path is non-empty),
// the .env file at envFile (if it exists) and the process environment.
// Validate is left to the caller so that CLI flags can be applied first.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		var raw struct {
			Sources map[string]yaml.Node `yaml:"sources"`
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		sources, err := mergeSources(Default().Sources, raw.Sources)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.Sources = sources
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// mergeSources decodes each YAML source entry on top of the built-in source of the same
// name. Fields the entry leaves out keep their built-in values, and its listing URLs are
// appended to the built-in ones.
func mergeSources(builtin map[string]SourceConfig, entries map[string]yaml.Node) (map[string]SourceConfig, error) {
	out := make(map[string]SourceConfig, len(builtin)+len(entries))
	for name, src := range builtin {
		out[name] = src
	}
	for name, node := range entries {
		base, ok := builtin[name]
		src := base
		src.ListingURLs = nil
		if err := node.Decode(&src); err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}
		if ok {
			src.ListingURLs = appendUnique(append([]string(nil), base.ListingURLs...), src.ListingURLs...)
		}
		out[name] = src
	}
	return out, nil
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if !slices.Contains(list, item) {
			list = append(list, item)
		}
	}
	return list
}

func (c *Config) applyEnv() {
	c.OAuth.ClientID = gcp.GetEnv("GOOGLE_CLIENT_ID", c.OAuth.ClientID)
	c.OAuth.ClientSecret = gcp.GetEnv("GOOGLE_CLIENT_SECRET", c.OAuth.ClientSecret)
	c.OAuth.RedirectURL = gcp.GetEnv("GOOGLE_REDIRECT_URI", c.OAuth.RedirectURL)
	c.OAuth.TokenFile = gcp.GetEnv("PAPERSCRAPER_TOKEN_FILE", c.OAuth.TokenFile)

	c.Subject = gcp.GetEnv("PAPERSCRAPER_SUBJECT", c.Subject)
	c.Session = gcp.GetEnv("PAPERSCRAPER_SESSION", c.Session)
	c.Source = gcp.GetEnv("PAPERSCRAPER_SOURCE", c.Source)
	c.FallbackSource = gcp.GetEnv("PAPERSCRAPER_FALLBACK_SOURCE", c.FallbackSource)
	c.DriveParentFolderID = gcp.GetEnv("PAPERSCRAPER_DRIVE_FOLDER_ID", c.DriveParentFolderID)
	c.DownloadDir = gcp.GetEnv("PAPERSCRAPER_DOWNLOAD_DIR", c.DownloadDir)

	c.Output.Bucket = gcp.GetEnv("MANIFEST_BUCKET", c.Output.Bucket)
	c.Output.FirestoreProject = gcp.GetEnv("FIRESTORE_PROJECT", c.Output.FirestoreProject)
	c.Output.FirestoreCollection = gcp.GetEnv("FIRESTORE_COLLECTION", c.Output.FirestoreCollection)

	c.Log.Level = gcp.GetEnv("PAPERSCRAPER_LOG_LEVEL", c.Log.Level)
	c.Log.Format = gcp.GetEnv("PAPERSCRAPER_LOG_FORMAT", c.Log.Format)

	if v, err := strconv.ParseBool(gcp.GetEnv("PAPERSCRAPER_INSECURE", "")); err == nil {
		c.HTTP.InsecureSkipVerify = v
	}
}

// Validate checks everything a run needs. Drive and OAuth settings are only required
// when the run will publish.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Session) == "" {
		return fmt.Errorf("%w: session must be set", ErrInvalidConfig)
	}
	if c.DownloadDir == "" || filepath.Clean(c.DownloadDir) == "." || filepath.Clean(c.DownloadDir) == "/" {
		return fmt.Errorf("%w: download_dir must name a dedicated directory", ErrInvalidConfig)
	}
	if c.Output.File == "" {
		return fmt.Errorf("%w: output.file must be set", ErrInvalidConfig)
	}

	if err := c.validateSource(c.Source); err != nil {
		return err
	}
	if c.FallbackSource != "" {
		if c.FallbackSource == c.Source {
			return fmt.Errorf("%w: fallback_source must differ from source", ErrInvalidConfig)
		}
		if err := c.validateSource(c.FallbackSource); err != nil {
			return err
		}
	}

	h := c.HTTP
	if h.Timeout <= 0 {
		return fmt.Errorf("%w: http.timeout must be positive", ErrInvalidConfig)
	}
	if h.ListingAttempts < 1 || h.DownloadAttempts < 1 {
		return fmt.Errorf("%w: http attempts must be at least 1", ErrInvalidConfig)
	}
	if len(h.UserAgents) == 0 {
		return fmt.Errorf("%w: http.user_agents must not be empty", ErrInvalidConfig)
	}
	for name, r := range map[string]Range{"first_delay": h.FirstDelay, "retry_delay": h.RetryDelay, "download_pause": h.DownloadPause} {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("%w: http.%s must satisfy 0 <= min <= max", ErrInvalidConfig, name)
		}
	}

	if c.DryRun {
		return nil
	}
	if c.DriveParentFolderID == "" {
		return fmt.Errorf("%w: drive_parent_folder_id must be set", ErrInvalidConfig)
	}
	if c.Drive.PublishConcurrency < 1 {
		return fmt.Errorf("%w: drive.publish_concurrency must be at least 1", ErrInvalidConfig)
	}
	if c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "" {
		return fmt.Errorf("%w: GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set", ErrInvalidConfig)
	}
	if c.OAuth.TokenFile == "" {
		return fmt.Errorf("%w: oauth.token_file must be set", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) validateSource(name string) error {
	src, ok := c.Sources[name]
	if !ok {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, name)
	}
	if src.BaseURL == "" {
		return fmt.Errorf("%w: source %q has no base_url", ErrInvalidConfig, name)
	}
	if len(src.ListingURLs) == 0 {
		return fmt.Errorf("%w: source %q has no listing_urls", ErrInvalidConfig, name)
	}
	if src.Subject == "" && c.Subject == "" {
		for _, u := range src.ListingURLs {
			if strings.Contains(u, "{subject}") {
				return fmt.Errorf("%w: subject must be set for source %q", ErrInvalidConfig, name)
			}
		}
	}
	return nil
}

// ListingURLs expands the listing URL templates of the named source.
func (c *Config) ListingURLs(name string) []string {
	src := c.Sources[name]
	subject := src.Subject
	if subject == "" {
		subject = c.Subject
	}
	urls := make([]string, 0, len(src.ListingURLs))
	for _, tmpl := range src.ListingURLs {
		urls = append(urls, strings.ReplaceAll(tmpl, "{subject}", subject))
	}
	return urls
}

// OutputPath returns the manifest filename for a run whose papers came from source.
func (c *Config) OutputPath(source string) string {
	if !c.Output.SuffixSource || source == "" {
		return c.Output.File
	}
	ext := filepath.Ext(c.Output.File)
	return strings.TrimSuffix(c.Output.File, ext) + "_" + source + ext
}
