package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Subject = "IGCSE/Computer-Science-0478/2024-May-June"
	cfg.Session = "June 2024"
	cfg.DriveParentFolderID = "root-folder"
	cfg.OAuth.ClientID = "client"
	cfg.OAuth.ClientSecret = "secret"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "pastpapers", cfg.Source)
	assert.Equal(t, "downloads", cfg.DownloadDir)
	assert.Equal(t, "Paper", cfg.Drive.FolderPrefix)
	assert.Equal(t, 1, cfg.Drive.PublishConcurrency)
	assert.Equal(t, 3, cfg.HTTP.ListingAttempts)
	assert.Equal(t, 2, cfg.HTTP.DownloadAttempts)
	assert.Equal(t, "3", cfg.Output.SizeHint)
	assert.Equal(t, "token.json", cfg.OAuth.TokenFile)
	assert.Contains(t, cfg.Sources, "pastpapers")
	assert.Contains(t, cfg.Sources, "papacambridge")
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paperscraper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
subject: IGCSE/Physics-0625/2023-Oct-Nov
session: November 2023
drive:
  session_folder: true
  timeout: 90s
http:
  download_attempts: 4
  retry_delay:
    min: 0s
    max: 1s
sources:
  mirror:
    base_url: https://mirror.example
    listing_urls: ["https://mirror.example/{subject}"]
    rules: simple
`), 0o644))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GOOGLE_CLIENT_ID=from-dotenv\n"), 0o644))

	t.Setenv("PAPERSCRAPER_SESSION", "Nov 2023")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	os.Unsetenv("GOOGLE_CLIENT_ID")

	cfg, err := Load(path, envFile)
	require.NoError(t, err)

	assert.Equal(t, "IGCSE/Physics-0625/2023-Oct-Nov", cfg.Subject)
	assert.Equal(t, "Nov 2023", cfg.Session, "environment overrides the file")
	assert.True(t, cfg.Drive.SessionFolder)
	assert.Equal(t, 90*time.Second, cfg.Drive.Timeout)
	assert.Equal(t, 4, cfg.HTTP.DownloadAttempts)
	assert.Equal(t, 3, cfg.HTTP.ListingAttempts, "unset keys keep their defaults")
	assert.Equal(t, Range{Min: 0, Max: time.Second}, cfg.HTTP.RetryDelay)
	assert.Equal(t, "from-dotenv", cfg.OAuth.ClientID)
	assert.Contains(t, cfg.Sources, "mirror")
	assert.Contains(t, cfg.Sources, "pastpapers", "built-in sources survive a sources block")
}

func TestLoadMissingFiles(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	assert.Error(t, err)

	cfg, err := Load("", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err, "a missing .env file is not an error")
	assert.NotNil(t, cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing session", mutate: func(c *Config) { c.Session = " " }, wantErr: true},
		{name: "unknown source", mutate: func(c *Config) { c.Source = "nope" }, wantErr: true},
		{name: "fallback equals source", mutate: func(c *Config) { c.FallbackSource = c.Source }, wantErr: true},
		{name: "fallback valid", mutate: func(c *Config) { c.FallbackSource = "papacambridge" }},
		{name: "download dir is cwd", mutate: func(c *Config) { c.DownloadDir = "." }, wantErr: true},
		{name: "missing subject", mutate: func(c *Config) { c.Subject = "" }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.HTTP.DownloadAttempts = 0 }, wantErr: true},
		{name: "inverted delay", mutate: func(c *Config) { c.HTTP.RetryDelay = Range{Min: 2 * time.Second, Max: time.Second} }, wantErr: true},
		{name: "no user agents", mutate: func(c *Config) { c.HTTP.UserAgents = nil }, wantErr: true},
		{name: "missing parent folder", mutate: func(c *Config) { c.DriveParentFolderID = "" }, wantErr: true},
		{name: "missing oauth client", mutate: func(c *Config) { c.OAuth.ClientSecret = "" }, wantErr: true},
		{name: "dry run skips drive and oauth", mutate: func(c *Config) {
			c.DryRun = true
			c.DriveParentFolderID = ""
			c.OAuth = OAuthConfig{}
		}},
		{name: "zero publish concurrency", mutate: func(c *Config) { c.Drive.PublishConcurrency = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestListingURLs(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t,
		[]string{"https://pastpapers.co/cie/?dir=IGCSE/Computer-Science-0478/2024-May-June"},
		cfg.ListingURLs("pastpapers"))

	src := cfg.Sources["papacambridge"]
	src.Subject = "cambridge_igcse/computer-science-0478"
	cfg.Sources["papacambridge"] = src
	assert.Equal(t,
		[]string{"https://www.papacambridge.com/cambridge_igcse/computer-science-0478"},
		cfg.ListingURLs("papacambridge"), "a per-source subject wins over the global one")
}

func TestOutputPath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "metadata.json", cfg.OutputPath("pastpapers"))

	cfg.Output.SuffixSource = true
	assert.Equal(t, "metadata_pastpapers.json", cfg.OutputPath("pastpapers"))
	assert.Equal(t, "metadata.json", cfg.OutputPath(""))

	cfg.Output.File = filepath.Join("out", "papers.json")
	assert.Equal(t, filepath.Join("out", "papers_papacambridge.json"), cfg.OutputPath("papacambridge"))
}

func TestLoadMergesBuiltinSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paperscraper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
subject: IGCSE/Computer-Science-0478/2024-May-June
sources:
  pastpapers:
    listing_urls:
      - https://pastpapers.co/cie/igcse/computer-science-0478/2024/may-june/
      - https://pastpapers.co/cambridge-igcse/computer-science-0478/2024-may-june/
  papacambridge:
    subject: cambridge_igcse/computer-science-0478
    rules: caie
`), 0o644))

	cfg, err := Load(path, "")
	require.NoError(t, err)

	pp := cfg.Sources["pastpapers"]
	assert.Equal(t, "https://pastpapers.co", pp.BaseURL)
	assert.Equal(t, "cie", pp.BasePath)
	assert.Equal(t, []string{"view.php"}, pp.ViewerMarkers)
	assert.Equal(t, "simple", pp.Rules)
	assert.Equal(t, []string{
		"https://pastpapers.co/cie/?dir={subject}",
		"https://pastpapers.co/cie/igcse/computer-science-0478/2024/may-june/",
		"https://pastpapers.co/cambridge-igcse/computer-science-0478/2024-may-june/",
	}, pp.ListingURLs, "extra templates are tried after the built-in one")

	pc := cfg.Sources["papacambridge"]
	assert.Equal(t, "download_file.php?files=", pc.UnwrapMarker)
	assert.Equal(t, "cambridge_igcse/computer-science-0478", pc.Subject)
	assert.Equal(t, []string{"https://www.papacambridge.com/{subject}"}, pc.ListingURLs)

	assert.Equal(t, []string{"view.php"}, Default().Sources["pastpapers"].ViewerMarkers, "defaults are not mutated")

	cfg.Session = "June 2024"
	cfg.DryRun = true
	assert.NoError(t, cfg.Validate())
}
