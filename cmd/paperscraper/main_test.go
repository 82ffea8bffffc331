package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lllllllleong/paperscraper/internal/config"
	"github.com/Lllllllleong/paperscraper/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), ".env"), "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	out, err := execute(t, "classify", "--rules", "caie", "0478_w24_qp_22.pdf", "notes.txt")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "variant=05 kind=qp")
	assert.True(t, strings.HasSuffix(lines[1], "-"))
}

func TestClassifyUnknownRules(t *testing.T) {
	_, err := execute(t, "classify", "--rules", "fuzzy", "qp_1.pdf")
	assert.Error(t, err)
}

func TestSourcesCommand(t *testing.T) {
	t.Setenv("PAPERSCRAPER_SUBJECT", "IGCSE/Physics-0625/2023-Oct-Nov")
	t.Setenv("PAPERSCRAPER_SOURCE", "pastpapers")

	out, err := execute(t, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "* pastpapers")
	assert.Contains(t, out, "https://pastpapers.co/cie/?dir=IGCSE/Physics-0625/2023-Oct-Nov")
	assert.Contains(t, out, "papacambridge")
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Setenv("PAPERSCRAPER_SESSION", "")

	_, err := execute(t, "run", "--subject", "IGCSE/x")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunDryRunWithNoPapers(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "paperscraper.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
source: local
sources:
  local:
    base_url: http://127.0.0.1:1
    listing_urls: ["http://127.0.0.1:1/list"]
    rules: simple
http:
  listing_attempts: 1
  first_delay: {min: 0s, max: 0s}
`), 0o644))
	downloads := filepath.Join(dir, "downloads")

	_, err := execute(t, "run", "--config", cfgPath, "--session", "June 2024", "--dry-run", "--download-dir", downloads)
	require.NoError(t, err, "an empty listing is not a failure")
	assert.NoDirExists(t, downloads)
}

func TestRunJobRemovesDownloadDirWhenSinksFail(t *testing.T) {
	cfg := config.Default()
	cfg.Session = "June 2024"
	cfg.DownloadDir = filepath.Join(t.TempDir(), "downloads")
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.DownloadDir, "Paper01"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DownloadDir, "Paper01", "qp01.pdf"), []byte("stale"), 0o644))

	failing := func(context.Context, *config.Config) ([]services.ManifestSink, []func() error, error) {
		return nil, nil, errors.New("could not find default credentials")
	}

	err := runJob(context.Background(), cfg, failing)
	assert.ErrorContains(t, err, "default credentials")
	assert.NoDirExists(t, cfg.DownloadDir)
}
