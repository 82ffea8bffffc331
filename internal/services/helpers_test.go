package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lllllllleong/paperscraper/internal/logger"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func testRetrier(attempts int) *Retrier {
	return &Retrier{
		Attempts: attempts,
		Sleep:    noSleep,
		Rand:     func() float64 { return 0 },
		Logger:   logger.Discard(),
	}
}

func testFetcher(srv *httptest.Server) *Fetcher {
	return NewFetcherWithClient(srv.Client(), []string{"test-agent"}, logger.Discard())
}

func testDownloader(srv *httptest.Server) *Downloader {
	d := NewDownloader(DownloaderConfig{FolderPrefix: "Paper"}, testFetcher(srv), testRetrier(2), logger.Discard())
	d.sleep = noSleep
	return d
}

// fakeStore is an in-memory RemoteStore. failUploads names local file basenames whose upload fails.
type fakeStore struct {
	mu          sync.Mutex
	folders     map[string]string // name|parent -> id
	uploads     []string
	shared      []string
	failUploads map[string]bool
	failFolders map[string]bool
	created     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{folders: map[string]string{}, failUploads: map[string]bool{}, failFolders: map[string]bool{}}
}

func (s *fakeStore) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFolders[name] {
		return "", fmt.Errorf("folder %s refused", name)
	}
	s.created++
	id := fmt.Sprintf("folder-%d", s.created)
	s.folders[name+"|"+parentID] = id
	return id, nil
}

func (s *fakeStore) FindFolder(_ context.Context, name, parentID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.folders[name+"|"+parentID]
	return id, ok, nil
}

func (s *fakeStore) UploadFile(_ context.Context, localPath, _ string, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := filepath.Base(localPath)
	if s.failUploads[name] {
		return "", fmt.Errorf("upload of %s rejected", name)
	}
	s.uploads = append(s.uploads, name)
	return "file-" + name, nil
}

func (s *fakeStore) ShareFile(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shared = append(s.shared, fileID)
	return nil
}

func (s *fakeStore) folderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// writeTree creates <root>/<rel> files with placeholder content.
func writeTree(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644))
	}
}

// listingServer serves an HTML page linking hrefs at /list, a page without links at /empty,
// a fixed body for any .pdf or .zip path and 404 for everything else.
func listingServer(t *testing.T, hrefs ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/list":
			fmt.Fprint(w, "<html><body>")
			for _, h := range hrefs {
				fmt.Fprintf(w, `<a href="%s">%s</a>`, h, h)
			}
			fmt.Fprint(w, "</body></html>")
		case r.URL.Path == "/empty":
			fmt.Fprint(w, "<html><body><p>nothing here</p></body></html>")
		case strings.HasSuffix(r.URL.Path, ".pdf"), strings.HasSuffix(r.URL.Path, ".zip"):
			fmt.Fprintf(w, "content of %s", r.URL.Path)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}
