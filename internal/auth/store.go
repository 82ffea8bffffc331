// Package auth loads, refreshes and persists the OAuth2 credential used to publish to Drive.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// ErrNoCredential is returned by a CredentialStore that has nothing saved yet.
var ErrNoCredential = errors.New("no stored credential")

// CredentialStore persists a single OAuth2 token.
type CredentialStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
}

// FileStore keeps the token as JSON at Path.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the token file. A missing file yields ErrNoCredential.
func (s *FileStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file %s: %w", s.Path, err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file %s: %w", s.Path, err)
	}
	return tok, nil
}

// Save writes the token with owner-only permissions.
func (s *FileStore) Save(tok *oauth2.Token) error {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create token dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file %s: %w", s.Path, err)
	}
	return nil
}

// MemoryStore is an in-process CredentialStore.
type MemoryStore struct {
	mu    sync.Mutex
	tok   *oauth2.Token
	Saves int
}

// NewMemoryStore returns a store pre-loaded with tok, which may be nil.
func NewMemoryStore(tok *oauth2.Token) *MemoryStore {
	return &MemoryStore{tok: tok}
}

func (s *MemoryStore) Load() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok == nil {
		return nil, ErrNoCredential
	}
	cp := *s.tok
	return &cp, nil
}

func (s *MemoryStore) Save(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	s.tok = &cp
	s.Saves++
	return nil
}
