package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Config identifies the OAuth client. Endpoint defaults to Google's.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint
}

// Authorizer obtains a brand-new token, normally by asking the user.
type Authorizer func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)

// Authenticator hands out a valid token, refreshing or re-authorising as needed, and
// keeps the CredentialStore up to date.
type Authenticator struct {
	oauth     *oauth2.Config
	store     CredentialStore
	authorize Authorizer
	logger    *slog.Logger
}

// NewAuthenticator validates cfg. authorize is used when no refreshable token is stored.
func NewAuthenticator(cfg Config, store CredentialStore, authorize Authorizer, logger *slog.Logger) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, &AuthError{Op: "configure", Err: errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")}
	}
	if store == nil {
		return nil, &AuthError{Op: "configure", Err: errors.New("credential store must be provided")}
	}
	if logger == nil {
		logger = slog.Default()
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		store:     store,
		authorize: authorize,
		logger:    logger,
	}, nil
}

// Token returns a currently valid token.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := a.store.Load()
	switch {
	case errors.Is(err, ErrNoCredential):
		a.logger.Info("No stored credential, starting authorisation flow.")
		return a.authorizeNew(ctx)
	case err != nil:
		a.logger.Warn("Stored credential unreadable, starting authorisation flow.", "error", err)
		return a.authorizeNew(ctx)
	}

	if tok.Valid() {
		return tok, nil
	}
	if tok.RefreshToken != "" {
		return a.Refresh(ctx, tok)
	}
	a.logger.Info("Stored credential expired without a refresh token, starting authorisation flow.")
	return a.authorizeNew(ctx)
}

// Refresh exchanges tok's refresh token for a new access token and persists it.
func (a *Authenticator) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, &AuthError{Op: "refresh", Err: errors.New("no refresh token available")}
	}
	fresh, err := a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		return nil, &AuthError{Op: "refresh", Err: err}
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	if err := a.store.Save(fresh); err != nil {
		return nil, &AuthError{Op: "save", Err: err}
	}
	a.logger.Info("Credential refreshed.", "expiry", fresh.Expiry)
	return fresh, nil
}

// TokenSource returns a source that starts from Token and persists any later refresh.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}
	return &persistingSource{
		base:   oauth2.ReuseTokenSource(tok, a.oauth.TokenSource(ctx, tok)),
		store:  a.store,
		last:   tok.AccessToken,
		logger: a.logger,
	}, nil
}

func (a *Authenticator) authorizeNew(ctx context.Context) (*oauth2.Token, error) {
	if a.authorize == nil {
		return nil, &AuthError{Op: "authorize", Err: errors.New("interactive authorisation is not available")}
	}
	tok, err := a.authorize(ctx, a.oauth)
	if err != nil {
		return nil, &AuthError{Op: "authorize", Err: err}
	}
	if err := a.store.Save(tok); err != nil {
		return nil, &AuthError{Op: "save", Err: err}
	}
	return tok, nil
}

type persistingSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	store  CredentialStore
	last   string
	logger *slog.Logger
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain token: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.Save(tok); err != nil {
			s.logger.Warn("Could not persist refreshed credential.", "error", err)
		}
	}
	return tok, nil
}
