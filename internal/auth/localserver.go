package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// LocalServerFlow returns an Authorizer that prints the consent URL to out and waits for
// Google to redirect back to a listener on this machine.
func LocalServerFlow(out io.Writer) Authorizer {
	return func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
		addr, path := listenAddr(cfg.RedirectURL)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen for oauth callback: %w", err)
		}

		flowCfg := *cfg
		flowCfg.RedirectURL = fmt.Sprintf("http://localhost:%d%s", ln.Addr().(*net.TCPAddr).Port, path)

		state := uuid.NewString()
		type result struct {
			code string
			err  error
		}
		results := make(chan result, 1)

		mux := http.NewServeMux()
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			switch {
			case q.Get("state") != state:
				http.Error(w, "state mismatch", http.StatusBadRequest)
				return
			case q.Get("error") != "":
				http.Error(w, "authorisation denied", http.StatusForbidden)
				deliver(results, result{err: fmt.Errorf("authorisation denied: %s", q.Get("error"))})
				return
			case q.Get("code") == "":
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			}
			_, _ = io.WriteString(w, "Authorisation complete. You can close this tab.\n")
			deliver(results, result{code: q.Get("code")})
		})

		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				deliver(results, result{err: err})
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		authURL := flowCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		fmt.Fprintf(out, "Open this URL in your browser to authorise Drive access:\n\n%s\n\n", authURL)

		var res result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res = <-results:
		}
		if res.err != nil {
			return nil, res.err
		}

		tok, err := flowCfg.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange authorisation code: %w", err)
		}
		return tok, nil
	}
}

// deliver keeps the first callback outcome and drops any later ones.
func deliver[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// listenAddr honours a loopback redirect URI with an explicit port and falls back to an
// ephemeral loopback port otherwise.
func listenAddr(redirect string) (addr, path string) {
	addr, path = "127.0.0.1:0", "/"
	u, err := url.Parse(redirect)
	if err != nil || u.Scheme != "http" {
		return addr, path
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
	default:
		return addr, path
	}
	if u.Path != "" {
		path = u.Path
	}
	if port := u.Port(); port != "" {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	return addr, path
}
