// ABOUTME: Interactive Gmail OAuth setup
// ABOUTME: Runs a local callback server and saves refreshable credentials to the XDG data dir
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mb2470/onsite-affiliate-sdr-agent/config"
	"github.com/mb2470/onsite-affiliate-sdr-agent/mail"
)

// AuthCommand handles the OAuth consent flow for the sending mailbox.
func AuthCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("auth", flag.ContinueOnError)
	addr := fs.String("addr", "localhost:8080", "Callback listen address")
	noBrowser := fs.Bool("no-browser", false, "Print the URL instead of opening a browser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	clientID, clientSecret := app.Config.Gmail.ClientID, app.Config.Gmail.ClientSecret
	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("%w: GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required for 'sdr auth'", config.ErrMissingCredentials)
	}

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("failed to listen for OAuth callback: %w", err)
	}

	oauthCfg := mail.NewOAuthConfig(clientID, clientSecret, "http://"+listener.Addr().String()+"/oauth/callback")
	state := uuid.NewString()

	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			fail(errors.New("OAuth state mismatch"))
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			fail(fmt.Errorf("no authorization code received"))
			return
		}

		token, err := oauthCfg.Exchange(ctx, code)
		if err != nil {
			http.Error(w, "token exchange failed", http.StatusBadGateway)
			fail(fmt.Errorf("failed to exchange code: %w", err))
			return
		}

		select {
		case tokenCh <- token:
		default:
		}
		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fail(err)
		}
	}()
	defer func() { _ = server.Shutdown(context.WithoutCancel(ctx)) }()

	// Prompt consent so Google always returns a refresh token
	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))

	app.println("Opening browser for Google OAuth...")
	app.printf("\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)
	if !*noBrowser {
		_ = openBrowser(authURL)
	}

	select {
	case token := <-tokenCh:
		if token.RefreshToken == "" {
			return fmt.Errorf("google returned no refresh token; revoke the app's access and retry")
		}

		creds := &mail.Credentials{
			Token:        token.AccessToken,
			RefreshToken: token.RefreshToken,
			TokenURI:     google.Endpoint.TokenURL,
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       mail.Scopes,
		}
		path := mail.TokenPath()
		if err := mail.SaveCredentials(path, creds); err != nil {
			return fmt.Errorf("failed to save credentials: %w", err)
		}

		app.printf("\n✓ Authenticated successfully\n")
		app.printf("✓ Credentials saved to %s\n\n", path)
		app.println("Run 'sdr verify-gmail' to confirm the sending address.")
		return nil

	case err := <-errCh:
		return fmt.Errorf("OAuth flow failed: %w", err)

	case <-ctx.Done():
		return ctx.Err()
	}
}

// openBrowser attempts to open URL in default browser
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}
