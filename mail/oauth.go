// ABOUTME: OAuth credentials and token management for the Gmail transport
// ABOUTME: Parses the authorized-user credential blob and stores flow tokens at XDG paths
package mail

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// Scopes requested for sending mail and reading failure notifications.
var Scopes = []string{
	gmail.GmailSendScope,
	gmail.GmailReadonlyScope,
}

// Credentials is an authorized-user credential blob as written by Google's
// installed-app flow.
type Credentials struct {
	Token        string   `json:"token,omitempty"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes,omitempty"`
}

// ParseCredentials decodes a credential blob and checks the refresh fields.
func ParseCredentials(blob string) (*Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal([]byte(strings.TrimSpace(blob)), &creds); err != nil {
		return nil, fmt.Errorf("failed to parse gmail credentials: %w", err)
	}

	var missing []string
	if creds.RefreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	if creds.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if creds.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("gmail credentials missing %s", strings.Join(missing, ", "))
	}
	return &creds, nil
}

// OAuthConfig builds the oauth2 config used to refresh access tokens.
func (c *Credentials) OAuthConfig() *oauth2.Config {
	endpoint := google.Endpoint
	if c.TokenURI != "" {
		endpoint.TokenURL = c.TokenURI
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = Scopes
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}
}

// OAuthToken returns the stored token. An empty access token forces a refresh
// on first use.
func (c *Credentials) OAuthToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: c.Token, RefreshToken: c.RefreshToken}
}

// NewOAuthConfig creates the config for the interactive authorization flow.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

// TokenPath returns XDG-compliant path for storing the flow's credentials.
func TokenPath() string {
	return filepath.Join(xdg.DataHome, "sdr", "gmail-credentials.json")
}

// SaveCredentials writes credentials with owner-only permissions.
func SaveCredentials(path string, creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(creds); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	return nil
}

// LoadCredentials reads credentials saved by SaveCredentials.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	return ParseCredentials(string(data))
}
